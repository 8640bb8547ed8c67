package risk

import "fmt"

// Limits 配置单笔、净仓位与现金下限约束。零值表示不启用对应约束。
type Limits struct {
	MaxOrderQty float64 `yaml:"maxOrderQty"`
	MaxPosition float64 `yaml:"maxPosition"`
	MinCash     float64 `yaml:"minCash"`
}

// Accountant 提供当前仓位与现金视图（由 inventory.Account 实现）。
type Accountant interface {
	Position() float64
	Cash() float64
}

// LimitChecker 校验下单前的仓位/现金约束。agent 收到错误后静默放弃该笔
// 订单（self-veto），不会向上抛出。
type LimitChecker struct {
	cfg  Limits
	acct Accountant
}

func NewLimitChecker(cfg Limits, acct Accountant) *LimitChecker {
	return &LimitChecker{cfg: cfg, acct: acct}
}

func (lc *LimitChecker) PreOrder(deltaQty, price float64) error {
	absQty := abs(deltaQty)
	if lc.cfg.MaxOrderQty > 0 && absQty > lc.cfg.MaxOrderQty {
		return fmt.Errorf("%w: %.4f > %.4f", ErrOrderTooLarge, absQty, lc.cfg.MaxOrderQty)
	}
	if lc.acct == nil {
		return nil
	}
	if lc.cfg.MaxPosition > 0 {
		if net := lc.acct.Position() + deltaQty; abs(net) > lc.cfg.MaxPosition {
			return fmt.Errorf("%w: %.4f > %.4f", ErrPositionExceeded, net, lc.cfg.MaxPosition)
		}
	}
	// 只约束买入消耗的现金；卖出增加现金无需校验。
	if deltaQty > 0 && price > 0 {
		if remain := lc.acct.Cash() - deltaQty*price; remain < lc.cfg.MinCash {
			return fmt.Errorf("%w: remaining %.4f < %.4f", ErrInsufficientCash, remain, lc.cfg.MinCash)
		}
	}
	return nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
