package inventory

import "sync"

// Account 维护单个 agent 的现金、净仓位与加权平均成本。
// 仅由 ExecutionEngine 在结算成交时更新。
type Account struct {
	mu       sync.RWMutex
	cash     float64
	position float64
	cost     float64
}

func NewAccount(startingCash float64) *Account {
	return &Account{cash: startingCash}
}

// ApplyFill 根据成交调整账户：deltaQty 正为买入、负为卖出。
func (a *Account) ApplyFill(deltaQty, price float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cash -= deltaQty * price
	// 简化：加权平均成本
	totalValue := a.cost*a.position + price*deltaQty
	a.position += deltaQty
	if a.position != 0 {
		a.cost = totalValue / a.position
	} else {
		a.cost = 0
	}
}

func (a *Account) Cash() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cash
}

func (a *Account) Position() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.position
}

func (a *Account) AvgCost() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cost
}

// NetExposure 返回净仓位（兼容 risk.Guard 所需视图）。
func (a *Account) NetExposure() float64 { return a.Position() }

// Equity 按给定 mid 价估值账户总权益。
func (a *Account) Equity(mid float64) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cash + a.position*mid
}
