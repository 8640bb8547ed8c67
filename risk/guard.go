package risk

// Guard 是通用接口，仓位、现金等约束都可实现。
// deltaQty 正为买入、负为卖出；price 为拟下单价格（市价单用当前 mid 估算）。
type Guard interface {
	PreOrder(deltaQty, price float64) error
}

// MultiGuard 顺序执行多个 Guard，只要有一个返回错误则中止。
type MultiGuard struct {
	Guards []Guard
}

func (m MultiGuard) PreOrder(deltaQty, price float64) error {
	for _, g := range m.Guards {
		if g == nil {
			continue
		}
		if err := g.PreOrder(deltaQty, price); err != nil {
			return err
		}
	}
	return nil
}
