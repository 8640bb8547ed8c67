package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"prism-sim/agent"
	"prism-sim/market"
	"prism-sim/orderbook"
	"prism-sim/sink"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env string `yaml:"env"`
	// Seed drives every random source in the run; same seed, same fills.
	Seed           int64  `yaml:"seed"`
	TickIntervalMs int    `yaml:"tickIntervalMs"`
	MaxTicks       uint64 `yaml:"maxTicks"` // 0 = run until stopped
	// SubmissionPolicy is "round_robin" or "shuffle".
	SubmissionPolicy string `yaml:"submissionPolicy"`
	// MarketOrderPolicy is "partial" or "reject".
	MarketOrderPolicy   string                  `yaml:"marketOrderPolicy"`
	AnalyticsFlushTicks uint64                  `yaml:"analyticsFlushTicks"`
	DepthLevels         int                     `yaml:"depthLevels"`
	MetricsAddr         string                  `yaml:"metricsAddr"`
	FeedAddr            string                  `yaml:"feedAddr"`
	Logging             LoggingConfig           `yaml:"logging"`
	Sinks               SinksConfig             `yaml:"sinks"`
	Symbols             map[string]SymbolConfig `yaml:"symbols"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug/info/warn/error
	JSON  bool   `yaml:"json"`
}

// SinksConfig 描述两条持久化链路；DryRun 时仅打日志。
type SinksConfig struct {
	DryRun    bool                     `yaml:"dryRun"`
	Redis     sink.RedisConfig         `yaml:"redis"`
	Postgres  sink.PostgresConfig      `yaml:"postgres"`
	Fills     sink.FillsSinkConfig     `yaml:"fills"`
	Analytics sink.AnalyticsSinkConfig `yaml:"analytics"`
}

// SymbolConfig 保存单个标的的精度限制、价格过程与 agent 种群。
type SymbolConfig struct {
	TickSize    float64                `yaml:"tickSize"`
	StepSize    float64                `yaml:"stepSize"`
	MinQty      float64                `yaml:"minQty"`
	MaxQty      float64                `yaml:"maxQty"`
	MinNotional float64                `yaml:"minNotional"`
	Price       market.PriceParams     `yaml:"price"`
	Liquidity   market.LiquidityParams `yaml:"liquidity"`
	Agents      AgentsConfig           `yaml:"agents"`
	Halt        HaltConfig             `yaml:"halt"`
	Markout     MarkoutConfig          `yaml:"markout"`
}

// HaltConfig 配置熔断窗口；阈值为零时对应窗口不生效。
type HaltConfig struct {
	ShortWindow int     `yaml:"shortWindow"` // 短窗 tick 数
	ShortThresh float64 `yaml:"shortThresh"` // 短窗相对涨跌幅阈值
	LongWindow  int     `yaml:"longWindow"`
	LongThresh  float64 `yaml:"longThresh"`
	HaltTicks   uint64  `yaml:"haltTicks"` // 触发后暂停撮合的 tick 数
}

// Enabled 任一窗口配置了阈值即启用。
func (h HaltConfig) Enabled() bool {
	return (h.ShortThresh > 0 && h.ShortWindow > 0) || (h.LongThresh > 0 && h.LongWindow > 0)
}

// MarkoutConfig 配置事后成交质量分析的观察窗口。
type MarkoutConfig struct {
	ShortTicks uint64 `yaml:"shortTicks"`
	LongTicks  uint64 `yaml:"longTicks"`
}

// Constraints 转换为撮合簿使用的精度约束。
func (sc SymbolConfig) Constraints() orderbook.Constraints {
	return orderbook.Constraints{
		TickSize:    sc.TickSize,
		StepSize:    sc.StepSize,
		MinQty:      sc.MinQty,
		MaxQty:      sc.MaxQty,
		MinNotional: sc.MinNotional,
	}
}

// AgentsConfig sizes each archetype population; Count 0 disables one.
type AgentsConfig struct {
	MarketMakers MarketMakerPopulation `yaml:"marketMakers"`
	Noise        NoisePopulation       `yaml:"noise"`
	Informed     InformedPopulation    `yaml:"informed"`
	Momentum     MomentumPopulation    `yaml:"momentum"`
}

type MarketMakerPopulation struct {
	Count  int                     `yaml:"count"`
	Params agent.MarketMakerParams `yaml:"params"`
}

type NoisePopulation struct {
	Count  int               `yaml:"count"`
	Params agent.NoiseParams `yaml:"params"`
}

type InformedPopulation struct {
	Count  int                  `yaml:"count"`
	Params agent.InformedParams `yaml:"params"`
}

type MomentumPopulation struct {
	Count  int                  `yaml:"count"`
	Params agent.MomentumParams `yaml:"params"`
}

// Total 返回配置的 agent 总数。
func (a AgentsConfig) Total() int {
	return a.MarketMakers.Count + a.Noise.Count + a.Informed.Count + a.Momentum.Count
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides connection strings from
// env vars if present, so credentials stay out of the YAML file.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("PRISM_REDIS_URL"); v != "" {
		cfg.Sinks.Redis.ConnectionURL = v
	}
	if v := os.Getenv("PRISM_POSTGRES_DSN"); v != "" {
		cfg.Sinks.Postgres.DataSource = v
	}
	return cfg, Validate(cfg)
}

func (c *AppConfig) applyDefaults() {
	if c.TickIntervalMs == 0 {
		c.TickIntervalMs = 100
	}
	if c.SubmissionPolicy == "" {
		c.SubmissionPolicy = "round_robin"
	}
	if c.MarketOrderPolicy == "" {
		c.MarketOrderPolicy = "partial"
	}
	if c.AnalyticsFlushTicks == 0 {
		c.AnalyticsFlushTicks = 10
	}
	if c.DepthLevels == 0 {
		c.DepthLevels = 5
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.TickIntervalMs < 0 {
		return errors.New("tickIntervalMs must be >= 0")
	}
	switch cfg.SubmissionPolicy {
	case "round_robin", "shuffle":
	default:
		return fmt.Errorf("submissionPolicy %q is not round_robin or shuffle", cfg.SubmissionPolicy)
	}
	switch cfg.MarketOrderPolicy {
	case "partial", "reject":
	default:
		return fmt.Errorf("marketOrderPolicy %q is not partial or reject", cfg.MarketOrderPolicy)
	}
	if len(cfg.Symbols) == 0 {
		return errors.New("symbols config is required")
	}
	for sym, sc := range cfg.Symbols {
		if sc.TickSize <= 0 {
			return fmt.Errorf("symbol %s tickSize must be > 0", sym)
		}
		if sc.StepSize <= 0 {
			return fmt.Errorf("symbol %s stepSize must be > 0", sym)
		}
		if sc.MinQty < 0 || sc.MaxQty < 0 || sc.MinNotional < 0 {
			return fmt.Errorf("symbol %s qty/notional bounds must be >= 0", sym)
		}
		if sc.Price.AnchorPrice <= 0 {
			return fmt.Errorf("symbol %s price.anchorPrice must be > 0", sym)
		}
		if sc.Price.Volatility < 0 {
			return fmt.Errorf("symbol %s price.volatility must be >= 0", sym)
		}
		if sc.Price.PriceFloor <= 0 {
			return fmt.Errorf("symbol %s price.priceFloor must be > 0", sym)
		}
		if sc.Price.PriceFloor > sc.Price.AnchorPrice {
			return fmt.Errorf("symbol %s price.priceFloor must not exceed anchorPrice", sym)
		}
		if sc.Liquidity.MinSpreadBps < 0 {
			return fmt.Errorf("symbol %s liquidity.minSpreadBps must be >= 0", sym)
		}
		if sc.Liquidity.BaseQuoteSize <= 0 && sc.Agents.MarketMakers.Count > 0 {
			return fmt.Errorf("symbol %s liquidity.baseQuoteSize must be > 0 when market makers are configured", sym)
		}
		if err := validatePopulations(sym, sc.Agents); err != nil {
			return err
		}
	}
	return nil
}

func validatePopulations(sym string, a AgentsConfig) error {
	if a.MarketMakers.Count < 0 || a.Noise.Count < 0 || a.Informed.Count < 0 || a.Momentum.Count < 0 {
		return fmt.Errorf("symbol %s agent counts must be >= 0", sym)
	}
	if a.Noise.Count > 0 {
		p := a.Noise.Params
		if p.TradeProb < 0 || p.TradeProb > 1 {
			return fmt.Errorf("symbol %s noise.tradeProb must be in [0,1]", sym)
		}
		if p.MarketOrderProb < 0 || p.MarketOrderProb > 1 {
			return fmt.Errorf("symbol %s noise.marketOrderProb must be in [0,1]", sym)
		}
		if p.BaseQty <= 0 {
			return fmt.Errorf("symbol %s noise.baseQty must be > 0", sym)
		}
	}
	if a.Informed.Count > 0 {
		p := a.Informed.Params
		if p.NoiseScale <= 0 {
			return fmt.Errorf("symbol %s informed.noiseScale must be > 0", sym)
		}
		if p.MaxQty <= 0 {
			return fmt.Errorf("symbol %s informed.maxQty must be > 0", sym)
		}
	}
	if a.Momentum.Count > 0 {
		p := a.Momentum.Params
		if p.Window < 2 {
			return fmt.Errorf("symbol %s momentum.window must be >= 2", sym)
		}
		if p.OrderQty <= 0 {
			return fmt.Errorf("symbol %s momentum.orderQty must be > 0", sym)
		}
	}
	return nil
}
