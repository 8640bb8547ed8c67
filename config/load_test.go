package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `
env: dev
seed: 42
tickIntervalMs: 50
maxTicks: 1000
submissionPolicy: round_robin
marketOrderPolicy: partial
analyticsFlushTicks: 10
sinks:
  dryRun: true
symbols:
  SIMUSD:
    tickSize: 0.01
    stepSize: 0.001
    minQty: 0.001
    maxQty: 100
    minNotional: 5
    price:
      anchorPrice: 100
      volatility: 0.002
      momentumWeight: 0.2
      meanReversion: 0.05
      priceFloor: 1
      returnWindow: 20
    liquidity:
      minSpreadBps: 5
      volCoeff: 2
      maxSpreadRatio: 0.02
      baseQuoteSize: 2
      depthSensitivity: 10
      minQuoteSize: 0.1
    agents:
      marketMakers:
        count: 2
        params:
          inventoryLimit: 10
          skewFactor: 0.5
          startingCash: 100000
      noise:
        count: 5
        params:
          tradeProb: 0.4
          baseQty: 1
          qtySigma: 0.5
          maxOffsetRatio: 0.01
          marketOrderProb: 0.2
          startingCash: 50000
      informed:
        count: 1
        params:
          noiseScale: 0.002
          minSignal: 0.3
          maxQty: 5
          startingCash: 50000
      momentum:
        count: 1
        params:
          window: 10
          entryReturn: 0.003
          orderQty: 2
          startingCash: 50000
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Env != "dev" || cfg.Seed != 42 {
		t.Fatalf("unexpected cfg values: %+v", cfg)
	}
	sc, ok := cfg.Symbols["SIMUSD"]
	if !ok {
		t.Fatalf("symbol SIMUSD missing: %+v", cfg.Symbols)
	}
	if sc.Price.AnchorPrice != 100 {
		t.Fatalf("anchorPrice = %v, want 100", sc.Price.AnchorPrice)
	}
	if sc.Agents.Total() != 9 {
		t.Fatalf("agent total = %d, want 9", sc.Agents.Total())
	}
	if c := sc.Constraints(); c.TickSize != 0.01 || c.MinNotional != 5 {
		t.Fatalf("unexpected constraints: %+v", c)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
env: dev
sinks:
  dryRun: true
symbols:
  SIMUSD:
    tickSize: 0.01
    stepSize: 0.001
    price:
      anchorPrice: 100
      priceFloor: 1
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SubmissionPolicy != "round_robin" {
		t.Fatalf("default submissionPolicy = %q", cfg.SubmissionPolicy)
	}
	if cfg.MarketOrderPolicy != "partial" {
		t.Fatalf("default marketOrderPolicy = %q", cfg.MarketOrderPolicy)
	}
	if cfg.TickIntervalMs != 100 || cfg.AnalyticsFlushTicks != 10 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	t.Setenv("PRISM_REDIS_URL", "redis://env-host:6379/0")
	t.Setenv("PRISM_POSTGRES_DSN", "host=env-host dbname=prism")
	cfg, err := LoadWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Sinks.Redis.ConnectionURL != "redis://env-host:6379/0" {
		t.Fatalf("env override not applied: %+v", cfg.Sinks.Redis)
	}
	if cfg.Sinks.Postgres.DataSource != "host=env-host dbname=prism" {
		t.Fatalf("env override not applied: %+v", cfg.Sinks.Postgres)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(AppConfig{}); err == nil {
		t.Fatalf("expected error for empty config")
	}
}

func TestValidateRejectsBadPolicy(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.SubmissionPolicy = "random"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for bad submissionPolicy")
	}
	cfg.SubmissionPolicy = "shuffle"
	cfg.MarketOrderPolicy = "cancel"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for bad marketOrderPolicy")
	}
}

func TestValidateRejectsBadPriceParams(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sc := cfg.Symbols["SIMUSD"]
	sc.Price.PriceFloor = 200 // above anchor
	cfg.Symbols["SIMUSD"] = sc
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for priceFloor above anchorPrice")
	}
}

func TestValidateParams(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateParams(cfg); err != nil {
		t.Fatalf("dry run config should pass: %v", err)
	}
	cfg.Sinks.DryRun = false
	if err := ValidateParams(cfg); err == nil {
		t.Fatalf("expected error when stores are unconfigured outside dry run")
	}
}
