package config

// ValidateParams 额外验证持久化链路的关键参数。
func ValidateParams(cfg AppConfig) error {
	if cfg.Sinks.Fills.QueueSize < 0 {
		return ErrInvalid("sinks.fills.queueSize must be >= 0")
	}
	if cfg.Sinks.Analytics.QueueSize < 0 {
		return ErrInvalid("sinks.analytics.queueSize must be >= 0")
	}
	if cfg.Sinks.Analytics.BatchSize < 0 {
		return ErrInvalid("sinks.analytics.batchSize must be >= 0")
	}
	if !cfg.Sinks.DryRun {
		if cfg.Sinks.Redis.ConnectionURL == "" {
			return ErrInvalid("sinks.redis.connection_url is required (or PRISM_REDIS_URL)")
		}
		if cfg.Sinks.Postgres.DataSource == "" {
			return ErrInvalid("sinks.postgres.data_source is required (or PRISM_POSTGRES_DSN)")
		}
	}
	return nil
}

// ErrInvalid 用于参数验证错误。
type ErrInvalid string

func (e ErrInvalid) Error() string { return string(e) }
