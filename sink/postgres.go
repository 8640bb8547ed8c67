package sink

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
	pg "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"prism-sim/analytics"
)

// PostgresConfig 描述分析库的连接参数。
type PostgresConfig struct {
	DataSource                 string `yaml:"data_source"`
	MaxOpenConns               int    `yaml:"max_open_conns"`
	MaxIdleConns               int    `yaml:"max_idle_conns"`
	ConnMaxLifeTimeMiliseconds int64  `yaml:"conn_max_life_time_ms"`
	InsertBatchSize            int    `yaml:"insert_batch_size"`
}

// InitPostgres set up the analytics database connection.
func InitPostgres(cfg *PostgresConfig) (*gorm.DB, error) {
	db, err := gorm.Open(pg.Open(cfg.DataSource), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		zap.S().Debugf("open postgres fail: %+v", err)
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		zap.S().Debugf("get DB instance failed %v", err)
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifeTimeMiliseconds > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifeTimeMiliseconds) * time.Millisecond)
	}
	return db, nil
}

// InitPostgresWithBackoff 使用指数退避等待数据库可用。
func InitPostgresWithBackoff(cfg *PostgresConfig) (*gorm.DB, error) {
	var db *gorm.DB
	boff := backoff.NewExponentialBackOff()
	boff.MaxElapsedTime = time.Minute
	err := backoff.Retry(func() error {
		var err error
		db, err = InitPostgres(cfg)
		if err != nil {
			zap.S().Warnf("connect postgres error: %v", err)
		}
		return err
	}, boff)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// PostgresSnapshotWriter bulk-inserts snapshot batches into the analytics
// table.
type PostgresSnapshotWriter struct {
	db        *gorm.DB
	batchSize int
}

func NewPostgresSnapshotWriter(db *gorm.DB, batchSize int) (*PostgresSnapshotWriter, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	if err := db.AutoMigrate(&analytics.Snapshot{}); err != nil {
		return nil, err
	}
	return &PostgresSnapshotWriter{db: db, batchSize: batchSize}, nil
}

func (w *PostgresSnapshotWriter) WriteBatch(ctx context.Context, batch []analytics.Snapshot) error {
	if len(batch) == 0 {
		return nil
	}
	return w.db.WithContext(ctx).CreateInBatches(batch, w.batchSize).Error
}
