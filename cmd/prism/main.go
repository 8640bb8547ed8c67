package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"prism-sim/analytics"
	"prism-sim/config"
	"prism-sim/feed"
	"prism-sim/infrastructure/logger"
	"prism-sim/metrics"
	"prism-sim/sim"
	"prism-sim/sink"
)

func main() {
	cfgPath := flag.String("config", "configs/prism.yaml", "配置文件路径")
	dryRun := flag.Bool("dryRun", false, "不连接外部存储，仅日志输出")
	maxTicks := flag.Uint64("maxTicks", 0, "覆盖配置中的 maxTicks（0 表示不覆盖）")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if *dryRun {
		cfg.Sinks.DryRun = true
	}
	if err := config.ValidateParams(cfg); err != nil {
		log.Fatalf("配置参数非法: %v", err)
	}
	if *maxTicks > 0 {
		cfg.MaxTicks = *maxTicks
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	if !cfg.Logging.JSON {
		logCfg.Format = "console"
	}
	lg, err := logger.New(logCfg)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer lg.Close()
	zap.ReplaceGlobals(lg.Logger)

	if cfg.MetricsAddr != "" {
		metrics.StartMetricsServer(cfg.MetricsAddr)
		lg.Info("metrics server started", zap.String("addr", cfg.MetricsAddr))
	}

	// 两条持久化链路：成交走无损队列，分析走尽力而为队列
	fillWriter, snapWriter, cleanup, err := buildWriters(cfg, lg.Logger)
	if err != nil {
		lg.Fatal("初始化存储失败", zap.Error(err))
	}
	defer cleanup()

	fillsSink := sink.NewFillsSink(fillWriter, cfg.Sinks.Fills, lg.Logger.Named("fills"))
	analyticsSink := sink.NewAnalyticsSink(snapWriter, cfg.Sinks.Analytics, lg.Logger.Named("analytics"))

	var feedSrv *feed.Server
	if cfg.FeedAddr != "" {
		feedSrv = feed.NewServer(lg.Logger.Named("feed"))
		go func() {
			if err := feedSrv.Serve(cfg.FeedAddr); err != nil {
				lg.Error("feed server exited", zap.Error(err))
			}
		}()
	}

	runners, err := buildRunners(cfg, analyticsSink, fillsSink, feedSrv, lg.Logger)
	if err != nil {
		lg.Fatal("构建模拟世界失败", zap.Error(err))
	}

	simulation := sim.NewSimulation(runners,
		time.Duration(cfg.TickIntervalMs)*time.Millisecond, cfg.MaxTicks, lg.Logger)
	simulation.RegisterHealth("fills", fillsSink)
	simulation.RegisterHealth("analytics", analyticsSink)
	simulation.OnShutdown(func(ctx context.Context) error {
		return fillsSink.Close(ctx)
	})
	simulation.OnShutdown(func(ctx context.Context) error {
		return analyticsSink.Close(ctx)
	})
	if feedSrv != nil {
		simulation.OnShutdown(func(ctx context.Context) error {
			return feedSrv.Shutdown(ctx)
		})
	}

	if err := simulation.Start(); err != nil {
		lg.Fatal("启动失败", zap.Error(err))
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	// 配置热监听：模拟世界由 seed 决定，磁盘变更只提示需要重启
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go func() {
		w := config.Watcher{Path: *cfgPath}
		_ = w.Start(watchCtx, func(config.AppConfig) {
			lg.Warn("config changed on disk; restart to apply")
		})
	}()

	go statusLoop(watchCtx, simulation, fillsSink, analyticsSink, feedSrv, lg.Logger)

	done := make(chan struct{})
	go func() {
		simulation.Wait()
		close(done)
	}()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		lg.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case <-done:
		lg.Info("all symbols reached max ticks")
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := simulation.Stop(ctx); err != nil {
		lg.Warn("shutdown finished with errors", zap.Error(err))
	}
	printSummary(simulation, runners)
}

// buildWriters 按配置选择真实存储或日志替身。
func buildWriters(cfg config.AppConfig, lg *zap.Logger) (sink.FillWriter, sink.SnapshotWriter, func(), error) {
	if cfg.Sinks.DryRun {
		return sink.LogFillWriter{Log: lg.Named("fills")},
			sink.LogSnapshotWriter{Log: lg.Named("analytics")},
			func() {}, nil
	}
	rdb, err := sink.InitRedis(&cfg.Sinks.Redis)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init redis: %w", err)
	}
	db, err := sink.InitPostgresWithBackoff(&cfg.Sinks.Postgres)
	if err != nil {
		_ = rdb.Close()
		return nil, nil, nil, fmt.Errorf("init postgres: %w", err)
	}
	snapWriter, err := sink.NewPostgresSnapshotWriter(db, cfg.Sinks.Postgres.InsertBatchSize)
	if err != nil {
		_ = rdb.Close()
		return nil, nil, nil, fmt.Errorf("migrate analytics schema: %w", err)
	}
	fillWriter := sink.NewRedisFillWriter(rdb, cfg.Sinks.Redis.Stream, cfg.Sinks.Redis.MaxLen)
	cleanup := func() { _ = rdb.Close() }
	return fillWriter, snapWriter, cleanup, nil
}

// teeSnapshotSink 在入队的同时向 feed 订阅者广播快照。
type teeSnapshotSink struct {
	sink analytics.SnapshotSink
	feed *feed.Server
}

func (t teeSnapshotSink) Enqueue(s analytics.Snapshot) {
	t.sink.Enqueue(s)
	t.feed.BroadcastSnapshot(s)
}

func buildRunners(cfg config.AppConfig, analyticsSink analytics.SnapshotSink,
	fillsSink *sink.FillsSink, feedSrv *feed.Server, lg *zap.Logger) ([]*sim.SymbolRunner, error) {
	snapSink := analyticsSink
	if feedSrv != nil {
		snapSink = teeSnapshotSink{sink: analyticsSink, feed: feedSrv}
	}
	runners := make([]*sim.SymbolRunner, 0, len(cfg.Symbols))
	for symbol, sc := range cfg.Symbols {
		r, err := sim.BuildRunner(symbol, sc, cfg, snapSink, lg.Named(symbol))
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", symbol, err)
		}
		r.Engine().OnFill(fillsSink.Enqueue)
		if feedSrv != nil {
			r.Engine().OnFill(feedSrv.BroadcastFill)
		}
		runners = append(runners, r)
	}
	return runners, nil
}

// statusLoop 周期性输出运行状态并刷新链路指标。
func statusLoop(ctx context.Context, s *sim.Simulation,
	fills *sink.FillsSink, analyticsSink *sink.AnalyticsSink, feedSrv *feed.Server, lg *zap.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	var lastDropped uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		st := s.Status()
		metrics.UpdateSinkMetrics("fills", fills.Pending(), fills.Healthy())
		metrics.UpdateSinkMetrics("analytics", analyticsSink.Pending(), analyticsSink.Healthy())
		if d := analyticsSink.Dropped(); d > lastDropped {
			metrics.SinkDroppedTotal.WithLabelValues("analytics").Add(float64(d - lastDropped))
			lastDropped = d
		}
		if feedSrv != nil {
			metrics.FeedClients.Set(float64(feedSrv.ClientCount()))
		}
		for symbol, sym := range st.Symbols {
			lg.Info("status",
				zap.String("symbol", symbol),
				zap.String("state", st.State),
				zap.Uint64("tick", sym.Tick),
				zap.Uint64("fills", sym.Fills),
				zap.Float64("volume", sym.CumVolume),
				zap.Uint64("rejected", sym.Rejected),
				zap.Bool("fills_sink_healthy", st.Sinks["fills"]),
				zap.Bool("analytics_sink_healthy", st.Sinks["analytics"]))
		}
	}
}

func printSummary(s *sim.Simulation, runners []*sim.SymbolRunner) {
	st := s.Status()
	for _, r := range runners {
		sym := st.Symbols[r.Symbol]
		mo := r.MarkoutStats()
		fmt.Printf("%s: ticks=%d fills=%d volume=%.4f rejected=%d markout_short=%.6f adverse_rate=%.3f\n",
			r.Symbol, sym.Tick, sym.Fills, sym.CumVolume, sym.Rejected,
			mo.AvgMarkoutShort, mo.AdverseToSellerRate)
	}
}
