package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestWatcherFailsOnMissingFile(t *testing.T) {
	w := Watcher{Path: "/nonexistent/cfg.yaml"}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx, nil); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestWatcherStopsOnContextCancel(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	w := Watcher{Path: path}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Start(ctx, nil) }()
	cancel()
	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not stop on cancel")
	}
}

func TestWatcherTriggersOnChange(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	w := Watcher{Path: path, CooldownTime: time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := make(chan AppConfig, 1)
	go func() {
		_ = w.Start(ctx, func(cfg AppConfig) {
			select {
			case ch <- cfg:
			default:
			}
		})
	}()
	time.Sleep(50 * time.Millisecond) // let the watcher attach

	if err := os.WriteFile(path, []byte(validYAML), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	select {
	case cfg := <-ch:
		if cfg.Env != "dev" {
			t.Fatalf("unexpected config from update: %+v", cfg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected update callback")
	}
}

func TestWatcherSkipsInvalidConfig(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	w := Watcher{Path: path, CooldownTime: time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := make(chan AppConfig, 1)
	go func() {
		_ = w.Start(ctx, func(cfg AppConfig) {
			select {
			case ch <- cfg:
			default:
			}
		})
	}()
	time.Sleep(50 * time.Millisecond)

	// 非法中间状态不得触发回调
	if err := os.WriteFile(path, []byte("env: \n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	select {
	case cfg := <-ch:
		t.Fatalf("unexpected callback for invalid config: %+v", cfg)
	case <-time.After(300 * time.Millisecond):
	}
}
