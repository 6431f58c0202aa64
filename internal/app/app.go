package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"gitlab.com/nevasik7/alerting"
)

type HTTPServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// SnapshotSaver is the warm-start hook flushed periodically and at
// shutdown.
type SnapshotSaver interface {
	Save(ctx context.Context) error
}

type App struct {
	alert   alerting.Alerting
	httpSrv HTTPServer

	snapshots   SnapshotSaver // may be nil
	snapshotGap time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(lg alerting.Alerting, httpSrv HTTPServer, snapshots SnapshotSaver, snapshotGap time.Duration) *App {
	if snapshotGap <= 0 {
		snapshotGap = time.Minute
	}
	return &App{
		alert:       lg,
		httpSrv:     httpSrv,
		snapshots:   snapshots,
		snapshotGap: snapshotGap,
		stopCh:      make(chan struct{}),
	}
}

func (a *App) Start() error {
	a.alert.Debug("App started begin...")

	go func() {
		if err := a.httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.alert.Fatalf("Start HTTP server is error=%v", err)
		}
	}()

	if a.snapshots != nil {
		a.wg.Add(1)
		go a.snapshotLoop()
	}

	a.alert.Info("App started")
	return nil
}

func (a *App) snapshotLoop() {
	defer a.wg.Done()

	t := time.NewTicker(a.snapshotGap)
	defer t.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := a.snapshots.Save(ctx); err != nil {
				a.alert.Errorf("Periodic window snapshot failed: %v", err)
			}
			cancel()
		}
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.alert.Debug("App stopped begin...")

	close(a.stopCh)
	a.wg.Wait()

	// final snapshot so the restart resumes where we left off
	if a.snapshots != nil {
		if err := a.snapshots.Save(ctx); err != nil {
			a.alert.Errorf("Final window snapshot failed: %v", err)
		}
	}

	if err := a.httpSrv.Shutdown(ctx); err != nil {
		return err
	}

	a.alert.Info("App stopped")
	return nil
}
