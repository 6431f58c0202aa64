package app

import (
	"context"
	"errors"
	"fmt"

	"floors-indexer/internal/window"

	goredis "github.com/redis/go-redis/v9"
	"gitlab.com/nevasik7/alerting/logger"
)

// WindowWarmStart persists the rolling-window state to Redis so a restart
// resumes with warm aggregates instead of an empty 24h window.
type WindowWarmStart struct {
	log logger.Logger
	rdb *goredis.Client
	key string
	eng *window.Engine
}

func NewWindowWarmStart(log logger.Logger, rdb *goredis.Client, key string, eng *window.Engine) *WindowWarmStart {
	if key == "" {
		key = "floors:window:snapshot"
	}
	return &WindowWarmStart{log: log, rdb: rdb, key: key, eng: eng}
}

// Save serializes the live window entries. Evicted slots are not carried.
func (w *WindowWarmStart) Save(ctx context.Context) error {
	blob, err := w.eng.Marshal()
	if err != nil {
		return fmt.Errorf("marshal window snapshot: %w", err)
	}

	if err = w.rdb.Set(ctx, w.key, blob, 0).Err(); err != nil {
		return fmt.Errorf("store window snapshot: %w", err)
	}

	w.log.Debugf("Window snapshot saved, %d bytes", len(blob))
	return nil
}

// Load restores the last saved snapshot. A missing key is a cold start,
// not an error.
func (w *WindowWarmStart) Load(ctx context.Context) error {
	blob, err := w.rdb.Get(ctx, w.key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			w.log.Infof("No window snapshot found, starting cold")
			return nil
		}
		return fmt.Errorf("load window snapshot: %w", err)
	}

	if err = w.eng.Restore(blob); err != nil {
		return fmt.Errorf("restore window snapshot: %w", err)
	}

	w.log.Infof("Window snapshot restored, %d bytes", len(blob))
	return nil
}
