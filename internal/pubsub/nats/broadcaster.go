package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"floors-indexer/internal/config"

	"github.com/nats-io/nats.go"
	"gitlab.com/nevasik7/alerting/logger"
)

type Client struct {
	nc     *nats.Conn
	log    logger.Logger
	prefix string
}

func New(log logger.Logger, cfg *config.NATSConfig) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("nats config is required")
	}
	if cfg.URL == "" {
		return nil, errors.New("nats url is required")
	}

	opts := []nats.Option{
		nats.Name("floors-indexer"),
		nats.Timeout(5 * time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1), // endless reconnect
		nats.ReconnectWait(2 * time.Second),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Infof("Connected to NATS successfully, url=%s", cfg.URL)

	return &Client{
		nc:     nc,
		log:    log,
		prefix: cfg.BroadcastPrefix,
	}, nil
}

// Publish JSON-encodes data onto prefix+subject. Fire-and-forget.
func (c *Client) Publish(_ context.Context, subject string, data interface{}) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode broadcast payload: %w", err)
	}

	if err = c.nc.Publish(c.prefix+subject, b); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

func (c *Client) Health(_ context.Context) error {
	if !c.Ready() {
		return errors.New("nats connection not ready")
	}
	return nil
}

func (c *Client) Ready() bool {
	return c.nc != nil && c.nc.Status() == nats.CONNECTED
}

func (c *Client) Status() nats.Status {
	if c.nc == nil {
		return nats.DISCONNECTED
	}
	return c.nc.Status()
}

// Conn exposes the raw connection for the ingest consumer, which shares it.
func (c *Client) Conn() *nats.Conn {
	return c.nc
}

func (c *Client) Close() error {
	if c.nc == nil || c.nc.Status() == nats.CLOSED {
		return nil
	}

	if err := c.nc.Drain(); err != nil {
		c.log.Errorf("Failed to drain connection to NATS, error=%v", err)
		c.nc.Close()
		return fmt.Errorf("failed to drain connection to NATS: %w", err)
	}

	c.nc.Close()
	c.log.Infof("NATS connection closed gracefully")
	return nil
}
