package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"floors-indexer/internal/config"
	"floors-indexer/internal/domain"

	"github.com/nats-io/nats.go"
	"gitlab.com/nevasik7/alerting/logger"
)

// Processor is the downstream of the trade stream, implemented by the
// indexer service.
type Processor interface {
	ProcessTrade(ctx context.Context, t *domain.Trade) error
}

// Consumer subscribes to the host's trade subject and feeds events into the
// processor one at a time. Serial processing keeps the per-market ordering
// the host guarantees on the wire.
type Consumer struct {
	log  logger.Logger
	proc Processor
	sub  *nats.Subscription

	msgCh     chan *nats.Msg
	doneCh    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewConsumer(log logger.Logger, nc *nats.Conn, cfg *config.IngestConfig, proc Processor) (*Consumer, error) {
	if cfg == nil || cfg.Subject == "" {
		return nil, errors.New("ingest subject is required")
	}

	c := &Consumer{
		log:    log,
		proc:   proc,
		msgCh:  make(chan *nats.Msg, 4096),
		doneCh: make(chan struct{}),
	}

	var (
		sub *nats.Subscription
		err error
	)
	if cfg.Queue != "" {
		sub, err = nc.ChanQueueSubscribe(cfg.Subject, cfg.Queue, c.msgCh)
	} else {
		sub, err = nc.ChanSubscribe(cfg.Subject, c.msgCh)
	}
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", cfg.Subject, err)
	}
	c.sub = sub

	c.wg.Add(1)
	go c.loop()

	log.Infof("Consuming trades from subject=%s queue=%s", cfg.Subject, cfg.Queue)
	return c, nil
}

func (c *Consumer) loop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.doneCh:
			return
		case msg, ok := <-c.msgCh:
			if !ok {
				return
			}
			c.handle(msg)
		}
	}
}

func (c *Consumer) handle(msg *nats.Msg) {
	var trade domain.Trade
	if err := json.Unmarshal(msg.Data, &trade); err != nil {
		c.log.Errorf("Malformed trade event on %s: %v", msg.Subject, err)
		return
	}

	if err := c.proc.ProcessTrade(context.Background(), &trade); err != nil {
		// The event stays lost: the stream is fire-and-forget and replay is
		// the warm-start snapshot's job.
		c.log.Errorf("Failed to process trade %s: %v",
			domain.TradeID(trade.ChainID, trade.TxHash, trade.LogIndex), err)
	}
}

// Close unsubscribes and waits for the in-flight event to finish.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.sub != nil {
			err = c.sub.Unsubscribe()
		}
		close(c.doneCh)
		c.wg.Wait()
	})
	return err
}
