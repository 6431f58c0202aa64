package ingest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"floors-indexer/internal/config"
	"floors-indexer/internal/domain"

	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/nevasik7/alerting/logger"
)

type noopLogger struct{}

func (noopLogger) Debug(string)                                  {}
func (noopLogger) Debugf(string, ...interface{})                 {}
func (noopLogger) Info(string)                                   {}
func (noopLogger) Infof(string, ...interface{})                  {}
func (noopLogger) Warn(string)                                   {}
func (noopLogger) Warnf(string, ...interface{})                  {}
func (noopLogger) Error(string)                                  {}
func (noopLogger) Errorf(string, ...interface{})                 {}
func (noopLogger) Fatal(string)                                  {}
func (noopLogger) Fatalf(string, ...interface{})                 {}
func (noopLogger) Panic(string)                                  {}
func (noopLogger) Panicf(string, ...interface{})                 {}
func (l noopLogger) WithField(string, interface{}) logger.Logger { return l }
func (l noopLogger) WithFields(map[string]interface{}) logger.Logger {
	return l
}

type recordingProcessor struct {
	mu     sync.Mutex
	trades []*domain.Trade
}

func (p *recordingProcessor) ProcessTrade(_ context.Context, t *domain.Trade) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trades = append(p.trades, t)
	return nil
}

func (p *recordingProcessor) snapshot() []*domain.Trade {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*domain.Trade, len(p.trades))
	copy(out, p.trades)
	return out
}

func TestConsumer_DeliversTrades(t *testing.T) {
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	s := natsserver.RunServer(&opts)
	defer s.Shutdown()

	nc, err := nats.Connect(s.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	proc := &recordingProcessor{}
	consumer, err := NewConsumer(noopLogger{}, nc, &config.IngestConfig{Subject: "trades.events"}, proc)
	require.NoError(t, err)
	defer consumer.Close()

	trade := &domain.Trade{
		ChainID:          8453,
		MarketID:         "m1",
		TradeType:        domain.TradeBuy,
		ReserveAmountRaw: domain.NewBigInt(100),
		PriceRaw:         domain.NewBigInt(10),
		Timestamp:        7200,
		TxHash:           "0xabc",
	}
	payload, err := json.Marshal(trade)
	require.NoError(t, err)

	require.NoError(t, nc.Publish("trades.events", payload))
	require.NoError(t, nc.Flush())

	require.Eventually(t, func() bool {
		return len(proc.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	got := proc.snapshot()[0]
	assert.Equal(t, "m1", got.MarketID)
	assert.Equal(t, "100", got.ReserveAmountRaw.String())
}

func TestConsumer_SkipsMalformedPayload(t *testing.T) {
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	s := natsserver.RunServer(&opts)
	defer s.Shutdown()

	nc, err := nats.Connect(s.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	proc := &recordingProcessor{}
	consumer, err := NewConsumer(noopLogger{}, nc, &config.IngestConfig{Subject: "trades.events"}, proc)
	require.NoError(t, err)
	defer consumer.Close()

	require.NoError(t, nc.Publish("trades.events", []byte("not json")))

	good, err := json.Marshal(&domain.Trade{MarketID: "m1", Timestamp: 1})
	require.NoError(t, err)
	require.NoError(t, nc.Publish("trades.events", good))
	require.NoError(t, nc.Flush())

	require.Eventually(t, func() bool {
		return len(proc.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConsumer_RequiresSubject(t *testing.T) {
	_, err := NewConsumer(noopLogger{}, nil, &config.IngestConfig{}, &recordingProcessor{})
	assert.Error(t, err)
}

func TestConsumer_CloseIdempotent(t *testing.T) {
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	s := natsserver.RunServer(&opts)
	defer s.Shutdown()

	nc, err := nats.Connect(s.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	consumer, err := NewConsumer(noopLogger{}, nc, &config.IngestConfig{Subject: "trades.events"}, &recordingProcessor{})
	require.NoError(t, err)

	assert.NoError(t, consumer.Close())
	assert.NoError(t, consumer.Close())
}
