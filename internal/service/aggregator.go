package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"floors-indexer/internal/candle"
	"floors-indexer/internal/decimals"
	"floors-indexer/internal/dedupe"
	"floors-indexer/internal/domain"
	"floors-indexer/internal/metrics"
	"floors-indexer/internal/pubsub"
	"floors-indexer/internal/stats"
	"floors-indexer/internal/store"
	"floors-indexer/internal/stores/clickhouse"
	"floors-indexer/internal/window"

	"gitlab.com/nevasik7/alerting/logger"
)

var (
	ErrMarketNotFound = errors.New("market not found")
	ErrInvalidTrade   = errors.New("invalid trade event")
)

// HistoryWriter archives processed trades for long-term storage. Optional:
// a nil writer disables archiving.
type HistoryWriter interface {
	Enqueue(row clickhouse.TradeRow) error
}

// Indexer is the single orchestration point for trade events:
// dedupe → window → rolling stats → candles → snapshots → global → broadcast
// → history. Called from the NATS consumer; query methods serve the HTTP API.
type Indexer struct {
	log         logger.Logger
	store       store.Store
	windows     *window.Engine
	candles     *candle.Aggregator
	rolling     *stats.RollingPublisher
	global      *stats.GlobalAggregator
	deduper     dedupe.Deduper
	broadcaster pubsub.Broadcaster
	history     HistoryWriter
}

func NewIndexer(
	log logger.Logger,
	st store.Store,
	windows *window.Engine,
	candles *candle.Aggregator,
	rolling *stats.RollingPublisher,
	global *stats.GlobalAggregator,
	deduper dedupe.Deduper,
	broadcaster pubsub.Broadcaster,
	history HistoryWriter,
) *Indexer {
	return &Indexer{
		log:         log,
		store:       st,
		windows:     windows,
		candles:     candles,
		rolling:     rolling,
		global:      global,
		deduper:     deduper,
		broadcaster: broadcaster,
		history:     history,
	}
}

func (s *Indexer) ProcessTrade(ctx context.Context, t *domain.Trade) error {
	started := time.Now()

	if t == nil || t.MarketID == "" || t.ReserveAmountRaw == nil || t.PriceRaw == nil {
		metrics.TradesSkipped.WithLabelValues("invalid").Inc()
		return ErrInvalidTrade
	}

	tradeID := domain.TradeID(t.ChainID, t.TxHash, t.LogIndex)

	dup, err := s.deduper.Seen(ctx, tradeID)
	if err != nil {
		return fmt.Errorf("dedup check failed for %s: %w", tradeID, err)
	}
	if dup {
		s.log.Debugf("Duplicate trade ignored: %s", tradeID)
		metrics.TradesSkipped.WithLabelValues("duplicate").Inc()
		return nil
	}

	var market domain.Market
	found, err := s.store.Get(ctx, store.KindMarket, t.MarketID, &market)
	if err != nil {
		return fmt.Errorf("load market %s: %w", t.MarketID, err)
	}
	if !found {
		// The market-creation event has not landed yet. Drop rather than
		// aggregate against a phantom venue.
		s.log.Warnf("Trade %s references unknown market %s, skipping", tradeID, t.MarketID)
		metrics.TradesSkipped.WithLabelValues("market_unknown").Inc()
		return nil
	}

	dec, err := s.reserveDecimals(ctx, market.ReserveToken)
	if err != nil {
		// Never guess decimals: a wrong precision poisons every aggregate
		// the trade touches.
		s.log.Warnf("Trade %s: reserve decimals unavailable for token %s: %v, skipping", tradeID, market.ReserveToken, err)
		metrics.TradesSkipped.WithLabelValues("decimals_unknown").Inc()
		return nil
	}

	isBuy := t.TradeType == domain.TradeBuy
	agg, evicted := s.windows.Update(t.MarketID, dec, t.Timestamp, t.ReserveAmountRaw.Unwrap(), t.PriceRaw.Unwrap(), isBuy)
	if evicted > 0 {
		metrics.WindowEvictions.Add(float64(evicted))
	}
	s.windows.MarkSeen(t.MarketID, market.Status == domain.MarketActive)

	if _, err = s.rolling.Publish(ctx, t.MarketID, dec, agg, t.Timestamp); err != nil {
		return fmt.Errorf("rolling stats for %s: %w", t.MarketID, err)
	}

	for _, p := range domain.Periods {
		if _, err = s.candles.Apply(ctx, t.MarketID, p, t.Timestamp, t.PriceRaw.Unwrap(), t.ReserveAmountRaw.Unwrap(), dec); err != nil {
			return fmt.Errorf("candle %s for %s: %w", p, t.MarketID, err)
		}
		metrics.CandleWrites.WithLabelValues(string(p)).Inc()
	}

	if err = s.writeMarketSnapshot(ctx, &market, t.Timestamp, agg); err != nil {
		return fmt.Errorf("market snapshot for %s: %w", t.MarketID, err)
	}

	if err = s.global.Recompute(ctx, t.Timestamp, t.ReserveAmountRaw.Unwrap(), dec); err != nil {
		return fmt.Errorf("global stats: %w", err)
	}

	// Broadcast failures are not fatal: subscribers catch up on the next
	// trade for this market.
	patch := domain.StatsPatch{
		Topic:       domain.PatchTopic(t.MarketID),
		MarketID:    t.MarketID,
		GeneratedAt: time.Now().UTC(),
		Window:      agg,
	}
	if err = s.broadcaster.Publish(ctx, patch.Topic, patch); err != nil {
		s.log.Errorf("Failed to broadcast patch for %s: %v", patch.Topic, err)
		metrics.BroadcastErrors.Inc()
	}

	if s.history != nil {
		row := clickhouse.TradeRow{
			TradeTime:     time.Unix(t.Timestamp, 0).UTC(),
			ChainID:       t.ChainID,
			TxHash:        t.TxHash,
			LogIndex:      t.LogIndex,
			TradeID:       tradeID,
			MarketID:      t.MarketID,
			Trader:        t.Trader,
			Side:          string(t.TradeType),
			ReserveAmount: decimals.Format(t.ReserveAmountRaw.Unwrap(), dec),
			TokenAmount:   decimals.Format(t.TokenAmountRaw.Unwrap(), decimals.Canonical),
			PriceRaw:      decimals.Format(t.PriceRaw.Unwrap(), decimals.Canonical),
			Volume24h:     decimals.Format(agg.VolumeRaw.Unwrap(), dec),
			BlockNumber:   t.BlockNumber,
			SchemaVersion: 1,
		}
		if err = s.history.Enqueue(row); err != nil {
			s.log.Errorf("Failed to enqueue trade %s for history: %v", tradeID, err)
		}
	}

	metrics.TradesProcessed.Inc()
	metrics.ProcessDuration.Observe(time.Since(started).Seconds())

	s.log.Debugf("Trade processed: %s (market=%s, vol24h=%s)", tradeID, t.MarketID, agg.VolumeRaw.String())
	return nil
}

// reserveDecimals resolves the precision of a market's reserve token from
// the cached token metadata.
func (s *Indexer) reserveDecimals(ctx context.Context, tokenID string) (uint8, error) {
	var tok domain.Token
	found, err := s.store.Get(ctx, store.KindToken, tokenID, &tok)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("token %s not found", tokenID)
	}
	return tok.Decimals, nil
}

func (s *Indexer) writeMarketSnapshot(ctx context.Context, m *domain.Market, ts int64, agg domain.WindowAgg) error {
	bucket := domain.BucketStart(ts, domain.PeriodOneHour.Seconds())

	snap := domain.MarketSnapshot{
		ID:              domain.MarketSnapshotID(m.ID, bucket),
		MarketID:        m.ID,
		Timestamp:       bucket,
		PriceRaw:        m.CurrentPriceRaw,
		FloorPriceRaw:   m.FloorPriceRaw,
		TotalSupplyRaw:  m.TotalSupplyRaw,
		MarketSupplyRaw: m.MarketSupplyRaw,
		Volume24hRaw:    agg.VolumeRaw,
		Trades24h:       agg.TradeCount,
	}

	return s.store.Set(ctx, store.KindMarketSnapshot, snap.ID, snap)
}

// GetMarketStats returns the persisted rolling-window projection for a
// market. Serves GET /api/markets/{id}/stats.
func (s *Indexer) GetMarketStats(ctx context.Context, marketID string) (*domain.MarketRollingStats, error) {
	var rs domain.MarketRollingStats
	found, err := s.store.Get(ctx, store.KindRollingStats, domain.RollingStatsID(marketID, domain.WindowSeconds), &rs)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrMarketNotFound
	}
	return &rs, nil
}

// GetCandles returns the OHLCV buckets for [from, to]. Buckets with no
// trades are absent, not zero-filled.
func (s *Indexer) GetCandles(ctx context.Context, marketID string, p domain.Period, from, to int64) ([]*domain.PriceCandle, error) {
	return s.candles.Range(ctx, marketID, p, from, to)
}

// GetGlobalStats returns the platform singleton, zero-valued before the
// first trade.
func (s *Indexer) GetGlobalStats(ctx context.Context) (*domain.GlobalStats, error) {
	var gs domain.GlobalStats
	found, err := s.store.Get(ctx, store.KindGlobalStats, domain.GlobalStatsID, &gs)
	if err != nil {
		return nil, err
	}
	if !found {
		gs = domain.GlobalStats{
			ID:                 domain.GlobalStatsID,
			TotalVolumeRaw:     domain.NewBigInt(0),
			TotalDebtRaw:       domain.NewBigInt(0),
			TotalCollateralRaw: domain.NewBigInt(0),
		}
		gs.TotalVolumeFormatted = "0"
	}
	return &gs, nil
}

func (s *Indexer) CheckDependency(ctx context.Context) error {
	errDependency := make([]string, 0, 3)

	if err := s.deduper.Health(ctx); err != nil {
		errDependency = append(errDependency, fmt.Sprintf("dedupe: %v", err))
	}

	if err := s.broadcaster.Health(ctx); err != nil {
		errDependency = append(errDependency, "NATS: connection not ready")
	}

	if h, ok := s.store.(interface{ Health(context.Context) error }); ok {
		if err := h.Health(ctx); err != nil {
			errDependency = append(errDependency, fmt.Sprintf("store: %v", err))
		}
	}

	if len(errDependency) > 0 {
		return fmt.Errorf("dependency check failed: %v", strings.Join(errDependency, "; "))
	}

	s.log.Debugf("All dependency check passed")
	return nil
}
