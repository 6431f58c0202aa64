package domain

import "time"

type TradeType string

const (
	TradeBuy  TradeType = "BUY"
	TradeSell TradeType = "SELL"
)

type MarketStatus string

const (
	MarketActive MarketStatus = "ACTIVE"
	MarketClosed MarketStatus = "CLOSED"
)

// Candle/snapshot resolutions. Bucket keys are left-aligned to the period.
type Period string

const (
	PeriodOneHour   Period = "ONE_HOUR"
	PeriodFourHours Period = "FOUR_HOURS"
	PeriodOneDay    Period = "ONE_DAY"
)

// Periods in ascending order; every trade fans out to all of them.
var Periods = []Period{PeriodOneHour, PeriodFourHours, PeriodOneDay}

func (p Period) Seconds() int64 {
	switch p {
	case PeriodOneHour:
		return 3600
	case PeriodFourHours:
		return 14400
	case PeriodOneDay:
		return 86400
	}
	return 0
}

// WindowSeconds is the trailing span of the per-market rolling window.
const WindowSeconds int64 = 86400

// Trade is the raw event delivered by the chain-scanning host. Ordered by
// (block number, log index) per chain; timestamps are seconds.
type Trade struct {
	ChainID          uint32    `json:"chain_id"`
	MarketID         string    `json:"market_id"`
	Trader           string    `json:"trader"`
	TradeType        TradeType `json:"trade_type"`
	TokenAmountRaw   *BigInt   `json:"token_amount_raw"`
	ReserveAmountRaw *BigInt   `json:"reserve_amount_raw"`
	PriceRaw         *BigInt   `json:"price_raw"`
	Timestamp        int64     `json:"timestamp"`
	BlockNumber      uint64    `json:"block_number"`
	TxHash           string    `json:"tx_hash"`
	LogIndex         uint32    `json:"log_index"`
}

// Market is a bonding-curve trading venue. Owned by the handler layer;
// the aggregation core only reads it for TVL/market-cap.
type Market struct {
	ID              string       `json:"id"`
	ReserveToken    string       `json:"reserve_token"`
	IssuanceToken   string       `json:"issuance_token"`
	CurrentPriceRaw *BigInt      `json:"current_price_raw"`
	FloorPriceRaw   *BigInt      `json:"floor_price_raw"`
	TotalSupplyRaw  *BigInt      `json:"total_supply_raw"`
	MarketSupplyRaw *BigInt      `json:"market_supply_raw"`
	BuyFeeBps       uint32       `json:"buy_fee_bps"`
	SellFeeBps      uint32       `json:"sell_fee_bps"`
	Status          MarketStatus `json:"status"`
}

// Token metadata fetched once over RPC and cached. Decimals are immutable.
type Token struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// WindowAgg is the live aggregate of one market's rolling window.
// AveragePriceRaw is an unweighted arithmetic mean of trade prices,
// not volume-weighted and not time-weighted.
type WindowAgg struct {
	VolumeRaw       *BigInt `json:"volume_raw"`
	TradeCount      uint64  `json:"trade_count"`
	Buys            uint64  `json:"buys"`
	Sells           uint64  `json:"sells"`
	AveragePriceRaw *BigInt `json:"average_price_raw"`
}

// MarketRollingStats is the persisted projection of a market's window,
// overwritten on every trade for that market.
type MarketRollingStats struct {
	ID                    string  `json:"id"` // <market>-<windowSeconds>
	MarketID              string  `json:"market_id"`
	WindowSeconds         int64   `json:"window_seconds"`
	VolumeRaw             *BigInt `json:"volume_raw"`
	VolumeFormatted       string  `json:"volume_formatted"`
	AveragePriceRaw       *BigInt `json:"average_price_raw"`
	AveragePriceFormatted string  `json:"average_price_formatted"`
	TradeCount            uint64  `json:"trade_count"`
	Buys                  uint64  `json:"buys"`
	Sells                 uint64  `json:"sells"`
	LastUpdatedAt         int64   `json:"last_updated_at"`
}

// PriceCandle is one OHLCV bucket for a (market, period) pair. Created on
// the first trade in the bucket; only high/low/close/volume/trades mutate
// afterwards. Never deleted.
type PriceCandle struct {
	ID              string  `json:"id"` // <market>-<period>-<bucket>
	MarketID        string  `json:"market_id"`
	Period          Period  `json:"period"`
	Timestamp       int64   `json:"timestamp"` // bucket start
	OpenRaw         *BigInt `json:"open_raw"`
	HighRaw         *BigInt `json:"high_raw"`
	LowRaw          *BigInt `json:"low_raw"`
	CloseRaw        *BigInt `json:"close_raw"`
	OpenFormatted   string  `json:"open_formatted"`
	HighFormatted   string  `json:"high_formatted"`
	LowFormatted    string  `json:"low_formatted"`
	CloseFormatted  string  `json:"close_formatted"`
	VolumeRaw       *BigInt `json:"volume_raw"`
	VolumeFormatted string  `json:"volume_formatted"`
	Trades          uint64  `json:"trades"`
}

// MarketSnapshot captures a market's point-in-time state plus its rolling
// aggregates, keyed by the hourly bucket. Append-only history.
type MarketSnapshot struct {
	ID              string  `json:"id"` // <market>-<hourBucket>
	MarketID        string  `json:"market_id"`
	Timestamp       int64   `json:"timestamp"` // hourly floor
	PriceRaw        *BigInt `json:"price_raw"`
	FloorPriceRaw   *BigInt `json:"floor_price_raw"`
	TotalSupplyRaw  *BigInt `json:"total_supply_raw"`
	MarketSupplyRaw *BigInt `json:"market_supply_raw"`
	Volume24hRaw    *BigInt `json:"volume_24h_raw"`
	Trades24h       uint64  `json:"trades_24h"`
}

// GlobalStats is the platform-wide singleton, id "global". The debt and
// collateral totals belong to the loan handlers and must survive our
// overwrite untouched.
type GlobalStats struct {
	ID                   string  `json:"id"`
	TotalMarkets         uint64  `json:"total_markets"`
	ActiveMarkets        uint64  `json:"active_markets"`
	TotalVolumeRaw       *BigInt `json:"total_volume_raw"` // normalized to 18 decimals
	TotalVolumeFormatted string  `json:"total_volume_formatted"`
	TotalDebtRaw         *BigInt `json:"total_debt_raw"`
	TotalCollateralRaw   *BigInt `json:"total_collateral_raw"`
	UpdatedAt            int64   `json:"updated_at"`
}

// GlobalStatsSnapshot is a time-bucketed platform snapshot. TVL and market
// cap are stocks (last write within the bucket wins), period volume is a
// flow (accumulated across all trades landing in the bucket).
type GlobalStatsSnapshot struct {
	ID                  string  `json:"id"` // global-<period>-<bucket>
	Period              Period  `json:"period"`
	Timestamp           int64   `json:"timestamp"` // bucket start
	TotalValueLockedRaw *BigInt `json:"total_value_locked_raw"`
	TotalMarketCapRaw   *BigInt `json:"total_market_cap_raw"`
	PeriodVolumeRaw     *BigInt `json:"period_volume_raw"`
	TotalMarkets        uint64  `json:"total_markets"`
	ActiveMarkets       uint64  `json:"active_markets"`
}

// StatsPatch is the fan-out message published after every processed trade.
type StatsPatch struct {
	Topic       string    `json:"topic"` // market:<id>
	MarketID    string    `json:"market_id"`
	GeneratedAt time.Time `json:"ts"`
	Window      WindowAgg `json:"w24h"`
}
