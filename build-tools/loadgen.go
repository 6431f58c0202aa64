//go:build ignore

// Run: go run ./build-tools/loadgen.go -url nats://localhost:4222 -subject trades.events -rps 500 -duration 60s -markets m1,m2,m3

package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/big"
	mrand "math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
)

type tradeEvent struct {
	ChainID          uint32 `json:"chain_id"`
	MarketID         string `json:"market_id"`
	Trader           string `json:"trader"`
	TradeType        string `json:"trade_type"`
	TokenAmountRaw   string `json:"token_amount_raw"`
	ReserveAmountRaw string `json:"reserve_amount_raw"`
	PriceRaw         string `json:"price_raw"`
	Timestamp        int64  `json:"timestamp"`
	BlockNumber      uint64 `json:"block_number"`
	TxHash           string `json:"tx_hash"`
	LogIndex         uint32 `json:"log_index"`
}

func main() {
	var (
		url      = flag.String("url", "nats://localhost:4222", "NATS server url")
		subject  = flag.String("subject", "trades.events", "subject to publish on")
		rps      = flag.Int("rps", 500, "events per second target")
		duration = flag.Duration("duration", 30*time.Second, "how long to run")
		markets  = flag.String("markets", "m1,m2,m3,m4", "comma-separated market ids")
		chainID  = flag.Uint("chain", 8453, "chain id")
	)
	flag.Parse()

	marketIDs := splitTrim(*markets)
	if len(marketIDs) == 0 {
		fmt.Println("no markets provided")
		os.Exit(1)
	}

	nc, err := nats.Connect(*url, nats.Name("floors-loadgen"))
	if err != nil {
		fmt.Printf("nats connect error: %v\n", err)
		os.Exit(1)
	}
	defer nc.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second / time.Duration(*rps))
	defer ticker.Stop()
	deadline := time.After(*duration)

	var (
		sent     uint64
		logIndex uint32
		block    uint64 = 1_000_000
	)
	start := time.Now()

loop:
	for {
		select {
		case <-sigCh:
			break loop
		case <-deadline:
			break loop
		case <-ticker.C:
			ev := randomTrade(marketIDs, uint32(*chainID), logIndex, block, start)
			payload, _ := json.Marshal(ev)
			if err := nc.Publish(*subject, payload); err != nil {
				fmt.Printf("publish error: %v\n", err)
				continue
			}
			sent++
			logIndex++
			if logIndex%50 == 0 {
				block++
			}
		}
	}

	_ = nc.Flush()
	fmt.Printf("sent %d events in %s\n", sent, time.Since(start).Round(time.Millisecond))
}

func randomTrade(markets []string, chainID uint32, logIndex uint32, block uint64, start time.Time) tradeEvent {
	market := markets[mrand.Intn(len(markets))]

	side := "BUY"
	if mrand.Intn(2) == 1 {
		side = "SELL"
	}

	// price walks a slow sine so candles have visible shape
	elapsed := time.Since(start).Seconds()
	price := 1_000_000 + int64(200_000*math.Sin(elapsed/30))

	reserve := big.NewInt(int64(mrand.Intn(5_000_000) + 1_000))

	return tradeEvent{
		ChainID:          chainID,
		MarketID:         market,
		Trader:           "0x" + randHex(20),
		TradeType:        side,
		TokenAmountRaw:   big.NewInt(int64(mrand.Intn(1_000_000) + 1)).String(),
		ReserveAmountRaw: reserve.String(),
		PriceRaw:         big.NewInt(price).String(),
		Timestamp:        time.Now().Unix(),
		BlockNumber:      block,
		TxHash:           "0x" + randHex(32),
		LogIndex:         logIndex,
	}
}

func randHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
