package domain

import (
	"fmt"
	"strings"
)

// GlobalStatsID is the singleton GlobalStats key.
const GlobalStatsID = "global"

// TradeID = "<chain_id>:<tx_hash>:<log_index>", used for dedupe.
func TradeID(chainID uint32, txHash string, logIndex uint32) string {
	return fmt.Sprintf("%d:%s:%d", chainID, strings.ToLower(txHash), logIndex)
}

// BucketStart left-aligns ts to a fixed-width bucket.
func BucketStart(ts, periodSeconds int64) int64 {
	return ts / periodSeconds * periodSeconds
}

func RollingStatsID(marketID string, windowSeconds int64) string {
	return fmt.Sprintf("%s-%d", marketID, windowSeconds)
}

func CandleID(marketID string, p Period, bucket int64) string {
	return fmt.Sprintf("%s-%s-%d", marketID, p, bucket)
}

func MarketSnapshotID(marketID string, hourBucket int64) string {
	return fmt.Sprintf("%s-%d", marketID, hourBucket)
}

func GlobalSnapshotID(p Period, bucket int64) string {
	return fmt.Sprintf("global-%s-%d", p, bucket)
}

// PatchTopic is the NATS subject for per-market stats patches.
func PatchTopic(marketID string) string {
	return "market:" + marketID
}
