package domain

import "time"

// ChainStatus is the result of one connectivity check.
type ChainStatus struct {
	ChainID     uint64
	BlockNumber uint64
	GasPrice    *GasPrice
	Latency     time.Duration
	CheckedAt   time.Time
}
