package model

import "time"

// BatchSummary captures metrics from a single batch grouping run.
type BatchSummary struct {
	RunID              string
	RunLabel           string
	Input              string
	InputSHA256        string
	CatalogFingerprint string
	Destination        string
	AlreadyGrouped     bool
	RowsRead           int64
	RowsClassified     int64
	RowsPreMDC         int64
	RowsUngroupable    int64
	RowsFailed         int64
	RowsWritten        int64
	DRGCounts          map[string]int64
	DurationGroup      time.Duration
	DurationFinalize   time.Duration
	DurationTotal      time.Duration
}
