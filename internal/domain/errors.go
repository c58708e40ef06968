package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrLockHeld          = errors.New("lock already held")
	ErrLedgerCorrupt     = errors.New("watermark ledger corrupt")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrConfiguration     = errors.New("configuration error")
)
