package database

import "github.com/leca/imgdrop/internal/model"

// Ledger records uploaded assets for the accounting endpoints. It is
// advisory: the filesystem store remains the source of truth, and callers
// treat ledger failures as non-fatal.
type Ledger interface {
	RecordAsset(a *model.Asset) error
	RemoveAsset(filename string) error
	Stats() ([]model.TypeStat, error)
	Totals() (count int, bytes int64, err error)
	Close() error
}
