// Package archive keeps draw receipts so winner selections can be replayed later.
package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/unclebandit/squdy-backend/internal/config"
	"github.com/unclebandit/squdy-backend/internal/model"
)

// ErrReceiptExists is returned by Put when the campaign already has a receipt.
// Receipts are write-once.
var ErrReceiptExists = errors.New("draw receipt already archived")

// Store persists one receipt per campaign. Get returns nil, nil when nothing is stored.
type Store interface {
	Put(ctx context.Context, receipt *model.DrawReceipt) error
	Get(ctx context.Context, campaignID int) (*model.DrawReceipt, error)
	Close() error
}

// New opens the store selected by cfg.Driver
func New(ctx context.Context, cfg config.ArchiveConfig) (Store, error) {
	switch cfg.Driver {
	case "bolt":
		return NewBoltStore(cfg.Path)
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown archive driver %q", cfg.Driver)
	}
}
