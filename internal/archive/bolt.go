package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/unclebandit/squdy-backend/internal/model"
)

var bucketReceipts = []byte("receipts")

// BoltStore keeps receipts in a local BoltDB file
type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketReceipts)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", bucketReceipts, err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Put(ctx context.Context, receipt *model.DrawReceipt) error {
	data, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("failed to marshal receipt: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReceipts)
		key := receiptKey(receipt.CampaignID)
		if b.Get(key) != nil {
			return ErrReceiptExists
		}
		return b.Put(key, data)
	})
}

func (s *BoltStore) Get(ctx context.Context, campaignID int) (*model.DrawReceipt, error) {
	var receipt *model.DrawReceipt
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketReceipts).Get(receiptKey(campaignID))
		if data == nil {
			return nil
		}
		receipt = &model.DrawReceipt{}
		return json.Unmarshal(data, receipt)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt for campaign %d: %w", campaignID, err)
	}
	return receipt, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func receiptKey(campaignID int) []byte {
	return []byte(strconv.Itoa(campaignID))
}
