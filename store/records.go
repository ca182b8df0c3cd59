// Package store persists scraped records and crawler state in BoltDB.
package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"jobmap/record"
)

var (
	batchesBucket = []byte("batches")

	ErrBatchNotFound = errors.New("batch not found")
)

// Records stores scraped records in named batches, one batch per scrape.
// Order inside a batch is the ingestion order.
type Records struct {
	db *bolt.DB
}

func OpenRecords(path string) (*Records, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for BoltDB: %w", err)
	}
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(batchesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &Records{db: db}, nil
}

// Save replaces the batch with recs.
func (s *Records) Save(batch string, recs []record.Record) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(batchesBucket)
		if root.Bucket([]byte(batch)) != nil {
			if err := root.DeleteBucket([]byte(batch)); err != nil {
				return err
			}
		}
		b, err := root.CreateBucket([]byte(batch))
		if err != nil {
			return fmt.Errorf("create batch %q: %w", batch, err)
		}
		for i, r := range recs {
			data, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("encode record %d: %w", i, err)
			}
			if err := b.Put(seqKey(i), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load returns the records of batch in the order they were saved.
func (s *Records) Load(batch string) ([]record.Record, error) {
	var out []record.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(batchesBucket).Bucket([]byte(batch))
		if b == nil {
			return fmt.Errorf("%w: %q", ErrBatchNotFound, batch)
		}
		return b.ForEach(func(_, v []byte) error {
			var r record.Record
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			out = append(out, r)
			return nil
		})
	})
	return out, err
}

// Batches lists batch names in key order.
func (s *Records) Batches() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(batchesBucket).ForEachBucket(func(k []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}

func (s *Records) Close() error {
	return s.db.Close()
}

func seqKey(i int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(i))
	return k
}
