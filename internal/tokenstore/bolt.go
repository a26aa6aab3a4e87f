package tokenstore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var sessionBucket = []byte("session")

// BoltKV stores the session keys in a single bbolt bucket.
type BoltKV struct {
	db *bbolt.DB
}

var _ KV = (*BoltKV)(nil)

func NewBoltKV(db *bbolt.DB) *BoltKV {
	return &BoltKV{db: db}
}

// OpenBoltKV opens (creating if needed) the session file at path. bbolt
// holds an exclusive file lock, so a second process gets an error after a
// short wait instead of blocking forever.
func OpenBoltKV(path string) (*BoltKV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open session file: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create session bucket: %w", err)
	}

	return NewBoltKV(db), nil
}

func (b *BoltKV) Close() error {
	return b.db.Close()
}

func (b *BoltKV) Load(keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(sessionBucket)
		if bucket == nil {
			return nil
		}
		for _, key := range keys {
			if v := bucket.Get([]byte(key)); v != nil {
				out[key] = string(v)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read session keys: %w", err)
	}
	return out, nil
}

func (b *BoltKV) Apply(puts map[string]string, deletes []string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(sessionBucket)
		if err != nil {
			return err
		}
		for _, key := range deletes {
			if err := bucket.Delete([]byte(key)); err != nil {
				return err
			}
		}
		for key, value := range puts {
			if err := bucket.Put([]byte(key), []byte(value)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write session keys: %w", err)
	}
	return nil
}
