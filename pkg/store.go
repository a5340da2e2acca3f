package pkg

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/sparcd-io/cli/pkg/model"
)

const accountsBucket = "accounts"

// GetDB opens the local bbolt database, creating it if needed.
func GetDB(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open db %s: %w", path, err)
	}
	return db, nil
}

// EnsureAccountBuckets creates the account's bucket and its standard
// sub-buckets if they do not exist yet.
func (c *Ctrl) EnsureAccountBuckets(accountKey string) error {
	return c.DB.Update(func(tx *bolt.Tx) error {
		accountBucket, err := tx.CreateBucketIfNotExists([]byte(accountKey))
		if err != nil {
			return fmt.Errorf("failed to create account bucket: %w", err)
		}
		for _, sub := range []model.Store{model.KVConfig, model.UploadSessions} {
			if _, err := accountBucket.CreateBucketIfNotExists([]byte(sub)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", sub, err)
			}
		}
		return nil
	})
}

func getAccountStore(tx *bolt.Tx, accountKey string, storeType model.Store) (*bolt.Bucket, error) {
	accountBucket := tx.Bucket([]byte(accountKey))
	if accountBucket == nil {
		return nil, fmt.Errorf("account bucket not found")
	}
	store := accountBucket.Bucket([]byte(storeType))
	if store == nil {
		return nil, fmt.Errorf("store %s not found", storeType)
	}
	return store, nil
}

// PutValue stores a key/value pair in one of the account's sub-buckets.
func (c *Ctrl) PutValue(accountKey string, store model.Store, key, value []byte) error {
	return c.DB.Update(func(tx *bolt.Tx) error {
		bucket, err := getAccountStore(tx, accountKey, store)
		if err != nil {
			return err
		}
		return bucket.Put(key, value)
	})
}

// GetValue reads a value from one of the account's sub-buckets. A
// missing key yields a nil value and no error.
func (c *Ctrl) GetValue(accountKey string, store model.Store, key []byte) ([]byte, error) {
	var value []byte
	err := c.DB.View(func(tx *bolt.Tx) error {
		bucket, err := getAccountStore(tx, accountKey, store)
		if err != nil {
			return err
		}
		if v := bucket.Get(key); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	return value, err
}

// DeleteValue removes a key from one of the account's sub-buckets.
func (c *Ctrl) DeleteValue(accountKey string, store model.Store, key []byte) error {
	return c.DB.Update(func(tx *bolt.Tx) error {
		bucket, err := getAccountStore(tx, accountKey, store)
		if err != nil {
			return err
		}
		return bucket.Delete(key)
	})
}

// GetSessionRecord retrieves the locally recorded upload session for a
// folder path, or nil when none was recorded.
func (c *Ctrl) GetSessionRecord(accountKey, path string) (*model.SessionRecord, error) {
	value, err := c.GetValue(accountKey, model.UploadSessions, []byte(path))
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}

	var record model.SessionRecord
	if err := json.Unmarshal(value, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session record: %w", err)
	}
	return &record, nil
}

// SaveSessionRecord persists the session record under its folder path.
func (c *Ctrl) SaveSessionRecord(accountKey string, record *model.SessionRecord) error {
	record.UpdatedAt = time.Now().Unix()
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}
	return c.PutValue(accountKey, model.UploadSessions, []byte(record.Path), value)
}
