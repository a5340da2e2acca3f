package pkg

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/zalando/go-keyring"
	bolt "go.etcd.io/bbolt"

	"github.com/sparcd-io/cli/pkg/model"
)

// AddAccount stores account metadata in the local database and the
// session token in the system keyring.
func (c *Ctrl) AddAccount(account model.Account, token string) error {
	account.AddedAt = time.Now().Unix()
	value, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	err = c.DB.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(accountsBucket))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(account.AccountKey()), value)
	})
	if err != nil {
		return fmt.Errorf("failed to store account: %w", err)
	}

	if err := keyring.Set(model.KeyringService, account.AccountKey(), token); err != nil {
		return fmt.Errorf("failed to store token in keyring: %w", err)
	}

	return c.EnsureAccountBuckets(account.AccountKey())
}

// GetAccounts returns all stored accounts.
func (c *Ctrl) GetAccounts() ([]model.Account, error) {
	var accounts []model.Account
	err := c.DB.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(accountsBucket))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var account model.Account
			if err := json.Unmarshal(v, &account); err != nil {
				return fmt.Errorf("failed to unmarshal account %s: %w", k, err)
			}
			accounts = append(accounts, account)
			return nil
		})
	})
	return accounts, err
}

// GetAccount looks up one account by host and username. An empty host or
// username matches any value, so a lone configured account is found
// without flags.
func (c *Ctrl) GetAccount(host, username string) (*model.Account, error) {
	accounts, err := c.GetAccounts()
	if err != nil {
		return nil, err
	}
	for _, account := range accounts {
		if (host == "" || account.Host == host) && (username == "" || account.Username == username) {
			return &account, nil
		}
	}
	return nil, fmt.Errorf("no matching account found; add one with 'sparcd account add'")
}

// RemoveAccount deletes an account and its keyring token.
func (c *Ctrl) RemoveAccount(account model.Account) error {
	err := c.DB.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(accountsBucket))
		if bucket == nil {
			return nil
		}
		if err := bucket.Delete([]byte(account.AccountKey())); err != nil {
			return err
		}
		// Account data stays recoverable only through the server; the
		// local buckets are bookkeeping and go away with the account.
		if tx.Bucket([]byte(account.AccountKey())) != nil {
			return tx.DeleteBucket([]byte(account.AccountKey()))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove account: %w", err)
	}

	if err := keyring.Delete(model.KeyringService, account.AccountKey()); err != nil {
		return fmt.Errorf("failed to remove token from keyring: %w", err)
	}
	return nil
}

// TokenFor retrieves the session token for an account from the keyring.
func (c *Ctrl) TokenFor(account model.Account) (string, error) {
	token, err := keyring.Get(model.KeyringService, account.AccountKey())
	if err != nil {
		return "", fmt.Errorf("failed to read token from keyring: %w", err)
	}
	return token, nil
}
