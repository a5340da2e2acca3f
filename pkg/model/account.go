package model

import "fmt"

// Account identifies one user on one sandbox server.
type Account struct {
	Host     string `json:"host"`
	Username string `json:"username"`
	AddedAt  int64  `json:"addedAt"` // Unix timestamp (seconds)
}

// AccountKey returns the key under which this account's data is stored.
func (a Account) AccountKey() string {
	return fmt.Sprintf("%s/%s", a.Host, a.Username)
}
