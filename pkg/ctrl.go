package pkg

import (
	"sync/atomic"

	bolt "go.etcd.io/bbolt"

	"github.com/sparcd-io/cli/internal/api"
	"github.com/sparcd-io/cli/pkg/uploader"
)

// Ctrl ties together the API client, the local bbolt store, and the
// notification channel for the CLI commands.
type Ctrl struct {
	Client *api.Client
	DB     *bolt.DB
	Notify uploader.Notifier

	uploadInFlight atomic.Bool
}
