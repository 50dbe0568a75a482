package store

import (
	"context"
	"fmt"

	"emis/internal/identity"
)

// Backend names accepted by Open.
const (
	BackendPostgres = "postgres"
	BackendBolt     = "bolt"
	BackendMemory   = "memory"
)

// Handle is an opened credential store.
type Handle interface {
	identity.Backend
	Healthy(ctx context.Context) bool
	Close() error
}

// Options selects and addresses a backend.
type Options struct {
	Backend     string
	DatabaseURL string
	BoltPath    string
	Migrate     bool
}

// Open connects the configured backend.
func Open(ctx context.Context, opts Options) (Handle, error) {
	switch opts.Backend {
	case BackendPostgres:
		db, err := NewDB(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if opts.Migrate {
			if err := db.Migrate(ctx); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return NewPostgres(db), nil
	case BackendBolt:
		return OpenBolt(opts.BoltPath)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("store: unknown backend %q", opts.Backend)
	}
}
