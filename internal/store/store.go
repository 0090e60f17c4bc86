package store

import (
	"context"
	"errors"

	"github.com/bizsim/agegate/internal/models"
)

// ErrNotFound keeps "key absent" consistent across every KV backend.
var ErrNotFound = errors.New("store: key not found")

// Storage keys. One key holds the (possibly encrypted) flag record; the
// encrypted adapter holds one more for the per-install key identifier.
const (
	flagsKey = "agegate:flags"
	keyIDKey = "agegate:keyid"
)

// FlagStore persists the derived restriction flags. Load never fails for
// corrupt or missing data - corruption is indistinguishable from absence and
// yields (nil, nil). Errors are reserved for backend faults (connection down,
// disk error).
type FlagStore interface {
	Load(ctx context.Context) (*models.RestrictionFlags, error)
	Save(ctx context.Context, flags models.RestrictionFlags) error
	Clear(ctx context.Context) error
}

// KV is the single-key persistence port both adapters encode into. Get
// returns ErrNotFound for absent keys; writes are whole-value replaces, so no
// consistency protocol beyond encode-then-set is needed.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
