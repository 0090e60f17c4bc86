package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bizsim/agegate/internal/models"
	"github.com/bizsim/agegate/internal/util/logger"
)

// Plain serializes the flag record to JSON under a single key, no
// encryption. Simpler default for installs that do not require at-rest
// protection.
type Plain struct {
	kv KV
}

func NewPlain(kv KV) *Plain {
	return &Plain{kv: kv}
}

func (p *Plain) Load(ctx context.Context) (*models.RestrictionFlags, error) {
	raw, err := p.kv.Get(ctx, flagsKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load flags: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	var flags models.RestrictionFlags
	if err := json.Unmarshal([]byte(raw), &flags); err != nil {
		// Unparsable content is treated as absent, never surfaced.
		logger.Warn("plain store: discarding unparsable cache record: %v", err)
		return nil, nil
	}
	return &flags, nil
}

func (p *Plain) Save(ctx context.Context, flags models.RestrictionFlags) error {
	data, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("marshal flags: %w", err)
	}
	if err := p.kv.Set(ctx, flagsKey, string(data)); err != nil {
		return fmt.Errorf("save flags: %w", err)
	}
	return nil
}

func (p *Plain) Clear(ctx context.Context) error {
	if err := p.kv.Delete(ctx, flagsKey); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("clear flags: %w", err)
	}
	return nil
}
