package kv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Keys for the persisted device settings.
const (
	keyVolume     = "settings/volume"
	keyLastPlayed = "settings/last_played"
)

// Settings provides typed access to the persisted device settings.
type Settings struct {
	store Store
}

// NewSettings wraps store with typed accessors.
func NewSettings(store Store) *Settings {
	return &Settings{store: store}
}

// Volume returns the persisted output volume, or def if none is stored.
func (s *Settings) Volume(ctx context.Context, def float64) (float64, error) {
	raw, err := s.store.Get(ctx, keyVolume)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return def, fmt.Errorf("kv: bad volume value %q: %w", raw, err)
	}
	return v, nil
}

// SetVolume persists the output volume.
func (s *Settings) SetVolume(ctx context.Context, v float64) error {
	return s.store.Set(ctx, keyVolume, strconv.AppendFloat(nil, v, 'g', -1, 64))
}

// LastPlayed returns the path of the last played file, or "" if none.
func (s *Settings) LastPlayed(ctx context.Context) (string, error) {
	raw, err := s.store.Get(ctx, keyLastPlayed)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// SetLastPlayed persists the path of the last played file.
func (s *Settings) SetLastPlayed(ctx context.Context, name string) error {
	return s.store.Set(ctx, keyLastPlayed, []byte(name))
}
