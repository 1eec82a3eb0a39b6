package kv

import (
	"context"
	"testing"
)

func TestSettingsVolume(t *testing.T) {
	ctx := context.Background()
	s := NewSettings(NewMemory())

	v, err := s.Volume(ctx, 0.8)
	if err != nil {
		t.Fatalf("Volume: %v", err)
	}
	if v != 0.8 {
		t.Fatalf("default volume = %v, want 0.8", v)
	}

	if err := s.SetVolume(ctx, 0.25); err != nil {
		t.Fatalf("SetVolume: %v", err)
	}
	v, err = s.Volume(ctx, 0.8)
	if err != nil {
		t.Fatalf("Volume: %v", err)
	}
	if v != 0.25 {
		t.Fatalf("volume = %v, want 0.25", v)
	}
}

func TestSettingsVolumeBadValue(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	if err := store.Set(ctx, keyVolume, []byte("garbage")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	s := NewSettings(store)
	v, err := s.Volume(ctx, 0.5)
	if err == nil {
		t.Fatal("Volume with corrupt value should fail")
	}
	if v != 0.5 {
		t.Fatalf("volume fallback = %v, want default 0.5", v)
	}
}

func TestSettingsLastPlayed(t *testing.T) {
	ctx := context.Background()
	s := NewSettings(NewMemory())

	name, err := s.LastPlayed(ctx)
	if err != nil {
		t.Fatalf("LastPlayed: %v", err)
	}
	if name != "" {
		t.Fatalf("LastPlayed = %q, want empty", name)
	}

	if err := s.SetLastPlayed(ctx, "alerts/chime.wav"); err != nil {
		t.Fatalf("SetLastPlayed: %v", err)
	}
	name, err = s.LastPlayed(ctx)
	if err != nil {
		t.Fatalf("LastPlayed: %v", err)
	}
	if name != "alerts/chime.wav" {
		t.Fatalf("LastPlayed = %q", name)
	}
}
