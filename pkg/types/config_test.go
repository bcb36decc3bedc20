package types

import (
	"errors"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name:    "empty backend returns ErrBackendEmpty",
			config:  Config{Backend: "", DataDir: "/tmp/data"},
			wantErr: ErrBackendEmpty,
		},
		{
			name:    "unknown backend returns ErrBackendUnknown",
			config:  Config{Backend: "postgres", DataDir: "/tmp/data"},
			wantErr: ErrBackendUnknown,
		},
		{
			name:    "valid jsonl config",
			config:  Config{Backend: "jsonl", DataDir: "/tmp/data"},
			wantErr: nil,
		},
		{
			name:    "valid sqlite config",
			config:  Config{Backend: "sqlite", DataDir: "/tmp/data"},
			wantErr: nil,
		},
		{
			name:    "negative max entries",
			config:  Config{Backend: "jsonl", MaxEntries: -1},
			wantErr: ErrMaxEntriesInvalid,
		},
		{
			name:    "negative max bytes",
			config:  Config{Backend: "jsonl", MaxBytes: -5},
			wantErr: ErrMaxBytesInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %v, got nil", tt.wantErr)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigEffectiveMaxEntries(t *testing.T) {
	if got := (Config{}).EffectiveMaxEntries(); got != DefaultMaxEntries {
		t.Errorf("EffectiveMaxEntries() = %d, want %d", got, DefaultMaxEntries)
	}
	if got := (Config{MaxEntries: 3}).EffectiveMaxEntries(); got != 3 {
		t.Errorf("EffectiveMaxEntries() = %d, want 3", got)
	}
}
