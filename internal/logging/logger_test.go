// Package logging includes tests for the zap logger helpers.
package logging

import (
	"testing"

	"go.uber.org/zap"
)

// TestNewDevelopmentLogger confirms the development logger builds and logs.
func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true, "debug")
	if err != nil {
		t.Fatalf("New(true) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	if !logger.Core().Enabled(zap.DebugLevel) {
		t.Fatal("expected debug level to be enabled")
	}
	logger.Debug("development logger ready")
}

// TestNewProductionLogger ensures the production logger configuration succeeds.
func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false, "")
	if err != nil {
		t.Fatalf("New(false) error = %v", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	if logger.Core().Enabled(zap.DebugLevel) {
		t.Fatal("expected debug level to be disabled by default")
	}
	logger.Info("production logger ready")
}

// TestNewRejectsBadLevel ensures unknown levels fail fast.
func TestNewRejectsBadLevel(t *testing.T) {
	t.Parallel()

	if _, err := New(false, "loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
