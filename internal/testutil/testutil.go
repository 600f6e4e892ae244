// Package testutil provides assertion helpers shared by package tests.
// This is an internal package and not part of the public API.
package testutil

import (
	"errors"
	"testing"
)

// Must fails the test if err is not nil
func Must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// MustErrorIs fails the test unless errors.Is(err, target)
func MustErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}

// MustEqual fails the test if got != want
func MustEqual(t *testing.T, got, want any) {
	t.Helper()
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}
