package database

import (
	"context"
	"errors"
	"testing"
)

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, DefaultEventLimit},
		{-5, DefaultEventLimit},
		{10, 10},
		{MaxEventLimit, MaxEventLimit},
		{MaxEventLimit + 1, MaxEventLimit},
	}

	for _, tc := range tests {
		if got := ClampLimit(tc.in); got != tc.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestProviderNotInitialized(t *testing.T) {
	ResetBackend()
	ctx := context.Background()

	if IsInitialized() {
		t.Error("expected backend to be uninitialized")
	}
	if _, err := GetStudentStore(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("GetStudentStore() error = %v, want ErrNotInitialized", err)
	}
	if _, err := GetAttendanceLog(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("GetAttendanceLog() error = %v, want ErrNotInitialized", err)
	}
	if _, err := GetSessionStore(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("GetSessionStore() error = %v, want ErrNotInitialized", err)
	}
}
