package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"kctvfetch/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "timestamps", "sample", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"timestamps", "sample", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestFailureDispositionMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want services.Disposition
	}{
		{"nil", nil, services.DispositionSkip},
		{"not found", services.Wrap(services.ErrNotFound, "resolve", "search", "no article", nil), services.DispositionSkip},
		{"validation", fmt.Errorf("download: %w", services.ErrValidation), services.DispositionSkip},
		{"configuration", services.Wrap(services.ErrConfiguration, "fetch", "", "not a directory", nil), services.DispositionAbort},
		{"transient", services.Wrap(services.ErrTransient, "download", "get", "reset", errors.New("io")), services.DispositionAbort},
		{"cancelled", fmt.Errorf("resolve: %w", context.Canceled), services.DispositionAbort},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.FailureDisposition(tc.err); got != tc.want {
				t.Fatalf("FailureDisposition(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}
