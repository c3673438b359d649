// internal/delivery/registry_test.go
package delivery

import (
	"testing"
)

func TestRegistryDeliver(t *testing.T) {
	reg := NewRegistry()

	var gotKey, gotMsg string
	reg.Register("test:", func(sessionKey, message string) error {
		gotKey = sessionKey
		gotMsg = message
		return nil
	})

	err := reg.Deliver("test:123", "sessionlog run: 1 succeeded, 0 failed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "test:123" {
		t.Errorf("expected session key %q, got %q", "test:123", gotKey)
	}
	if gotMsg != "sessionlog run: 1 succeeded, 0 failed" {
		t.Errorf("unexpected message %q", gotMsg)
	}
}

func TestRegistryNoHandler(t *testing.T) {
	reg := NewRegistry()

	err := reg.Deliver("unknown:123", "hello")
	if err == nil {
		t.Fatal("expected error for unregistered prefix, got nil")
	}
}

func TestRegistryLogHandler(t *testing.T) {
	if err := NewRegistry().Deliver("log:daily", "report"); err != nil {
		t.Fatalf("expected log handler to accept report, got %v", err)
	}
}

func TestRegistryLongestPrefixWins(t *testing.T) {
	reg := NewRegistry()

	var generic, specific int
	reg.Register("telegram:", func(sessionKey, message string) error {
		generic++
		return nil
	})
	reg.Register("telegram:42:", func(sessionKey, message string) error {
		specific++
		return nil
	})

	for i := 0; i < 5; i++ {
		if err := reg.Deliver("telegram:42:100", "msg"); err != nil {
			t.Fatalf("deliver error: %v", err)
		}
	}
	if err := reg.Deliver("telegram:7", "msg"); err != nil {
		t.Fatalf("deliver error: %v", err)
	}

	if specific != 5 {
		t.Errorf("expected 5 specific calls, got %d", specific)
	}
	if generic != 1 {
		t.Errorf("expected 1 generic call, got %d", generic)
	}
}
