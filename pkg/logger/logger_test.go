package logger

import "testing"

func TestInitAcceptsKnownLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		if err := Init(level); err != nil {
			t.Fatalf("init with level %q: %v", level, err)
		}
	}
}

func TestInitFallsBackOnUnknownLevel(t *testing.T) {
	if err := Init("nonsense"); err != nil {
		t.Fatalf("expected fallback to info level, got error: %v", err)
	}
	if Logger() == nil {
		t.Fatal("expected a usable logger")
	}
}

func TestWithModuleReturnsChild(t *testing.T) {
	child := WithModule("test")
	if child == nil {
		t.Fatal("expected child logger")
	}
}
