package debug

import (
	"testing"
	"time"
)

func TestSetEnabled(t *testing.T) {
	was := Enabled()
	defer SetEnabled(was)

	SetEnabled(true)
	if !Enabled() {
		t.Error("Enabled = false after SetEnabled(true)")
	}

	// Logging with the logger initialized must not panic.
	Log("test message %d", 1)
	LogTiming("op", time.Millisecond)
	LogEnterExit("fn")()

	SetEnabled(false)
	if Enabled() {
		t.Error("Enabled = true after SetEnabled(false)")
	}
	Log("dropped")
}
