package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSetupInstallsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := Setup(&buf, Config{Level: "warn", Format: "text"})
	if slog.Default() != logger {
		t.Fatal("Setup() did not install the default logger")
	}

	slog.Info("hidden")
	slog.Warn("shown", "ip", "185.220.101.7")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "185.220.x.x") {
		t.Errorf("output = %q, want warn record with masked ip", out)
	}
}
