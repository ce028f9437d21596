package log_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/danielmorandini/medusa/log"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	prev := log.CurrentLevel()
	defer log.SetLevel(prev)

	log.SetLevel(log.WarnLevel)
	log.Info.Printf("hidden %d", 1)
	log.Warn.Printf("shown %d", 2)
	log.Error.Println("also shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info message logged at warn level: %q", out)
	}
	if !strings.Contains(out, "WARN  shown 2") {
		t.Fatalf("missing warn message: %q", out)
	}
	if !strings.Contains(out, "ERROR also shown") {
		t.Fatalf("missing error message: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want log.Level
		fail bool
	}{
		{"debug", log.DebugLevel, false},
		{" INFO ", log.InfoLevel, false},
		{"warning", log.WarnLevel, false},
		{"error", log.ErrorLevel, false},
		{"disabled", log.DisabledLevel, false},
		{"loud", log.InfoLevel, true},
	}

	for _, tt := range tests {
		l, err := log.ParseLevel(tt.in)
		if tt.fail {
			if err == nil {
				t.Fatalf("%q: expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatal(err)
		}
		if l != tt.want {
			t.Fatalf("%q: found %v, wanted %v", tt.in, l, tt.want)
		}
	}
}
