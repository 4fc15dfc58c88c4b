package logx_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gaspardpetit/callrelay/internal/logx"
	"github.com/rs/zerolog"
)

func TestConfigureLogLevel(t *testing.T) {
	logx.Configure("all", "")
	if zerolog.GlobalLevel() != zerolog.TraceLevel {
		t.Fatalf("expected trace level, got %s", zerolog.GlobalLevel())
	}

	logx.Configure("WARNING", "")
	if zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Fatalf("expected warn level, got %s", zerolog.GlobalLevel())
	}

	logx.Configure("none", "")
	if zerolog.GlobalLevel() != zerolog.Disabled {
		t.Fatalf("expected disabled level, got %s", zerolog.GlobalLevel())
	}

	logx.Configure("bogus", "")
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info level, got %s", zerolog.GlobalLevel())
	}
}

func TestConfigureWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "callrelay.log")
	logx.Configure("info", path)
	defer logx.Close()

	logx.Log.Info().Str("relay_id", "r1").Msg("hello")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(b) == 0 {
		t.Fatalf("expected log file to contain output")
	}
}
