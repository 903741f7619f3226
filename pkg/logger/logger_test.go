package logx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestInitLevels(t *testing.T) {
	Init(Config{Debug: true})
	if got := log.Logger.GetLevel(); got != zerolog.DebugLevel {
		t.Fatalf("level = %v, want debug", got)
	}

	Init()
	if got := log.Logger.GetLevel(); got != zerolog.InfoLevel {
		t.Fatalf("level = %v, want info", got)
	}
}

func TestInitWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.log")
	Init(Config{File: path, MaxSizeMB: 1})
	t.Cleanup(func() { Init() })

	log.Info().Str("component", "logx-test").Msg("hello file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"component":"logx-test"`) {
		t.Fatalf("log file missing entry: %s", data)
	}
}

func TestFileWriterDisabled(t *testing.T) {
	if w := fileWriter(&Config{}); w != nil {
		t.Fatalf("expected nil writer when File is empty")
	}
}

func TestInitSetsContextFallback(t *testing.T) {
	Init()
	if zerolog.DefaultContextLogger != &log.Logger {
		t.Fatal("DefaultContextLogger should point at the global logger")
	}
}
