package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFileWritesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.log")

	logger, err := NewFile(path, "debug")
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	var l Logger = logger
	l.Info("Cyclic data transmission started")
	logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "Cyclic data transmission started") {
		t.Fatalf("log file content: %s", data)
	}
}

func TestInvalidLevel(t *testing.T) {
	if _, err := NewConsole("loud"); err == nil {
		t.Fatal("invalid level accepted")
	}
}
