package logger

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLevels(t *testing.T) {
	if got := New("development").GetLevel(); got != zerolog.DebugLevel {
		t.Errorf("Expected debug level in development, got %s", got)
	}
	if got := New("production").GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("Expected info level in production, got %s", got)
	}
	if zerolog.LevelFieldName != "severity" {
		t.Errorf("Expected level field 'severity', got %q", zerolog.LevelFieldName)
	}
}
