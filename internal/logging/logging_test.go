package logging

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"ERROR", zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := New(tt.level, false)
			if err != nil {
				t.Fatalf("New(%q) error = %v", tt.level, err)
			}
			if !logger.Core().Enabled(tt.want) {
				t.Errorf("level %v should be enabled", tt.want)
			}
			if tt.want > zapcore.DebugLevel && logger.Core().Enabled(tt.want-1) {
				t.Errorf("level %v should be disabled", tt.want-1)
			}
		})
	}
}

func TestNew_Development(t *testing.T) {
	logger, err := New("debug", true)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug should be enabled")
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New("verbose", false); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewConfig_NoSampling(t *testing.T) {
	for _, development := range []bool{false, true} {
		cfg, err := newConfig("info", development)
		if err != nil {
			t.Fatalf("newConfig() error = %v", err)
		}
		if cfg.Sampling != nil {
			t.Errorf("development=%v: sampling should be disabled", development)
		}
	}
}

func TestNewWithWriter_KeepsRepeatedLines(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "info", false)
	if err != nil {
		t.Fatalf("NewWithWriter() error = %v", err)
	}

	for i := 0; i < 250; i++ {
		logger.Error("same message")
	}
	logger.Sync()

	lines := strings.Count(buf.String(), "\n")
	if lines != 250 {
		t.Errorf("got %d lines, want 250", lines)
	}
	if !strings.Contains(buf.String(), `"service":"chatload"`) {
		t.Errorf("missing service field: %s", strings.SplitN(buf.String(), "\n", 2)[0])
	}
}
