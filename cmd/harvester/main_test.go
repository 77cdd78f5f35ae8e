package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"kornews/internal/config"
	"kornews/internal/logger"
)

func TestNewLogger_Override(t *testing.T) {
	var buf bytes.Buffer

	log, err := newLogger(config.LoggingConfig{Level: "info", Format: "text"}, "debug", &buf)
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}

	log.Debug("page fetched")

	if !strings.Contains(buf.String(), "page fetched") {
		t.Errorf("override to debug not applied: %q", buf.String())
	}
}

func TestNewLogger_NoOverrideKeepsConfig(t *testing.T) {
	var buf bytes.Buffer

	log, err := newLogger(config.LoggingConfig{Level: "warn", Format: "text"}, "", &buf)
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}

	log.Info("hidden")

	if buf.Len() != 0 {
		t.Errorf("configured level not kept: %q", buf.String())
	}
}

func TestNewLogger_RejectsTypo(t *testing.T) {
	_, err := newLogger(config.LoggingConfig{Level: "info", Format: "text"}, "verbos", &bytes.Buffer{})
	if !errors.Is(err, logger.ErrInvalidLevel) {
		t.Errorf("newLogger() = %v, want ErrInvalidLevel", err)
	}
}
