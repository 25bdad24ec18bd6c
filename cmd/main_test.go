package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunReturnsConfigError(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DATA_SOURCE", "bogus")
	err := run()
	assert.ErrorContains(t, err, "config:")
	assert.ErrorContains(t, err, "DATA_SOURCE")
}

func TestRunReturnsStartupError(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DATA_SOURCE", "file")
	t.Setenv("DATA_DIR", filepath.Join(t.TempDir(), "missing"))
	t.Setenv("LOG_LEVEL", "error")
	assert.ErrorContains(t, run(), "startup:")
}
