package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCmdRejectsMissingConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	err := cmd.ExecuteContext(context.Background())
	assert.Error(t, err)
}

func TestRootCmdRejectsUnknownFlag(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--bogus"})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}
