// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package problem

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curioloop/nlexpr/numdiff"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nlexpr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	cc, err := cfg.CheckConfig()
	require.NoError(t, err)
	assert.Equal(t, numdiff.Central, cc.Method)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
workers: 4
log_level: debug
check:
  method: forward
  jac_tol: 1e-5
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Workers)
	l, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l)

	cc, err := cfg.CheckConfig()
	require.NoError(t, err)
	assert.Equal(t, numdiff.Forward, cc.Method)
	assert.Equal(t, 1e-5, cc.JacTol)
	assert.Equal(t, DefaultConfig().Check.HessTol, cc.HessTol)
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("NLEXPR_WORKERS", "8")
	t.Setenv("NLEXPR_LOG_LEVEL", "warn")
	cfg, err := LoadConfig(writeConfig(t, "workers: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "warn", cfg.LogLevel)

	t.Setenv("NLEXPR_WORKERS", "many")
	_, err = LoadConfig("")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestInvalidConfig(t *testing.T) {
	for name, body := range map[string]string{
		"workers":   "workers: 0\n",
		"level":     "log_level: loud\n",
		"method":    "check:\n  method: backward\n",
		"tolerance": "check:\n  hess_tol: -1\n",
	} {
		_, err := LoadConfig(writeConfig(t, body))
		assert.ErrorIs(t, err, ErrInvalidConfig, name)
	}

	_, err := LoadConfig(writeConfig(t, "workers: [\n"))
	assert.Error(t, err)
	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
