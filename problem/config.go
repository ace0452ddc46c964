// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package problem

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/curioloop/nlexpr/constraint"
	"github.com/curioloop/nlexpr/numdiff"
)

// ErrInvalidConfig is wrapped by every Config validation failure.
var ErrInvalidConfig = errors.New("problem: invalid config")

// Config controls evaluation and derivative checking.
type Config struct {
	// Workers bounds the constraints evaluated concurrently.
	// 1 evaluates sequentially on the caller's goroutine.
	Workers int `yaml:"workers"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string      `yaml:"log_level"`
	Check    CheckConfig `yaml:"check"`
}

// CheckConfig is the file form of constraint.CheckConfig.
type CheckConfig struct {
	Method  string  `yaml:"method"`
	RelStep float64 `yaml:"rel_step"`
	JacTol  float64 `yaml:"jac_tol"`
	HessTol float64 `yaml:"hess_tol"`
}

// DefaultConfig returns sequential evaluation and central difference checks.
func DefaultConfig() Config {
	d := constraint.DefaultCheckConfig()
	return Config{
		Workers:  1,
		LogLevel: "info",
		Check: CheckConfig{
			Method:  d.Method.String(),
			RelStep: d.RelStep,
			JacTol:  d.JacTol,
			HessTol: d.HessTol,
		},
	}
}

// LoadConfig starts from DefaultConfig, overlays the YAML file at path when
// path is not empty, then the NLEXPR_WORKERS and NLEXPR_LOG_LEVEL
// environment variables, and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if v := os.Getenv("NLEXPR_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: NLEXPR_WORKERS=%q", ErrInvalidConfig, v)
		}
		cfg.Workers = n
	}
	if v := os.Getenv("NLEXPR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return cfg, cfg.Validate()
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if _, err := c.CheckConfig(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.LogLevel)
	}
	return l, nil
}

// CheckConfig converts the check settings.
func (c Config) CheckConfig() (constraint.CheckConfig, error) {
	m, err := numdiff.ParseMethod(c.Check.Method)
	if err != nil {
		return constraint.CheckConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Check.RelStep < 0 || c.Check.JacTol <= 0 || c.Check.HessTol <= 0 {
		return constraint.CheckConfig{}, fmt.Errorf("%w: check steps and tolerances must be positive", ErrInvalidConfig)
	}
	return constraint.CheckConfig{
		Method:  m,
		RelStep: c.Check.RelStep,
		JacTol:  c.Check.JacTol,
		HessTol: c.Check.HessTol,
	}, nil
}
