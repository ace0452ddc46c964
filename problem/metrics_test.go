// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package problem

import (
	"log/slog"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curioloop/nlexpr/constraint"
	"github.com/curioloop/nlexpr/expr"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	x0, x1 := expr.Variable(0), expr.Variable(1)
	p := New(2, constraint.NewObjective(expr.Mul(x0, x1)),
		constraint.New(expr.Log(x0), 0, math.Inf(1)))
	p.Logger = slog.New(slog.DiscardHandler)
	p.Metrics = m
	require.NoError(t, p.Setup())

	x := []float64{2, 3}
	for range 3 {
		_, err := p.EvalF(x)
		require.NoError(t, err)
	}
	require.NoError(t, p.EvalH(x, 1, []float64{1}, make([]float64, p.NNZHess())))
	assert.Error(t, p.EvalG([]float64{-1, 3}, make([]float64, 1)))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.evaluations.WithLabelValues(KindF)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evaluations.WithLabelValues(KindH)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evaluations.WithLabelValues(KindG)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.domainErrors.WithLabelValues(KindG)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.domainErrors.WithLabelValues(KindF)))

	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.observe(KindF, nil) })
}
