// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package problem

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/curioloop/nlexpr/expr"
)

// Evaluation kinds used as metric labels.
const (
	KindF     = "f"
	KindGradF = "grad_f"
	KindG     = "g"
	KindJac   = "jac"
	KindH     = "h"
)

// Metrics counts solver callbacks. A nil *Metrics records nothing.
type Metrics struct {
	evaluations  *prometheus.CounterVec
	domainErrors *prometheus.CounterVec
}

// NewMetrics registers the counters on reg, or on the default registerer
// when reg is nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nlexpr",
			Name:      "evaluations_total",
			Help:      "Solver callbacks evaluated, by kind.",
		}, []string{"kind"}),
		domainErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nlexpr",
			Name:      "domain_errors_total",
			Help:      "Solver callbacks rejected with a numeric domain error, by kind.",
		}, []string{"kind"}),
	}
	for _, c := range []prometheus.Collector{m.evaluations, m.domainErrors} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) observe(kind string, err error) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(kind).Inc()
	if errors.Is(err, expr.ErrDomain) {
		m.domainErrors.WithLabelValues(kind).Inc()
	}
}
