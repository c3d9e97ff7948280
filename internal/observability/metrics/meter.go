// Copyright 2026 The Hostpanel Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter carries the panel's login instruments. When disabled, the noop
// meter makes every recording free.
type Meter struct {
	meter        metric.Meter
	loginTotal   metric.Int64Counter
	loginLatency metric.Float64Histogram
}

// New creates the meter and its instruments.
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	var meter metric.Meter
	if cfg.Enabled {
		meter = otel.Meter(serviceName)
	} else {
		meter = otel.Meter("noop")
	}

	loginTotal, err := meter.Int64Counter(
		"panel_login_attempts_total",
		metric.WithDescription("Login attempts by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create login counter: %w", err)
	}

	loginLatency, err := meter.Float64Histogram(
		"panel_login_duration_seconds",
		metric.WithDescription("Login pipeline duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create login histogram: %w", err)
	}

	return &Meter{meter: meter, loginTotal: loginTotal, loginLatency: loginLatency}, nil
}

// RecordLogin records one login attempt with its outcome code.
func (m *Meter) RecordLogin(ctx context.Context, outcome string, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.loginTotal.Add(ctx, 1, attrs)
	m.loginLatency.Record(ctx, seconds, attrs)
}
