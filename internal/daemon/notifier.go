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

// Package daemon signals the provisioning daemon that a changed credential
// or configuration must be applied to the managed services.
package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the subject the provisioning daemon subscribes on.
const DefaultSubject = "hostpanel.daemon.apply"

// Notifier is a fire-and-forget signal to the provisioning daemon.
type Notifier interface {
	Notify(ctx context.Context) error
}

// NoopNotifier discards notifications. Used in tests and in deployments
// without a daemon bus.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context) error { return nil }

// NATSNotifier publishes apply requests on a NATS subject.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
}

// Connect dials the NATS server and returns a notifier publishing on
// subject (DefaultSubject when empty).
func Connect(url, subject string) (*NATSNotifier, error) {
	if subject == "" {
		subject = DefaultSubject
	}

	conn, err := nats.Connect(url,
		nats.Name("hostpanel"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon bus: %w", err)
	}

	return &NATSNotifier{conn: conn, subject: subject}, nil
}

// Notify publishes an apply request. Delivery is best effort; the daemon
// reconciles on its own schedule regardless.
func (n *NATSNotifier) Notify(ctx context.Context) error {
	payload := []byte(time.Now().UTC().Format(time.RFC3339))
	if err := n.conn.Publish(n.subject, payload); err != nil {
		return fmt.Errorf("failed to publish apply request: %w", err)
	}
	return nil
}

// Close drains the connection.
func (n *NATSNotifier) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}
