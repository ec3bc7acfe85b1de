// Package store defines the aggregate persistence interface. Each subsystem
// (workflow, schedule) defines its own store interface; the composite Store
// composes them all. Backends: Postgres and Memory.
//
// Store and queue clients are process-wide singletons: constructed once at
// startup, passed by dependency injection into the dispatcher/executor entry
// points, and torn down on shutdown.
package store

import (
	"context"

	"github.com/nimbusflow/relay/schedule"
	"github.com/nimbusflow/relay/workflow"
)

// Store is the aggregate persistence interface. A single backend implements
// all subsystem stores.
type Store interface {
	workflow.Store
	schedule.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
