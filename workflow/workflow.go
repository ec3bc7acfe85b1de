// Package workflow defines the workflow and execution records Relay reads
// and writes, and their persistence contracts.
//
// Workflows themselves are owned by the platform: they are created and
// edited through the user-facing application, and the dispatcher/executor
// pair only ever reads them. Executions are created by the executor at
// dispatch time; their terminal state is written either by the executor (on
// transport or API failure) or by the external execution engine (on
// completion).
package workflow

import (
	"github.com/nimbusflow/relay"
	"github.com/nimbusflow/relay/id"
)

// Workflow is a user-defined automation. Relay treats it as read-only: the
// only fields that matter here are identity and the enabled flag.
type Workflow struct {
	relay.Entity

	ID      id.WorkflowID `json:"id"`
	Name    string        `json:"name,omitempty"`
	Enabled bool          `json:"enabled"`
	OwnerID string        `json:"owner_id"`
}
