package relay

import "github.com/nimbusflow/relay/id"

// ID is the primary identifier type for all Relay entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
