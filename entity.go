package relay

import "time"

// Entity carries the audit timestamps embedded in every persisted record.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Touch stamps CreatedAt (if unset) and UpdatedAt with now.
func (e *Entity) Touch(now time.Time) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
}
