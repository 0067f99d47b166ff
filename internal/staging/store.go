package staging

import (
	"context"
	"encoding/json"
)

// Store is the durable home of staged units across runs. SQLite is the
// default driver; postgres is available for shared deployments.
type Store interface {
	// SaveAll upserts units in buffer order.
	SaveAll(ctx context.Context, units []Unit) error

	// List returns all units in staging order.
	List(ctx context.Context) ([]Unit, error)

	// Get returns one unit by id.
	Get(ctx context.Context, id string) (*Unit, error)

	// UpdatePayload replaces a unit's payload. This is the only field the
	// review surface may edit.
	UpdatePayload(ctx context.Context, id string, payload json.RawMessage) error

	// MarkSubmitted transitions a unit to submitted and clears any error.
	MarkSubmitted(ctx context.Context, id string) error

	// MarkError records a submission failure; the unit stays resubmittable.
	MarkError(ctx context.Context, id, msg string) error

	Close() error
}
