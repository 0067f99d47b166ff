// Package staging holds the buffer of pending submission units produced by
// an extraction run: an append-only ordered list, persisted both as a JSON
// file (the hand-off artifact to the review step) and in a durable store.
package staging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// Status is a staged unit's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
	StatusError     Status = "error"
)

// Endpoint tags routing a unit to bespoke submission logic instead of a
// generic POST. Any other endpoint value is treated as a literal API path.
const (
	TagUploadAsset      = "upload_asset"
	TagShareClass       = "share_class"
	TagLiquidityTerms   = "liquidity_terms"
	TagServiceProviders = "service_providers"
)

// Data type labels carried on staged units, as the review surface displays
// them.
const (
	DataTypeAsset            = "Asset Creation Data"
	DataTypeShareClass       = "Share Class Creation"
	DataTypeLiquidityTerms   = "Liquidity Terms Creation"
	DataTypeReturns          = "Asset Returns Creation"
	DataTypeServiceProviders = "Service Providers"
)

// Unit is one pending submission to the target system.
type Unit struct {
	ID            string          `json:"id"`
	DataType      string          `json:"data_type"`
	Payload       json.RawMessage `json:"payload"`
	Endpoint      string          `json:"endpoint"`
	SourceDetails json.RawMessage `json:"source_details"`
	Status        Status          `json:"status"`
	Error         string          `json:"error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Buffer is the append-only, ordered collection of staged units for one run.
type Buffer struct {
	units []Unit
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Stage appends a new pending unit. payload and sourceDetails are marshaled
// at staging time so later mutation of the inputs cannot change the unit.
func (b *Buffer) Stage(dataType string, payload any, endpoint string, sourceDetails any) (*Unit, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrapf(err, "staging: marshal payload for %s", dataType)
	}
	detailsJSON, err := json.Marshal(sourceDetails)
	if err != nil {
		return nil, eris.Wrapf(err, "staging: marshal source details for %s", dataType)
	}

	now := time.Now().UTC()
	unit := Unit{
		ID:            uuid.New().String(),
		DataType:      dataType,
		Payload:       payloadJSON,
		Endpoint:      endpoint,
		SourceDetails: detailsJSON,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	b.units = append(b.units, unit)
	return &b.units[len(b.units)-1], nil
}

// Units returns the staged units in staging order.
func (b *Buffer) Units() []Unit {
	return b.units
}

// Len returns the number of staged units.
func (b *Buffer) Len() int {
	return len(b.units)
}
