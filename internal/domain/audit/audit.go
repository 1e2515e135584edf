// Package audit defines the append-only audit port used by the domain
// services and helpers for actor enrichment.
package audit

import (
	"context"

	"pressledger/internal/core/actor"
	"pressledger/internal/core/id"
)

// Action is the audited operation kind.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionConfirm Action = "confirm"
	ActionPost    Action = "post"
	ActionReverse Action = "reverse"
	ActionVoid    Action = "void"
	ActionWarning Action = "warning"
)

// Record is one append-only audit fact. Changes carries minimal before/after
// diffs keyed by field name.
type Record struct {
	EntityType string
	EntityID   id.ID
	Action     Action
	Changes    map[string]any
}

// Recorder persists audit records. The postgres implementation writes them
// in the caller's transaction, so a rolled-back posting leaves no trace.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// Change builds a single before/after diff value.
func Change(old, new any) map[string]any {
	return map[string]any{"old": old, "new": new}
}

// EnrichCreatedBy sets CreatedBy and UpdatedBy fields from the context actor.
// Use in before-create hooks. No-op when no actor is present.
func EnrichCreatedBy(ctx context.Context, createdBy, updatedBy *string) {
	a := actor.FromContext(ctx)
	if a.ID != "" && createdBy != nil && updatedBy != nil {
		*createdBy = a.ID
		*updatedBy = a.ID
	}
}

// EnrichUpdatedBy sets only the UpdatedBy field from the context actor.
func EnrichUpdatedBy(ctx context.Context, updatedBy *string) {
	a := actor.FromContext(ctx)
	if a.ID != "" && updatedBy != nil {
		*updatedBy = a.ID
	}
}
