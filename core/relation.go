package core

import (
	"fmt"

	"github.com/google/uuid"
)

// RelationEdge is a directed, labeled fact linking two memory items by
// identity. Edges are unique on the (From, To, Type) triple.
type RelationEdge struct {
	From uuid.UUID `json:"from"`
	To   uuid.UUID `json:"to"`
	Type string    `json:"type"`
}

// Tuple returns a string representation of the edge as
// "(from,to,type)". It is used for generating deterministic edge keys.
func (e RelationEdge) Tuple() string {
	return "(" + e.From.String() + "," + e.To.String() + "," + e.Type + ")"
}

// Validate checks the edge for structural problems.
func (e RelationEdge) Validate() error {
	if e.Type == "" {
		return ErrEmptyRelationType
	}
	if e.From == uuid.Nil {
		return fmt.Errorf("relation source id is zero")
	}
	if e.To == uuid.Nil {
		return fmt.Errorf("relation target id is zero")
	}
	return nil
}
