// Package models holds the identity registry record types.
package models

import (
	id "portrait/pkg/domain"
)

// Identity is one issued Portrait ID and its current binding. IDs are
// assigned sequentially starting at 1 and are never reused; an identity
// never returns to the unassigned state.
type Identity struct {
	ID        id.PortraitID `json:"portrait_id"`
	Owner     id.Address    `json:"owner"`
	Tokenized bool          `json:"tokenized"`
}
