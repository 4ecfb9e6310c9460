// Package system adapts the host clock and UUID source to the ledger ports.
package system

import (
	"context"
	"time"

	"d21ledger/contexts/governance/election-ledger/ports"

	"github.com/google/uuid"
)

// Clock reads wall-clock UTC time.
type Clock struct{}

func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// UUIDGenerator issues time-ordered UUIDv7 identifiers, so election and event
// IDs sort by creation.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

var _ ports.Clock = Clock{}
var _ ports.IDGenerator = UUIDGenerator{}
