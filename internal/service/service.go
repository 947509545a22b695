// Package service holds the POS core: the inventory ledger, recipe
// catalog, order lifecycle engine, PIN authorization gate, expenditure
// bookkeeping, and the analytics aggregator. Services are storage-agnostic
// and publish change notifications through a Broadcaster.
package service

import (
	"context"

	"github.com/google/uuid"
)

// Broadcaster publishes fire-and-forget change events to realtime
// subscribers. Satisfied by *ws.Hub.
type Broadcaster interface {
	Broadcast(event string, payload any)
}

// PinVerifier authorizes destructive operations with a short numeric
// secret. Satisfied by *AccountService.
type PinVerifier interface {
	VerifyPIN(ctx context.Context, actorID uuid.UUID, actorRole, pin, remoteAddr string) error
}
