package repository

import (
	"context"

	"gigspace/internal/domain/entity"
)

// MessageRepository is the request/response surface of the marketplace
// backend that owns message and ticket persistence.
type MessageRepository interface {
	// FetchOrderMessages returns the history of one order conversation.
	FetchOrderMessages(ctx context.Context, orderID int64) ([]entity.Message, error)

	// FetchTickets returns the order-scoped conversation summaries for the
	// local user.
	FetchTickets(ctx context.Context) ([]entity.Ticket, error)

	// FetchDirectMessages returns direct messages for the local user,
	// restricted to one peer when receiverID is non-empty.
	FetchDirectMessages(ctx context.Context, receiverID string) ([]entity.Message, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
}
