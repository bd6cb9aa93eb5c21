package usecase

import (
	"context"

	"gigspace/internal/infrastructure/channel"
)

// EventChannel is the slice of the shared channel client the use cases
// depend on. Tests substitute a fake; production wires the websocket client.
type EventChannel interface {
	On(event string, handler channel.Handler) (cancel func())
	Emit(event string, payload interface{}) error
	EmitWithAck(ctx context.Context, event string, payload interface{}) (channel.Ack, error)
	OnDisconnect(fn func()) (cancel func())
	JoinUserRoom(userID string) error
	JoinOrderRoom(orderID int64) error
	JoinDirectRoom(localUserID, peerID string) error
}
