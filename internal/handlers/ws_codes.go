// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the notifications socket.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
	SubscribeError      = 3001 // The notification broker rejected the subscription.
)
