package graphql

import "codeberg.org/mutker/pressurebar/internal/errors"

const (
	// Connection Errors
	ErrDialFailed          = errors.ErrorCode("graphql_dial_failed")
	ErrSubprotocolRejected = errors.ErrorCode("graphql_subprotocol_rejected")
	ErrConnectionLost      = errors.ErrorCode("graphql_connection_lost")

	// Transport Errors
	ErrReadFailed        = errors.ErrorCode("graphql_read_failed")
	ErrWriteFailed       = errors.ErrorCode("graphql_write_failed")
	ErrProtocolViolation = errors.ErrorCode("graphql_protocol_violation")
	ErrServerError       = errors.ErrorCode("graphql_server_error")
	ErrStreamFailed      = errors.ErrorCode("graphql_stream_failed")

	// Subscription Errors
	ErrAlreadySubscribed = errors.ErrorCode("graphql_already_subscribed")
	ErrClosed            = errors.ErrorCode("graphql_client_closed")
)

func init() {
	errors.RegisterMessages(map[errors.ErrorCode]string{
		ErrDialFailed:          "Failed to connect to subscription endpoint",
		ErrSubprotocolRejected: "Server did not accept the graphql-ws sub-protocol",
		ErrConnectionLost:      "Connection lost, not reconnecting",
		ErrReadFailed:          "Failed to read from subscription stream",
		ErrWriteFailed:         "Failed to write to subscription stream",
		ErrProtocolViolation:   "Unexpected message on subscription stream",
		ErrServerError:         "Server reported an error",
		ErrStreamFailed:        "Subscription stream failed",
		ErrAlreadySubscribed:   "Client already carries a subscription",
		ErrClosed:              "Client is closed",
	})
}
