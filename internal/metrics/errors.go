package metrics

import "codeberg.org/mutker/pressurebar/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig     = errors.ErrInvalidConfig
	ErrInvalidListenAddr = errors.ErrorCode("metrics_invalid_listen_addr")

	// Listener Errors
	ErrListen       = errors.ErrorCode("metrics_listen_failed")
	ErrRegistration = errors.ErrorCode("metrics_registration_failed")

	// Service Errors
	ErrServiceShutdown = errors.ErrCloseMetrics
)

func init() {
	errors.RegisterMessages(map[errors.ErrorCode]string{
		ErrInvalidListenAddr: "Metrics listen address must be set",
		ErrListen:            "Failed to listen for metrics scrapes",
		ErrRegistration:      "Failed to register metrics collectors",
	})
}
