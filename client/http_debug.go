package client

import "os"

// debugLoggingRequested checks if exchange logging should be installed on
// every client without code changes.
//
// Activation methods:
//   - CONNECTOR_DEBUG=true (client-specific debug flag)
//   - DEBUG=true (general debug flag, common in development workflows)
//
// The logging journal dumps full requests and responses, including
// credentials carried in headers. Do not enable it in production.
func debugLoggingRequested() bool {
	return os.Getenv("CONNECTOR_DEBUG") == "true" || os.Getenv("DEBUG") == "true"
}
