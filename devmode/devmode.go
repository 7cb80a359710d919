// Package devmode provides shared configuration for development mode.
package devmode

// APIKey is the shared development mode API key accepted by backends
// running in development mode. It is intentionally obvious and must never
// be used in production.
const APIKey = "LOCAL_DEV_MODE_NOT_FOR_PRODUCTION"
