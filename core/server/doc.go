// Package server holds the HTTP server configuration.
//
// While the main application entry point handles the server startup, this package
// defines the configuration structure of the listener and its authentication.
//
// # Configuration
//
// The Config struct defines the HTTP port and the API key checked by the auth middleware.
// An empty key disables authentication.
//
// # Usage
//
// This package is primarily used by the core/config package to embed server settings
// and by the start command to configure the listener.
package server
