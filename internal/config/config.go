// Package config holds process configuration and the YAML firmware manifest
// that describes a board, its kernel limits and its tasks.
package config

// Version is the tickos release, overridable with
// -ldflags "-X github.com/me/tickos/internal/config.Version=...".
var Version = "0.1.0-dev"

// ServerConfig holds configuration for the trace API server.
type ServerConfig struct {
	Addr      string // Listen address (default ":8080")
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: text, json
	DBPath    string // SQLite database path (default ~/.tickos/tickos.db, ":memory:" for testing)
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
	}
}
