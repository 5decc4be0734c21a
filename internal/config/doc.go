// Package config handles configuration loading for the moplexity client.
//
// # Overview
//
// Configuration is loaded from a YAML (or TOML) file with environment
// variable expansion. Anything the file leaves out keeps its default, and a
// missing file means all defaults.
//
// # Configuration File
//
// Location (first match wins):
//
//  1. Path from MOPLEXITY_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/moplexity/client.yaml
//
// A path ending in .toml is parsed as TOML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	server:
//	  base_url: "${MOPLEXITY_BACKEND}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	server:
//	  response_header_timeout: "30s"
//
// # Example
//
//	server:
//	  base_url: "http://localhost:8000"
//	  response_header_timeout: "60s"
//
//	database:
//	  path: "/home/me/.local/share/moplexity/client.db"
//
//	logging:
//	  level: "debug"    # debug, info, warn, error
//	  format: "text"    # text or json
//	  file: "/tmp/moplexity.log"
//
//	telemetry:
//	  enabled: true
//	  dir: "/tmp/moplexity-telemetry"
//
// Logs go to $XDG_STATE_HOME/moplexity/client.log by default so they never
// interleave with answers in the terminal; set logging.file to "" to log to
// stderr instead.
//
// # Validation
//
// Load validates that:
//
//   - server.base_url is an absolute http or https URL
//   - database.path is set unless database.ephemeral is true
//   - logging.format is text or json
//   - telemetry.dir is set when telemetry is enabled
package config
