// Package config loads runtime configuration for chatctl.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c/-config or CHATTERBOX_CLI_CONFIG.
//  3. CHATTERBOX_* environment variables.
//  4. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string      base URL of the chatterbox API
//	-token string  session token (also CHATTERBOX_TOKEN)
//	-t int         request timeout (seconds)
//
// # JSON schema
//
//	{
//	  "server_url": "http://127.0.0.1:3001",
//	  "request_timeout": "10s"
//	}
package config
