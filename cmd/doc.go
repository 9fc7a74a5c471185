// Package cmd implements the command-line interface for drivetransfer.
//
// This package provides the following commands:
//   - serve: Start the web application (default when no subcommand is given)
//   - version: Display version information
//
// Settings are resolved from defaults, drivetransfer.toml, DRIVETRANSFER_*
// environment variables (optionally seeded from .env) and flags, with flags
// taking precedence.
package cmd
