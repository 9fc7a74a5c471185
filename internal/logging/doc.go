// Package logging provides structured logging utilities for drivetransfer.
//
// All components log through log/slog. This package keeps attribute names
// consistent across the codebase and makes sure identity data never lands in
// logs in clear text.
//
// # Usage Patterns
//
// Create a logger scoped to an operation:
//
//	logger := logging.WithOperation(slog.Default(), "drive.transfer")
//	logger.Info("transfer initiated",
//	    logging.FileID(fileID),
//	    logging.Status(logging.StatusSuccess))
//
// Hash an email before logging it:
//
//	logger.Info("signed in", logging.UserHash(email))
//
// # Security Considerations
//
//   - Account emails are hashed so log lines can be correlated without PII
//   - OAuth tokens are never logged, only their length via SanitizeToken
package logging
