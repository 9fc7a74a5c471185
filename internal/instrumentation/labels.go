package instrumentation

import (
	"strings"

	"github.com/teemow/drivetransfer/internal/logging"
)

// Label values shared by metrics, spans and audit records.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	OAuthResultSuccess = "success"
	OAuthResultFailure = "failure"

	ServiceDrive = "drive"

	OperationList   = "list"
	OperationGet    = "get"
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// unknownDomain stands in for addresses without a usable domain.
const unknownDomain = "unknown"

// ReceiverDomain reduces an email address to a label-safe value.
// Full addresses must never become metric labels.
//
//	ReceiverDomain("bob@Example.COM") // "example.com"
//	ReceiverDomain("invalid")         // "unknown"
func ReceiverDomain(email string) string {
	domain := logging.ExtractDomain(email)
	if domain == "" {
		return unknownDomain
	}
	return strings.ToLower(domain)
}

// StatusFor maps an operation error to StatusSuccess or StatusError.
func StatusFor(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
