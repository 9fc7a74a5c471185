package instrumentation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReceiverDomain(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"bob@example.com", "example.com"},
		{"Bob@Example.COM", "example.com"},
		{"carol@sub.example.org", "sub.example.org"},
		{"invalid", "unknown"},
		{"", "unknown"},
		{"@", "unknown"},
		{"user@", "unknown"},
		{"a@b@c", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, ReceiverDomain(tt.email))
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, StatusSuccess, StatusFor(nil))
	assert.Equal(t, StatusError, StatusFor(errors.New("boom")))
}
