package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveNameFromEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		first string
		last  string
	}{
		{"dot separated", "jane.doe@example.org", "Jane", "Doe"},
		{"underscore separated", "jane_doe@example.org", "Jane", "Doe"},
		{"single segment", "jane@example.org", "Jane", "User"},
		{"plus tag keeps outer segments", "jane+registry@example.org", "Jane", "Registry"},
		{"three segments uses first and last", "jane.van.doe@example.org", "Jane", "Doe"},
		{"separator-only local part", "...@example.org", "User", "User"},
		{"empty", "", "User", "User"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := DeriveNameFromEmail(tt.email)
			assert.Equal(t, tt.first, first)
			assert.Equal(t, tt.last, last)
		})
	}
}
