package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"leadpipe/internal/roles"
)

func TestDecisions(t *testing.T) {
	tests := []struct {
		name       string
		caps       roles.CapabilitySet
		mayWrite   bool
		mayDelete  bool
		mayHoldPII bool
	}{
		{name: "zero value grants nothing"},
		{
			name: "viewer only",
			caps: roles.CapabilitySet{Viewer: true},
		},
		{
			name:     "record manager writes without PII",
			caps:     roles.CapabilitySet{RecordManager: true},
			mayWrite: true,
		},
		{
			name:       "lead owner writes with PII",
			caps:       roles.CapabilitySet{LeadOwner: true},
			mayWrite:   true,
			mayHoldPII: true,
		},
		{
			name:       "admin does everything",
			caps:       roles.CapabilitySet{Admin: true},
			mayWrite:   true,
			mayDelete:  true,
			mayHoldPII: true,
		},
		{
			name:       "bootstrap default writes without PII or delete",
			caps:       roles.DefaultSet(),
			mayWrite:   true,
			mayDelete:  false,
			mayHoldPII: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.mayWrite, MayWrite(tt.caps), "MayWrite")
			assert.Equal(t, tt.mayDelete, MayDelete(tt.caps), "MayDelete")
			assert.Equal(t, tt.mayHoldPII, MayHoldPII(tt.caps), "MayHoldPII")
		})
	}
}
