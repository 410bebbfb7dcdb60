// Package policy holds the pure access decisions over a capability set.
// No I/O happens here; callers resolve capabilities first and pass them in
// explicitly (there is deliberately no ambient session state).
package policy

import "leadpipe/internal/roles"

// MayWrite reports whether the capability set permits creating or updating
// records.
func MayWrite(caps roles.CapabilitySet) bool {
	return caps.RecordManager || caps.LeadOwner || caps.Admin
}

// MayDelete reports whether the capability set permits deleting records.
// Deletion is irreversible and restricted to admins.
func MayDelete(caps roles.CapabilitySet) bool {
	return caps.Admin
}

// MayHoldPII reports whether records written by this capability set may
// retain email and phone fields. Consent is checked separately at the
// redaction step.
func MayHoldPII(caps roles.CapabilitySet) bool {
	return caps.LeadOwner || caps.Admin
}
