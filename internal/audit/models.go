package audit

import "time"

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	RecordID  string    `json:"record_id,omitempty"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
}

const (
	ActionLeadCreated              = "lead_created"
	ActionLeadUpdated              = "lead_updated"
	ActionLeadDeleted              = "lead_deleted"
	ActionCapabilitiesBootstrapped = "capabilities_bootstrapped"
	ActionCapabilitiesGranted      = "capabilities_granted"
)
