package roles

// CapabilitySet holds the named permission flags resolved for a caller
// identity. The four flags are independent: record-manager grants plain
// writes, lead-owner and admin additionally permit PII retention, admin alone
// permits deletes and role administration. Flags absent from storage are
// false.
//
// One set exists per identity. It is created lazily by the bootstrap in
// Service.Resolve and mutated only by explicit administrative action.
type CapabilitySet struct {
	Viewer        bool `json:"viewer"`
	RecordManager bool `json:"record_manager"`
	LeadOwner     bool `json:"lead_owner"`
	Admin         bool `json:"admin"`
}

// DefaultSet is the minimal capability set bootstrapped on first contact:
// read access plus non-PII writes.
func DefaultSet() CapabilitySet {
	return CapabilitySet{Viewer: true, RecordManager: true}
}
