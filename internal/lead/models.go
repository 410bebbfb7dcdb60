package lead

import (
	"time"

	pkgerrors "leadpipe/pkg/errors"
)

// Stage is the fixed pipeline progression. Won and Lost are both terminal.
type Stage string

const (
	StageNew       Stage = "New"
	StageContacted Stage = "Contacted"
	StageQualified Stage = "Qualified"
	StageProposal  Stage = "Proposal"
	StageWon       Stage = "Won"
	StageLost      Stage = "Lost"
)

// Stages lists the pipeline stages in progression order.
var Stages = []Stage{StageNew, StageContacted, StageQualified, StageProposal, StageWon, StageLost}

func (s Stage) Valid() bool {
	for _, known := range Stages {
		if s == known {
			return true
		}
	}
	return false
}

// Lead is the pipeline record as held at rest. Email and Phone are pointers
// because nil means "not collected", which is different from an empty string;
// they are populated exclusively through Redact.
type Lead struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Company string  `json:"company,omitempty"`
	Stage   Stage   `json:"stage"`
	Notes   string  `json:"notes,omitempty"`
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Consent bool    `json:"consent"`

	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Payload is what a caller submits on create or update. Email and Phone are
// raw submissions; whether they survive to storage is decided by Redact, never
// by the caller.
type Payload struct {
	Name    string `json:"name"`
	Company string `json:"company"`
	Stage   Stage  `json:"stage"`
	Notes   string `json:"notes"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Consent bool   `json:"consent"`
}

// Validate checks the submitted payload. The stage defaults to New when
// omitted.
func (p *Payload) Validate() error {
	if p.Name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if p.Stage == "" {
		p.Stage = StageNew
	}
	if !p.Stage.Valid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown stage")
	}
	return nil
}
