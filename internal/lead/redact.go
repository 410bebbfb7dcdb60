package lead

import (
	"strings"

	"leadpipe/internal/policy"
	"leadpipe/internal/roles"
)

// PII is the redaction outcome for one write: the email and phone values that
// may be stored, nil meaning "not collected". Stripped reports whether the
// caller submitted PII that was discarded.
type PII struct {
	Email    *string
	Phone    *string
	Stripped bool
}

// Redact is the single authorization checkpoint for PII persistence. It runs
// on every create and every update, partial or not. Values pass through only
// when the writing identity may hold PII and the subject consented; otherwise
// both fields are forced absent regardless of what was submitted.
//
// Submitted values are trimmed first; a value that is empty after trimming is
// treated as not submitted at all.
func Redact(p Payload, caps roles.CapabilitySet) PII {
	email := normalize(p.Email)
	phone := normalize(p.Phone)

	if policy.MayHoldPII(caps) && p.Consent {
		return PII{Email: email, Phone: phone}
	}
	return PII{Stripped: email != nil || phone != nil}
}

func normalize(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
