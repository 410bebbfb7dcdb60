package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// return these (optionally wrapped) so services can translate them into domain
// errors with caller-facing codes.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record or capability set does not exist in the store
// - ErrConflict: conditional create lost to an existing row
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: store or subscription temporarily unavailable
// - ErrOrderedUnsupported: the store cannot serve the ordered query shape
// - ErrClosed: operation on a closed subscription or store
//
// For validation errors (bad input, missing fields), use pkg/errors directly.
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidState       = errors.New("invalid state")
	ErrUnavailable        = errors.New("unavailable")
	ErrOrderedUnsupported = errors.New("ordered query unsupported")
	ErrClosed             = errors.New("closed")
)
