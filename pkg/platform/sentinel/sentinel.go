package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and upstream adapters
// return these (optionally wrapped) so services can translate them into
// domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in store
// - ErrConflict: write lost to a concurrent competitor
// - ErrExpired: checkout window or intent validity elapsed
// - ErrInvalidState: entity in wrong state for requested transition
// - ErrUnavailable: upstream service temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
