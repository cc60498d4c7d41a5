// Package errkind classifies the failure modes the core packages can
// produce into a small, closed set of kinds instead of ad hoc exception
// types or raw HTTP status checks scattered through call sites.
//
// Every kind is a zeebo/errs Class, so callers can both wrap ("this 5xx
// is a TransportRetryable") and classify ("is this err retryable?")
// without type assertions.
package errkind

import "github.com/zeebo/errs"

var (
	// TransportRetryable covers timeouts, partial bodies, connection
	// resets, TLS connect failures, 5xx and 429 responses.
	TransportRetryable = errs.Class("transport retryable")

	// TransportFatal covers 4xx responses other than 429, certificate
	// errors, and DNS failures. Never retried in place.
	TransportFatal = errs.Class("transport fatal")

	// AuthExpired marks a token past its expires_at. Callers refresh
	// exactly once on this kind.
	AuthExpired = errs.Class("auth expired")

	// AuthFatal marks a rejected refresh. The worker that observes it
	// aborts; it is never retried.
	AuthFatal = errs.Class("auth fatal")

	// ParseError marks malformed JSON/XML/zip structure. Callers attempt
	// one zlib-decompress of the raw body before giving up, in case the
	// body was compressed without a matching Content-Encoding header.
	ParseError = errs.Class("parse error")

	// IntegrityMismatch marks an md5 mismatch on a chunk or whole file.
	IntegrityMismatch = errs.Class("integrity mismatch")

	// DiskFull covers filesystem failures: ENOSPC, permission denied,
	// path too long. Never retried.
	DiskFull = errs.Class("disk full")

	// UserAborted marks a SIGINT-driven shutdown.
	UserAborted = errs.Class("user aborted")
)

// Retryable reports whether err should be retried in place by the caller
// (TransportRetryable) as opposed to surfaced/skipped.
func Retryable(err error) bool {
	return TransportRetryable.Has(err)
}

// Fatal reports whether err should abort the owning worker rather than
// merely skip the current unit.
func Fatal(err error) bool {
	return AuthFatal.Has(err)
}
