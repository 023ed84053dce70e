// SPDX-License-Identifier: MIT

package openwebif

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.

	// ErrBouquetNotFound means the configured bouquet name matched no entry
	// in the receiver's service list. This is an expected outcome of a
	// misconfigured name, not a transport fault.
	ErrBouquetNotFound = errors.New("openwebif: bouquet not found")

	// ErrUpstreamUnavailable covers transport failures talking to the box.
	ErrUpstreamUnavailable = errors.New("openwebif: host unreachable or transport failure")

	// ErrUpstreamError covers non-2xx answers from the box.
	ErrUpstreamError = errors.New("openwebif: upstream returned error status")

	// ErrBadResponse covers unparsable XML or responses missing required fields.
	ErrBadResponse = errors.New("openwebif: invalid response format or malformed data")
)

// DeviceError wraps a sentinel error with request context.
type DeviceError struct {
	Sentinel  error
	Operation string
	Status    int
	Err       error // nested lower-level error (e.g. net.Error)
}

func (e *DeviceError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *DeviceError) Unwrap() error {
	return e.Sentinel
}
