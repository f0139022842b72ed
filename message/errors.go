// Copyright (c) 2026 Substrate Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package message

import "fmt"

// DesyncError reports that the parser accepted fewer bytes than were
// read from the transport mid-message. The byte stream is no longer
// aligned with the message grammar, so the connection is unusable and
// must be closed; retrying in place is never valid.
type DesyncError struct {
	// Consumed is the number of bytes the parser accepted.
	Consumed int

	// Read is the number of bytes handed to the parser.
	Read int

	// Cause is the grammar violation that stopped the parser, when one
	// was reported.
	Cause error
}

// Error implements the [builtin.error] interface.
func (e *DesyncError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("message: parser consumed %d of %d bytes: %s", e.Consumed, e.Read, e.Cause)
	}
	return fmt.Sprintf("message: parser consumed %d of %d bytes; stream desynchronized", e.Consumed, e.Read)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e *DesyncError) Unwrap() error {
	return e.Cause
}

// UnexpectedEOFError reports that the transport closed, or a read
// failed, before a complete message was available. No response can be
// guaranteed to reach the peer.
type UnexpectedEOFError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e *UnexpectedEOFError) Error() string {
	return fmt.Sprintf("message: transport ended before message completed: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e *UnexpectedEOFError) Unwrap() error {
	return e.Cause
}

// InternalError reports a usage-contract violation by the caller, such
// as parsing after teardown or pulling body bytes before the header
// block completed.
type InternalError struct {
	Reason string
}

// Error implements the [builtin.error] interface.
func (e *InternalError) Error() string {
	return "message: " + e.Reason
}
