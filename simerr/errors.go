// Package simerr holds the sentinel error kinds shared by every simulith
// package, per the error taxonomy in the design's error-handling section.
// Callers should compare with errors.Is; call sites wrap these with
// fmt.Errorf("...: %w", ...) to attach the failing bus/port/id.
package simerr

import "errors"

var (
	// ErrInvalidArgument means the caller violated a documented
	// precondition: a null/empty id, a zero tick increment, an
	// out-of-range bus index, a malformed config value.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTransportBindFailed means a listening channel could not be
	// bound by the underlying transport.
	ErrTransportBindFailed = errors.New("transport bind failed")

	// ErrTransportConnectFailed means a channel could not connect to
	// its configured peer.
	ErrTransportConnectFailed = errors.New("transport connect failed")

	// ErrServerUnreachable means a client's handshake request timed
	// out waiting for a server reply.
	ErrServerUnreachable = errors.New("server unreachable")

	// ErrDuplicateID means the server rejected a handshake because the
	// requested identity is already present in the roster.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrProtocolError means a peer sent an unexpected or malformed
	// payload on the wire.
	ErrProtocolError = errors.New("protocol error")

	// ErrAlreadyInitialized means an operation targeted a slot that is
	// already live.
	ErrAlreadyInitialized = errors.New("already initialized")

	// ErrNotInitialized means an operation targeted a slot that is not
	// live.
	ErrNotInitialized = errors.New("not initialized")

	// ErrInvalidConfig means a family-specific validator rejected a
	// configuration value.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrBufferFull means a fixed-capacity table had no free slot, as
	// when a CAN bus's filter table is full. A full receive ring drops
	// the item and does not return this error.
	ErrBufferFull = errors.New("buffer full")

	// ErrNotOutput means a write/toggle was attempted on a digital
	// line not configured as an output.
	ErrNotOutput = errors.New("not configured as output")
)
