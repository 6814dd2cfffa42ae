// Package xerrors defines the error taxonomy shared across the routing
// core: sentinel errors that callers match with errors.Is, wrapped with
// %w so the originating detail survives.
package xerrors

import "errors"

// FailedSignature means a cryptographic verification failed, or a duplicate
// proof was presented for a payload that already has one from that key.
var FailedSignature = errors.New("xornet: failed signature")

// InvalidMessage means a message was structurally malformed or carried the
// wrong variant for the context it arrived in.
var InvalidMessage = errors.New("xornet: invalid message")

// InvalidState means an operation requires a role (elder) or a state
// (joined) that the local node does not currently hold.
var InvalidState = errors.New("xornet: invalid state")

// FailedSend means a delivery-group send did not reach its requested group
// size before exhausting every recipient's resend attempts.
var FailedSend = errors.New("xornet: failed send")

// Untrusted means a proof chain slice could not be verified against any
// locally known section key.
var Untrusted = errors.New("xornet: untrusted proof chain")
