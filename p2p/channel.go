package p2p

import "github.com/gogo/protobuf/proto"

// Wrapper is implemented by a domain message that can be wrapped inside
// the envelope type actually carried on the wire, and by that envelope
// type itself to recover the concrete message back out. Hand-written
// request/response structs implement it so a reactor can work with
// GetLedger and LedgerData directly while the channel only ever sees
// their shared envelope.
type Wrapper interface {
	Wrap() proto.Message
}

// Unwrapper is implemented by an envelope type that can hand back
// whichever concrete message it's currently carrying.
type Unwrapper interface {
	Unwrap() (proto.Message, error)
}
