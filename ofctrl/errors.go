package ofctrl

import "errors"

// Errno-style sentinels returned by the outbound command surface.
var (
	// ErrDatapathUnknown reports a dpid with no registered connection.
	ErrDatapathUnknown = errors.New("no such datapath")
	// ErrWouldBlock reports a full send queue on a non-blocking send.
	ErrWouldBlock = errors.New("send queue full")
	// ErrTimeout reports a missed handshake or send deadline.
	ErrTimeout = errors.New("timed out")
	// ErrInvalid reports a malformed argument, such as a zero dpid.
	ErrInvalid = errors.New("invalid argument")
	// ErrNotPermitted reports an authorizer rejection.
	ErrNotPermitted = errors.New("not permitted")
	// ErrClosed reports a connection torn down mid-operation.
	ErrClosed = errors.New("connection closed")
)
