package protocol

import "fmt"

type (
	// ErrorKind is the closed set of failures the networking subsystem reports.
	// Values are comparable and meant to be checked with errors.Is.
	ErrorKind string
)

const (
	ErrTransportBind            = ErrorKind("transport: unable to bind local endpoint")
	ErrTransportConnect         = ErrorKind("transport: unable to connect")
	ErrTransportConnection      = ErrorKind("transport: connection failure")
	ErrStreamClosed             = ErrorKind("stream: closed")
	ErrStreamCrashed            = ErrorKind("stream: crashed")
	ErrStreamReadFailed         = ErrorKind("stream: read failed")
	ErrFrameTooLong             = ErrorKind("frame: too long")
	ErrIdentityResolutionFailed = ErrorKind("identity: resolution failed")
	ErrChannelClosed            = ErrorKind("queue: receiver dropped")
)

func (e ErrorKind) Error() string { return string(e) }

// Wrap attaches detail to a kind while keeping it matchable with errors.Is.
func Wrap(kind ErrorKind, detail error) error {
	if detail == nil {
		return kind
	}
	return fmt.Errorf("%w: %v", kind, detail)
}
