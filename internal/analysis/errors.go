package analysis

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	// KindEncoding means the video could not be read into a request body.
	KindEncoding ErrorKind = iota + 1
	// KindTransport covers unreachable hosts, DNS failures and timeouts.
	KindTransport
	// KindProtocol means the server answered but not with a usable result.
	KindProtocol
	// KindNoData means the server answered with an empty body.
	KindNoData
)

func (k ErrorKind) String() string {
	switch k {
	case KindEncoding:
		return "encoding"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindNoData:
		return "no_data"
	}
	return "unknown"
}

var (
	ErrNoData        = errors.New("no data")
	ErrVideoTooLarge = errors.New("video exceeds the upload limit")
)

// ServiceError is returned by every failing Submit. Its message is the
// underlying cause, unchanged, so it can be shown to the user as is.
type ServiceError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	return e.Err.Error()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, err error) *ServiceError {
	return &ServiceError{Kind: kind, Err: err}
}

func protocolErrorf(status int, format string, args ...any) *ServiceError {
	return &ServiceError{Kind: KindProtocol, StatusCode: status, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the ServiceError kind wrapped in err, or 0.
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}
