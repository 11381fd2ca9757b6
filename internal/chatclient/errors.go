package chatclient

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("not authorized")
	ErrNotFoundOnBackend = errors.New("not found on backend")
	ErrTransport         = errors.New("transport error")
)

// ErrorKind 是暴露给界面层的错误分类
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindInvalidInput
	KindUnauthorized
	KindNotFoundOnBackend
	KindTransport
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInvalidInput:
		return "invalid_input"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFoundOnBackend:
		return "not_found_on_backend"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// KindOf 返回错误所属的分类，nil 返回 KindNone
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrNotFoundOnBackend):
		return KindNotFoundOnBackend
	case errors.Is(err, ErrTransport):
		return KindTransport
	default:
		return KindUnknown
	}
}
