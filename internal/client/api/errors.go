package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind categorizes transport failures.
type ErrorKind uint8

const (
	// KindNetwork — ответа от сервера нет (DNS, соединение, таймаут)
	KindNetwork ErrorKind = iota + 1
	// KindConflict — 409, ожидаемая и восстановимая ситуация
	KindConflict
	// KindServer — 5xx или некорректный ответ сервера, можно повторять
	KindServer
	// KindClient — 4xx кроме 409, повторять бессмысленно
	KindClient
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindConflict:
		return "conflict"
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	default:
		return fmt.Sprintf("ErrorKind(%d)", uint8(k))
	}
}

// Error is a categorized transport error.
type Error struct {
	Err        error
	Message    string
	Kind       ErrorKind
	StatusCode int
}

// Sentinels for errors.Is matching by category.
var (
	ErrNetwork  = &Error{Kind: KindNetwork}
	ErrConflict = &Error{Kind: KindConflict}
	ErrServer   = &Error{Kind: KindServer}
	ErrClient   = &Error{Kind: KindClient}
)

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s error (%d): %s", e.Kind, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s error (%d)", e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s error", e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches by kind, and by status code when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.StatusCode == 0 || t.StatusCode == e.StatusCode)
}

// IsRetryable reports whether err is worth retrying with backoff (network or 5xx).
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrServer)
}

// KindOf returns the category of err, or 0 if err is not a transport error.
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

// statusError maps a non-2xx HTTP status to a categorized error.
func statusError(status int, message string) *Error {
	kind := KindClient
	switch {
	case status == http.StatusConflict:
		kind = KindConflict
	case status >= 500:
		kind = KindServer
	}
	return &Error{Kind: kind, StatusCode: status, Message: message}
}
