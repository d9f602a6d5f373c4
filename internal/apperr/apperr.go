// Package apperr carries the service error taxonomy and its HTTP mapping.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	// NotFound covers both absent entities and entities owned by someone
	// else, so ownership checks never leak existence.
	NotFound     Kind = "not_found"
	Validation   Kind = "validation"
	Conflict     Kind = "conflict"
	Unauthorized Kind = "unauthorized"
	Unavailable  Kind = "unavailable"
	Internal     Kind = "internal"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func E(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the taxonomy kind of err, or Internal for anything that was
// not classified on the way up.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

func Is(err error, kind Kind) bool { return KindOf(err) == kind }

func status(k Kind) int {
	switch k {
	case NotFound:
		return http.StatusNotFound
	case Validation:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	case Unauthorized:
		return http.StatusForbidden
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Write sends err as a stable JSON body. Internal causes are not exposed:
// the client sees the message of the outermost taxonomy error only.
func Write(w http.ResponseWriter, err error) {
	kind := KindOf(err)
	msg := "internal error"
	var ae *Error
	if errors.As(err, &ae) {
		msg = ae.Msg
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status(kind))
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "kind": string(kind)})
}
