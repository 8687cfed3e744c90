package httperr

import (
	"errors"
	"net/http"
)

// RequestError is a client-side request problem carrying the HTTP status
// and envelope code it should be answered with.
type RequestError struct {
	msg    string
	status int
	code   string
}

func (e *RequestError) Error() string { return e.msg }

func NewBadRequest(msg string) error {
	return &RequestError{msg: msg, status: http.StatusBadRequest}
}

func NewTooLarge(msg string) error {
	return &RequestError{msg: msg, status: http.StatusRequestEntityTooLarge, code: "body_too_large"}
}

func IsBadRequest(err error) bool {
	_, ok := errors.AsType[*RequestError](err)
	return ok
}

// Status reports the status and envelope code for err. Plain bad requests
// and foreign errors answer 400 with fallbackCode.
func Status(err error, fallbackCode string) (int, string) {
	re, ok := errors.AsType[*RequestError](err)
	if !ok {
		return http.StatusBadRequest, fallbackCode
	}
	if re.code == "" {
		return re.status, fallbackCode
	}
	return re.status, re.code
}
