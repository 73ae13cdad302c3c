package game

import "quizrally/internal/model"

// Error is a client-visible rejection. Code maps onto the wire error taxonomy;
// Message is safe to forward verbatim.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func errRoomNotFound() *Error {
	return &Error{Code: model.CodeRoomNotFound, Message: "Room not found"}
}

func errInvalidState(msg string) *Error {
	return &Error{Code: model.CodeInvalidState, Message: msg}
}

func errUnauthorized(msg string) *Error {
	return &Error{Code: model.CodeUnauthorized, Message: msg}
}

func errNotHost(msg string) *Error {
	return &Error{Code: model.CodeNotHost, Message: msg}
}

func errValidation(msg string) *Error {
	return &Error{Code: model.CodeValidation, Message: msg}
}
