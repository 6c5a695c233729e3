package domain

import (
	"errors"
	"fmt"
)

// ErrorKind классифицирует ошибки движка для API-слоя
type ErrorKind string

const (
	ErrKindNotFound      ErrorKind = "not_found"
	ErrKindValidation    ErrorKind = "validation"
	ErrKindQuotaExceeded ErrorKind = "quota_exceeded"
	ErrKindConflict      ErrorKind = "conflict"
	ErrKindUpstream      ErrorKind = "upstream"
)

// Error несет тип ошибки и указатель на поле запроса, которое её вызвало.
// Для ошибок квоты дополнительно заполняются счетчики байт, чтобы клиент
// видел, сколько места доступно и сколько запрошено.
type Error struct {
	Kind           ErrorKind
	Pointer        string
	Message        string
	AvailableBytes int64
	RequestedBytes int64
	Err            error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewNotFound(pointer, message string) *Error {
	return &Error{Kind: ErrKindNotFound, Pointer: pointer, Message: message}
}

func NewValidation(pointer, message string) *Error {
	return &Error{Kind: ErrKindValidation, Pointer: pointer, Message: message}
}

// NewQuotaExceeded возвращает ошибку нехватки места с числовой диагностикой
func NewQuotaExceeded(availableBytes, requestedBytes int64) *Error {
	return &Error{
		Kind:           ErrKindQuotaExceeded,
		Pointer:        "file_size_bytes",
		Message:        fmt.Sprintf("storage quota exceeded: available %d bytes, requested %d bytes", availableBytes, requestedBytes),
		AvailableBytes: availableBytes,
		RequestedBytes: requestedBytes,
	}
}

func NewConflict(message string, err error) *Error {
	return &Error{Kind: ErrKindConflict, Message: message, Err: err}
}

func NewUpstream(message string, err error) *Error {
	return &Error{Kind: ErrKindUpstream, Message: message, Err: err}
}

// AsError извлекает *Error из цепочки обернутых ошибок
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf возвращает тип ошибки; неизвестные ошибки считаются upstream
func KindOf(err error) ErrorKind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return ErrKindUpstream
}
