package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindConfiguration   Kind = "configuration"
	KindValidation      Kind = "validation"
	KindGatewayTimeout  Kind = "gateway_timeout"
	KindGatewayRejected Kind = "gateway_rejected"
	KindNotFound        Kind = "not_found"
	KindIntegrity       Kind = "integrity"
	KindInternal        Kind = "internal"
)

var kindHTTP = map[Kind]int{
	KindConfiguration:   http.StatusServiceUnavailable,
	KindValidation:      http.StatusBadRequest,
	KindGatewayTimeout:  http.StatusGatewayTimeout,
	KindGatewayRejected: http.StatusBadGateway,
	KindNotFound:        http.StatusNotFound,
	KindIntegrity:       http.StatusBadGateway,
	KindInternal:        http.StatusInternalServerError,
}

// Error: ошибка приложения с машинным кодом и текстом для пользователя.
type Error struct {
	kind    Kind
	code    string
	message string
	details string
	data    any
}

func New(kind Kind, code, message string) *Error {
	return &Error{kind: kind, code: code, message: message}
}

func (e *Error) Error() string {
	if e.details != "" {
		return e.code + ": " + e.message + ": " + e.details
	}
	return e.code + ": " + e.message
}

// Is сравнивает ошибки по коду, поэтому копии из WithDetails совпадают с исходным значением.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.code == t.code
}

func (e *Error) Kind() Kind      { return e.kind }
func (e *Error) Code() string    { return e.code }
func (e *Error) Message() string { return e.message }
func (e *Error) Details() string { return e.details }
func (e *Error) Data() any       { return e.data }

func (e *Error) HTTPCode() int {
	if c, ok := kindHTTP[e.kind]; ok {
		return c
	}
	return http.StatusInternalServerError
}

func (e *Error) WithDetails(details string) *Error {
	cp := *e
	cp.details = details
	return &cp
}

func (e *Error) WithData(data any) *Error {
	cp := *e
	cp.data = data
	return &cp
}

var (
	ErrNotConfigured    = New(KindConfiguration, "GATEWAY_UNCONFIGURED", "shipping provider is not configured")
	ErrValidation       = New(KindValidation, "VALIDATION_FAILED", "invalid request")
	ErrInvalidPostal    = New(KindValidation, "INVALID_POSTAL_CODE", "postal code has an invalid length")
	ErrTimeout          = New(KindGatewayTimeout, "GATEWAY_TIMEOUT", "shipping provider did not respond in time")
	ErrRejected         = New(KindGatewayRejected, "GATEWAY_REJECTED", "shipping provider rejected the request")
	ErrNotFound         = New(KindNotFound, "NOT_FOUND", "resource not found")
	ErrOrderNotFound    = New(KindNotFound, "ORDER_NOT_FOUND", "order not found")
	ErrShipmentNotFound = New(KindNotFound, "SHIPMENT_NOT_FOUND", "shipment not found")
	ErrLabelIncomplete  = New(KindIntegrity, "LABEL_INCOMPLETE", "provider did not return a tracking number")
	ErrInternal         = New(KindInternal, "INTERNAL", "internal error")
)

// As достаёт *Error из цепочки; всё остальное считается внутренней ошибкой.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal.WithDetails(err.Error())
}
