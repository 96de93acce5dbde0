package handsfree

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCategory категория ошибки для классификации.
type ErrorCategory string

const (
	ErrorCategoryTransport  ErrorCategory = "TRANSPORT"
	ErrorCategoryState      ErrorCategory = "STATE"
	ErrorCategoryValidation ErrorCategory = "VALIDATION"
	ErrorCategoryProtocol   ErrorCategory = "PROTOCOL"
)

func (c ErrorCategory) String() string {
	return string(c)
}

// Error структурированная ошибка, которую сервис возвращает вызывающим.
type Error struct {
	Code     string
	Message  string
	Category ErrorCategory
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap позволяет использовать errors.Is и errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду, чтобы errors.Is(err, ErrNotConnected(...)) работал.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func newError(code, message string, category ErrorCategory) *Error {
	return &Error{Code: code, Message: message, Category: category}
}

// ErrNotConnected операция требует подключенного AG.
func ErrNotConnected(state ConnectionState, operation string) *Error {
	return newError("NOT_CONNECTED",
		fmt.Sprintf("операция '%s' недоступна в состоянии %s", operation, state),
		ErrorCategoryState)
}

// ErrWrongDevice операция адресована не тому устройству, к которому привязана машина.
func ErrWrongDevice(dev Device) *Error {
	return newError("WRONG_DEVICE",
		fmt.Sprintf("устройство %s не является текущим", dev),
		ErrorCategoryState)
}

// ErrFeatureUnsupported AG не объявил нужную возможность.
func ErrFeatureUnsupported(feature string) *Error {
	return newError("FEATURE_UNSUPPORTED",
		fmt.Sprintf("AG не поддерживает %s", feature),
		ErrorCategoryValidation)
}

// ErrInvalidArgument некорректный аргумент вызова.
func ErrInvalidArgument(name string, value interface{}) *Error {
	return newError("INVALID_ARGUMENT",
		fmt.Sprintf("некорректное значение %s: %v", name, value),
		ErrorCategoryValidation)
}

// ErrMachineStopped почтовый ящик больше не принимает сообщения.
var ErrMachineStopped = newError("MACHINE_STOPPED", "машина остановлена", ErrorCategoryState)

// ErrTransport оборачивает отказ транспорта при отправке примитива.
func ErrTransport(operation string, cause error) *Error {
	e := newError("TRANSPORT_FAILURE",
		fmt.Sprintf("транспорт отклонил '%s'", operation),
		ErrorCategoryTransport)
	e.Cause = errors.WithStack(cause)
	return e
}
