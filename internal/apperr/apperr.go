// Package apperr содержит таксономию бизнес-ошибок сервиса заказов кафе.
package apperr

import (
	"errors"
	"fmt"
)

// Kind классифицирует бизнес-ошибку. Вызывающая сторона ветвится
// по виду ошибки, а не по тексту сообщения.
type Kind int

const (
	// KindInternal — неожиданная внутренняя ошибка.
	KindInternal Kind = iota
	// KindValidation — некорректные входные данные, до каких-либо побочных эффектов.
	KindValidation
	// KindNotFound — запрошенная сущность отсутствует.
	KindNotFound
	// KindConflict — нарушение уникальности.
	KindConflict
	// KindInvalidState — операция недопустима для текущего состояния сущности.
	KindInvalidState
	// KindExpired — нарушено временное окно операции.
	KindExpired
	// KindPaymentFailed — отказ или таймаут платёжного шлюза.
	KindPaymentFailed
	// KindInvariant — повреждённое состояние, в корректной работе не возникает.
	KindInvariant
)

// Error представляет бизнес-ошибку с машиночитаемым кодом и сообщением.
// Коды пространственно разделены по доменам: E — общие, M — участники,
// O — заказы, P — товары, PAY — платежи.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is сравнивает ошибки по коду, что позволяет использовать errors.Is
// с предопределёнными ошибками пакета.
func (e *Error) Is(target error) bool {
	var appErr *Error
	if !errors.As(target, &appErr) {
		return false
	}
	return e.Code == appErr.Code
}

// Предопределённые бизнес-ошибки. Коды повторяют таблицу ошибок сервиса.
var (
	ErrInternal       = &Error{Kind: KindInternal, Code: "E001", Message: "internal server error"}
	ErrInvalidRequest = &Error{Kind: KindValidation, Code: "E002", Message: "invalid request"}

	ErrMemberNotFound        = &Error{Kind: KindNotFound, Code: "M001", Message: "member not found"}
	ErrMemberWithdrawn       = &Error{Kind: KindInvalidState, Code: "M002", Message: "member already withdrawn"}
	ErrMemberNotWithdrawn    = &Error{Kind: KindInvalidState, Code: "M003", Message: "member is not withdrawn"}
	ErrWithdrawalTimeMissing = &Error{Kind: KindInvariant, Code: "M004", Message: "withdrawal time is missing"}
	ErrWithdrawalExpired     = &Error{Kind: KindExpired, Code: "M005", Message: "withdrawal cancellation period (30 days) has expired"}
	ErrPhoneExists           = &Error{Kind: KindConflict, Code: "M006", Message: "phone number already registered"}
	ErrMemberNotActive       = &Error{Kind: KindInvalidState, Code: "M007", Message: "member is not active"}

	ErrOrderNotFound  = &Error{Kind: KindNotFound, Code: "O001", Message: "order not found"}
	ErrOrderCancelled = &Error{Kind: KindInvalidState, Code: "O002", Message: "order already cancelled"}

	ErrProductNotFound = &Error{Kind: KindNotFound, Code: "P001", Message: "product not found"}

	ErrPaymentFailed   = &Error{Kind: KindPaymentFailed, Code: "PAY001", Message: "payment processing failed"}
	ErrPaymentNotFound = &Error{Kind: KindNotFound, Code: "PAY002", Message: "payment not found"}
)

// Validation создаёт ошибку валидации с указанным сообщением.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Code: "E002", Message: message}
}

// KindOf возвращает вид бизнес-ошибки. Для неклассифицированных ошибок
// возвращается KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// From извлекает бизнес-ошибку из цепочки. Неклассифицированные ошибки
// сворачиваются в ErrInternal, чтобы внутренние детали не утекали наружу.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal
}
