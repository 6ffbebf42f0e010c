package model

import "errors"

// ErrorKind классифицирует ошибки движка расчётов.
type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"
	KindInvalidTransition   ErrorKind = "invalid_transition"
	KindConsistency         ErrorKind = "consistency"
	KindNotFound            ErrorKind = "not_found"
	KindConcurrencyConflict ErrorKind = "concurrency_conflict"
)

// Error - структурированная ошибка движка с видом и машинным кодом.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// KindOf возвращает вид ошибки движка или пустую строку для прочих ошибок.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodeOf возвращает машинный код ошибки движка.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

var (
	// ErrValidation возвращается для некорректных входных данных.
	ErrValidation = newError(KindValidation, "validation", "invalid input")
	// ErrAmountOutOfRange возвращается, если сумма вне лимитов способа оплаты.
	ErrAmountOutOfRange = newError(KindValidation, "amount_out_of_range", "amount is outside payment method limits")
	// ErrReferenceRequired возвращается, если способ оплаты требует номер операции.
	ErrReferenceRequired = newError(KindValidation, "reference_required", "payment method requires a reference code")
	// ErrMethodInactive возвращается для отключённого способа оплаты.
	ErrMethodInactive = newError(KindValidation, "method_inactive", "payment method is inactive")
	// ErrMethodMisconfigured возвращается для противоречивых настроек способа оплаты.
	ErrMethodMisconfigured = newError(KindValidation, "method_misconfigured", "payment method configuration is invalid")
	// ErrInstallmentsNotSupported возвращается, если способ оплаты не принимает рассрочку.
	ErrInstallmentsNotSupported = newError(KindValidation, "installments_not_supported", "payment method does not support installments")
	// ErrInstallmentAmountMismatch возвращается, если сумма не совпадает с платежом графика.
	ErrInstallmentAmountMismatch = newError(KindValidation, "installment_amount_mismatch", "amount does not match installment due")
	// ErrCurrencyMismatch возвращается, если валюта платежа отличается от валюты заказа.
	ErrCurrencyMismatch = newError(KindValidation, "currency_mismatch", "payment currency differs from order currency")
	// ErrLateWindowExceeded возвращается, если дата оплаты раньше допустимого окна.
	ErrLateWindowExceeded = newError(KindValidation, "late_window_exceeded", "payment date precedes the early settlement window")
	// ErrTierOverlap возвращается для пересекающихся диапазонов расстояний.
	ErrTierOverlap = newError(KindValidation, "tier_overlap", "distance tiers overlap")

	// ErrInvalidTransition возвращается для перехода вне таблицы допустимых.
	ErrInvalidTransition = newError(KindInvalidTransition, "invalid_transition", "transition is not allowed")

	// ErrBalanceExceeded возвращается, если платёж превышает остаток по заказу.
	ErrBalanceExceeded = newError(KindConsistency, "balance_exceeded", "payment exceeds outstanding balance")
	// ErrAlreadySettled возвращается при повторной оплате погашенного платежа графика.
	ErrAlreadySettled = newError(KindConsistency, "already_settled", "installment is already settled")
	// ErrNotCreditOrder возвращается при оплате платежа графика у не кредитного заказа.
	ErrNotCreditOrder = newError(KindConsistency, "not_credit_order", "order is not a credit order")
	// ErrMissingTrackingCode возвращается при отгрузке без трек-номера.
	ErrMissingTrackingCode = newError(KindConsistency, "missing_tracking_code", "tracking code is required for shipment")
	// ErrFrozenField возвращается при изменении реквизитов заказа вне статуса pending.
	ErrFrozenField = newError(KindConsistency, "frozen_field", "field cannot be changed in current status")
	// ErrCannotClearPaymentDate возвращается, если дата оплаты остаётся у неоплаченного платежа.
	ErrCannotClearPaymentDate = newError(KindConsistency, "cannot_clear_payment_date", "payment date must be cleared when leaving paid state")
	// ErrPaymentDateRequired возвращается при оплате без даты оплаты.
	ErrPaymentDateRequired = newError(KindConsistency, "payment_date_required", "payment date is required for paid state")
	// ErrPenaltyNotAllowed возвращается для штрафа вне статусов overdue и paid.
	ErrPenaltyNotAllowed = newError(KindConsistency, "penalty_not_allowed", "penalty is only allowed for overdue or paid installments")
	// ErrOrderClosed возвращается при оплате отменённого, отклонённого или возвращённого заказа.
	ErrOrderClosed = newError(KindConsistency, "order_closed", "order does not accept payments")
	// ErrZoneUnavailable возвращается, если зона не обслуживает доставку в указанное время.
	ErrZoneUnavailable = newError(KindConsistency, "zone_unavailable", "delivery zone is unavailable")
	// ErrNoTierMatch возвращается, если расстояние вне покрытия зоны.
	ErrNoTierMatch = newError(KindConsistency, "no_tier_match", "distance is outside zone coverage")

	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = newError(KindNotFound, "order_not_found", "order not found")
	// ErrInstallmentNotFound возвращается, если платёж графика не найден.
	ErrInstallmentNotFound = newError(KindNotFound, "installment_not_found", "installment not found")
	// ErrPaymentNotFound возвращается, если платёж не найден.
	ErrPaymentNotFound = newError(KindNotFound, "payment_not_found", "payment not found")
	// ErrZoneNotFound возвращается, если зона доставки не найдена.
	ErrZoneNotFound = newError(KindNotFound, "zone_not_found", "delivery zone not found")
	// ErrMethodNotFound возвращается, если способ оплаты не найден.
	ErrMethodNotFound = newError(KindNotFound, "method_not_found", "payment method not found")

	// ErrConcurrencyConflict возвращается при конкурентном изменении заказа.
	ErrConcurrencyConflict = newError(KindConcurrencyConflict, "concurrency_conflict", "order was modified concurrently")
)
