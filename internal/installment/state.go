package installment

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/delivery-settlement/internal/model"
)

// DefaultEarlyPaymentWindowDays - сколько дней до срока платежа допускается досрочная оплата.
const DefaultEarlyPaymentWindowDays = 30

var transitions = map[model.InstallmentStatus][]model.InstallmentStatus{
	model.InstallmentStatusPending: {model.InstallmentStatusPaid, model.InstallmentStatusOverdue, model.InstallmentStatusWaived},
	model.InstallmentStatusOverdue: {model.InstallmentStatusPaid, model.InstallmentStatusWaived},
	model.InstallmentStatusPaid:    {},
	model.InstallmentStatusWaived:  {model.InstallmentStatusPending, model.InstallmentStatusOverdue},
}

// CanTransition сообщает, разрешён ли переход между статусами платежа графика.
func CanTransition(from, to model.InstallmentStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Policy задаёт бизнес-параметры проверки переходов.
type Policy struct {
	EarlyPaymentWindowDays int
}

// Change описывает изменения полей, сопровождающие переход.
type Change struct {
	PaymentDate model.Optional[*time.Time]
	Penalty     model.Optional[decimal.Decimal]
}

// Transition переводит платёж графика в статус target и возвращает признак изменения.
// Повтор текущего статуса без изменений полей ничего не меняет.
func Transition(inst *model.Installment, target model.InstallmentStatus, change Change, policy Policy) (bool, error) {
	date := inst.PaymentDate
	if change.PaymentDate.Set {
		date = change.PaymentDate.Value
	}
	penalty := inst.Penalty
	if change.Penalty.Set {
		penalty = model.RoundMoney(change.Penalty.Value)
	}

	if penalty.IsNegative() {
		return false, fmt.Errorf("%w: negative penalty %s", model.ErrValidation, penalty)
	}

	if inst.Status == target {
		if sameDate(inst.PaymentDate, date) && inst.Penalty.Equal(penalty) {
			return false, nil
		}
		if target == model.InstallmentStatusPaid {
			return false, fmt.Errorf("%w: installment %d is paid", model.ErrInvalidTransition, inst.Sequence)
		}
	} else if !CanTransition(inst.Status, target) {
		return false, fmt.Errorf("%w: installment %d %s -> %s", model.ErrInvalidTransition, inst.Sequence, inst.Status, target)
	}

	if target == model.InstallmentStatusPaid {
		if date == nil {
			return false, fmt.Errorf("%w: installment %d", model.ErrPaymentDateRequired, inst.Sequence)
		}
		earliest := model.Date(inst.DueDate).AddDate(0, 0, -policy.EarlyPaymentWindowDays)
		if model.Date(date.In(inst.DueDate.Location())).Before(earliest) {
			return false, fmt.Errorf("%w: paid %s, earliest %s", model.ErrLateWindowExceeded,
				date.Format(time.DateOnly), earliest.Format(time.DateOnly))
		}
	} else if date != nil {
		return false, fmt.Errorf("%w: installment %d -> %s", model.ErrCannotClearPaymentDate, inst.Sequence, target)
	}

	if !penalty.IsZero() && target != model.InstallmentStatusOverdue && target != model.InstallmentStatusPaid {
		return false, fmt.Errorf("%w: installment %d -> %s", model.ErrPenaltyNotAllowed, inst.Sequence, target)
	}

	inst.Status = target
	inst.PaymentDate = date
	inst.Penalty = penalty
	return true, nil
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
