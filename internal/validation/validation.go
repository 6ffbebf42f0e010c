// Package validation проверяет входные данные HTTP-запросов по тегам validate.
package validation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/delivery-settlement/internal/model"
)

// Validator проверяет структуры запросов.
// Поддерживает теги money, positive_money и nonnegative для decimal.Decimal.
type Validator struct {
	validate *validator.Validate
}

// New создаёт валидатор с зарегистрированными денежными правилами.
func New() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		d, ok := parse(fl)
		return ok && !d.IsNegative() && model.HasMoneyPrecision(d)
	})
	_ = v.RegisterValidation("positive_money", func(fl validator.FieldLevel) bool {
		d, ok := parse(fl)
		return ok && d.IsPositive() && model.HasMoneyPrecision(d)
	})
	_ = v.RegisterValidation("nonnegative", func(fl validator.FieldLevel) bool {
		d, ok := parse(fl)
		return ok && !d.IsNegative()
	})

	return &Validator{validate: v}
}

func parse(fl validator.FieldLevel) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Struct проверяет запрос и возвращает ошибку вида validation с перечнем полей.
func (v *Validator) Struct(ctx context.Context, payload any) error {
	err := v.validate.StructCtx(ctx, payload)
	if err == nil {
		return nil
	}

	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return fmt.Errorf("%w: %v", model.ErrValidation, err)
	}

	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = fmt.Sprintf("invalid '%s' (%s)", f.Field(), f.Tag())
	}
	return fmt.Errorf("%w: %s", model.ErrValidation, strings.Join(msgs, ", "))
}
