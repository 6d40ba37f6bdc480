package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/atmx/bond-market/internal/address"
	"github.com/atmx/bond-market/internal/settlement"
)

// newValidator returns a validator that reports JSON field names and knows
// the "address" (base-58 identifier) and "seed" (issuer name) tags.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("address", func(fl validator.FieldLevel) bool {
		_, err := address.Parse(fl.Field().String())
		return err == nil
	})
	v.RegisterValidation("seed", func(fl validator.FieldLevel) bool {
		n := len(fl.Field().String())
		return n > 0 && n <= settlement.MaxIssuerNameLen
	})
	return v
}

// describe flattens validation errors into "field: rule" pairs and reports
// whether any of them is a missing required field.
func describe(err error) (details string, missing bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error(), false
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = true
		}
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; "), missing
}
