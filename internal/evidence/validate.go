package evidence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is shared by all structural checks in this package.
// Custom tags are registered in init().
var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}); err != nil {
		panic(fmt.Sprintf("register nonblank validator: %v", err))
	}
}

// ValidationError reports a structurally invalid record or opinion. It is
// fatal to the single submission only.
type ValidationError struct {
	Kind   string   // "record" or "opinion"
	Fields []string // offending fields, in struct order
	Err    error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("invalid %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("invalid %s: field(s) %s: %v", e.Kind, strings.Join(e.Fields, ", "), e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidationError reports whether err (or anything it wraps) is a
// ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidateRecord checks r against its struct constraints.
func ValidateRecord(r Record) error {
	return check("record", r)
}

// ValidateOpinion checks o against its struct constraints.
func ValidateOpinion(o Opinion) error {
	return check("opinion", o)
}

// ValidateStruct runs the shared validator over any tagged struct. Other
// packages use it for their own configuration types.
func ValidateStruct(kind string, v any) error {
	return check(kind, v)
}

func check(kind string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, fe.Field())
			msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
		}
		return &ValidationError{Kind: kind, Fields: fields, Err: errors.New(strings.Join(msgs, "; "))}
	}
	return &ValidationError{Kind: kind, Err: err}
}
