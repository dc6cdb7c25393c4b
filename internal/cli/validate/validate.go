// Package validate checks form input before anything is sent to the API.
// A failed check returns Errors, keyed by field, with the message to show
// next to that field.
package validate

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nbutton23/zxcvbn-go"
)

const (
	// MinPasswordLength is the shortest password registration accepts
	MinPasswordLength = 8
	// MinPasswordScore is the zxcvbn score a password needs ("good")
	MinPasswordScore = 3
)

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	otpPattern      = regexp.MustCompile(`^[0-9]{6}$`)
	phonePattern    = regexp.MustCompile(`^[0-9]{10}$`)
	upperPattern    = regexp.MustCompile(`[A-Z]`)
	lowerPattern    = regexp.MustCompile(`[a-z]`)
	numberPattern   = regexp.MustCompile(`[0-9]`)
	specialPattern  = regexp.MustCompile(`[@#$%^&*]`)
	defaultValidate = newValidator()
)

// Errors maps a field name to the message for it
type Errors map[string]string

func (e Errors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, field := range e.Fields() {
		msgs = append(msgs, e[field])
	}
	return strings.Join(msgs, "; ")
}

// Fields returns the failing field names in a stable order
func (e Errors) Fields() []string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// AsErrors extracts field errors from err
func AsErrors(err error) (Errors, bool) {
	var errs Errors
	if errors.As(err, &errs) {
		return errs, true
	}
	return nil, false
}

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	v.RegisterValidation("storefront_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("otp", func(fl validator.FieldLevel) bool {
		return otpPattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("phone10", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("strong_password", func(fl validator.FieldLevel) bool {
		return len(PasswordProblems(fl.Field().String())) == 0
	})

	return v
}

// form is implemented by every validated struct
type form interface {
	// messages maps "field.tag" to the text shown when that rule fails
	messages() map[string]string
}

func check(f form) error {
	err := defaultValidate.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := f.messages()
	out := make(Errors, len(verrs))
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		if fe.Tag() == "strong_password" {
			out[fe.Field()] = strings.Join(PasswordProblems(fe.Value().(string)), " ")
			continue
		}
		msg, ok := msgs[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fe.Error()
		}
		out[fe.Field()] = msg
	}
	return out
}

// PasswordProblems lists every registration rule password breaks
func PasswordProblems(password string) []string {
	var problems []string
	if len(password) < MinPasswordLength {
		problems = append(problems, "Password must be at least 8 characters.")
	}
	if !upperPattern.MatchString(password) {
		problems = append(problems, "Password must include at least one uppercase letter.")
	}
	if !lowerPattern.MatchString(password) {
		problems = append(problems, "Password must include at least one lowercase letter.")
	}
	if !numberPattern.MatchString(password) {
		problems = append(problems, "Password must include at least one number.")
	}
	if !specialPattern.MatchString(password) {
		problems = append(problems, "Password must include at least one special character (@, #, $, etc.).")
	}
	if PasswordScore(password) < MinPasswordScore {
		problems = append(problems, "Password is too weak.")
	}
	return problems
}

// PasswordScore is the zxcvbn strength estimate, 0 (weakest) to 4
func PasswordScore(password string) int {
	if password == "" {
		return 0
	}
	return zxcvbn.PasswordStrength(password, nil).Score
}

// NormalizeEmail trims and lower-cases an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
