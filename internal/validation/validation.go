package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	apperrors "filevault/internal/errors"
)

// Field rules shared by registration and profile updates.
const (
	UsernameRules = "required,min=3,max=50,username"
	EmailRules    = "required,email,min=5,max=100"
	// bcrypt ignores everything past 72 bytes, so longer passwords are refused.
	PasswordRules = "required,min=8,max=72,strongpassword"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

var messages = map[string]map[string]string{
	"username": {
		"required": "Username is required.",
		"min":      "Username must be between 3 and 50 characters long.",
		"max":      "Username must be between 3 and 50 characters long.",
		"username": "Username may only contain letters, digits, dots, underscores and hyphens.",
	},
	"email": {
		"required": "Email is required.",
		"email":    "Please enter a valid email address.",
		"min":      "Email must be between 5 and 100 characters long.",
		"max":      "Email must be between 5 and 100 characters long.",
	},
	"password": {
		"required":       "Password is required.",
		"min":            "Password must be between 8 and 72 characters long.",
		"max":            "Password must be between 8 and 72 characters long.",
		"strongpassword": "Password must contain at least one uppercase letter, one lowercase letter, and one number.",
	},
}

// Validator wraps go-playground/validator with the account rules and maps failures to
// *apperrors.ValidationError.
type Validator struct {
	validate *validator.Validate
}

// New creates a validator with the custom username and strongpassword tags registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return isStrongPassword(fl.Field().String())
	})
	return &Validator{validate: v}
}

func isStrongPassword(s string) bool {
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// Validate implements echo.Validator interface.
func (v *Validator) Validate(i interface{}) error {
	return v.Struct(i)
}

// Struct validates every tagged field of s.
func (v *Validator) Struct(s interface{}) error {
	return translate(v.validate.Struct(s), "")
}

// Field validates a single value against the rules of the named field.
func (v *Validator) Field(name string, value interface{}, rules string) error {
	return translate(v.validate.Var(value, rules), name)
}

func translate(err error, field string) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	seen := make(map[string]bool)
	out := &apperrors.ValidationError{}
	for _, fe := range verrs {
		name := field
		if name == "" {
			name = fe.Field()
		}
		// One message per field is enough.
		if seen[name] {
			continue
		}
		seen[name] = true
		out.Fields = append(out.Fields, apperrors.FieldError{Field: name, Message: message(name, fe.Tag())})
	}
	return out
}

func message(field, tag string) string {
	if msg, ok := messages[field][tag]; ok {
		return msg
	}
	return field + " is invalid."
}
