package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/gearloop/assetloan/internal/apperr"
)

// validate is a package-level, concurrency-safe validator instance.
var validate = newValidator()

// BatchMax is the cap on bulk-endpoint batch sizes (§4.12). No custom tag
// backs it: a []T field applies it with the validator's built-in max tag,
// e.g. `validate:"max=100,dive"`, and no request type in this module
// carries that tag. Exposed so handlers can also pre-check before
// attempting to decode very large bodies.
const BatchMax = 100

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("password", validatePassword)
	// Name fields by their json tag so validation details use the names the
	// client sent (e.g. "employee_id", not the Go field EmployeeID).
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// passwordSymbols is the accepted symbol set for the password policy's
// symbol clause.
const passwordSymbols = `!@#$%^&*()-_=+[]{};:'",.<>/?` + "`~|\\"

// passwordClauses describes each §4.3 password-policy requirement and how
// to check it. Kept as a fixed, ordered list so a failing validation can
// report every unmet clause individually (§8 scenario 2: "details list the
// missing uppercase and symbol clauses"), not one lumped message.
var passwordClauses = []struct {
	message string
	ok      func(pw string) bool
}{
	{"must be at least 8 characters", func(pw string) bool { return len(pw) >= 8 }},
	{"must be at most 128 characters", func(pw string) bool { return len(pw) <= 128 }},
	{"must contain at least one uppercase letter", func(pw string) bool { return strings.ContainsFunc(pw, unicode.IsUpper) }},
	{"must contain at least one lowercase letter", func(pw string) bool { return strings.ContainsFunc(pw, unicode.IsLower) }},
	{"must contain at least one digit", func(pw string) bool { return strings.ContainsFunc(pw, unicode.IsDigit) }},
	{"must contain at least one symbol", func(pw string) bool { return strings.ContainsAny(pw, passwordSymbols) }},
}

// validatePassword is the struct-tag gate used by validator.Validate:
// true only if every clause in passwordClauses passes.
func validatePassword(fl validator.FieldLevel) bool {
	return len(passwordClauseErrors(fl.Field().String())) == 0
}

// passwordClauseErrors returns a message for every passwordClauses entry pw
// fails, in clause order.
func passwordClauseErrors(pw string) []string {
	var out []string
	for _, c := range passwordClauses {
		if !c.ok(pw) {
			out = append(out, c.message)
		}
	}
	return out
}

// Decode reads a JSON request body into dst. It enforces a max body size and
// disallows unknown fields. Returns an error suitable for display to the client.
func Decode(r *http.Request, dst any) error {
	const maxBody = 1 << 20 // 1 MiB

	body := http.MaxBytesReader(nil, r.Body, maxBody)
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			return fmt.Errorf("request body too large (max 1 MiB)")
		case errors.Is(err, io.EOF):
			return fmt.Errorf("request body is empty")
		default:
			return fmt.Errorf("invalid JSON: %w", err)
		}
	}

	// Reject trailing data after the first JSON value.
	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}

	return nil
}

// Validate runs struct-tag validation on v and returns field-level errors.
func Validate(v any) []apperr.FieldError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []apperr.FieldError{{Field: "", Message: err.Error()}}
	}

	out := make([]apperr.FieldError, 0, len(ve))
	for _, fe := range ve {
		field := jsonFieldName(fe)

		// The password clause reports one detail per failed requirement
		// instead of fieldErrorMessage's single lumped message (§8 scenario 2).
		if fe.Tag() == "password" {
			if pw, ok := fe.Value().(string); ok {
				for _, msg := range passwordClauseErrors(pw) {
					out = append(out, apperr.FieldError{Field: field, Message: msg})
				}
				continue
			}
		}

		out = append(out, apperr.FieldError{
			Field:   field,
			Message: fieldErrorMessage(fe),
		})
	}
	return out
}

// DecodeAndValidate is a convenience helper that decodes a JSON body and
// validates the result. On failure it writes a response and returns false;
// execution must never begin on a schema failure (§4.12).
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := Decode(r, dst); err != nil {
		RespondError(w, apperr.KindValidation, err.Error())
		return false
	}

	if errs := Validate(dst); len(errs) > 0 {
		RespondValidationError(w, errs)
		return false
	}

	return true
}

// jsonFieldName converts the validator's field namespace to the JSON field
// path: the struct name is dropped and the rest (already json tag names,
// see newValidator) is snake-cased.
func jsonFieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	// Namespace looks like "CreateRequest.employee_id" — drop the struct prefix.
	if idx := strings.Index(ns, "."); idx >= 0 {
		ns = ns[idx+1:]
	}
	return toSnakeCase(ns)
}

// fieldErrorMessage returns a human-readable message for a field error.
func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid UUID"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "url":
		return "must be a valid URL"
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}

// toSnakeCase converts PascalCase/camelCase to snake_case.
func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + 32)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
