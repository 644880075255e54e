package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"menu-catalog-api/internal/apperr"
)

// Binding turns an error from gin's ShouldBind* family into a ValidationError
// listing one detail per failed field.
func Binding(err error, message string) *apperr.ValidationError {
	if err == nil {
		return nil
	}
	return apperr.NewValidation(message, BindingDetails(err)...)
}

func BindingDetails(err error) []string {
	var (
		verrs  validator.ValidationErrors
		syntax *json.SyntaxError
		typ    *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &verrs):
		details := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, fieldMessage(fe))
		}
		return details
	case errors.As(err, &syntax):
		return []string{fmt.Sprintf("malformed JSON at offset %d", syntax.Offset)}
	case errors.As(err, &typ):
		return []string{fmt.Sprintf("%s must be of type %s", typ.Field, typ.Type)}
	case errors.Is(err, io.EOF):
		return []string{"request body is required"}
	default:
		return []string{err.Error()}
	}
}

func fieldMessage(fe validator.FieldError) string {
	field := jsonPath(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// RegisterTagNames makes field errors use the form or json tag name, the
// spelling callers actually sent.
func RegisterTagNames(v *validator.Validate) {
	v.RegisterTagNameFunc(FieldName)
}

func FieldName(fld reflect.StructField) string {
	for _, tag := range []string{"form", "json"} {
		name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return ""
}

// jsonPath converts a validator namespace such as
// "CalorieRequest.MenuItems[0].Quantity" into "menu_items[0].quantity".
func jsonPath(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		idx := ""
		if j := strings.IndexByte(p, '['); j >= 0 {
			p, idx = p[:j], p[j:]
		}
		parts[i] = snake(p) + idx
	}
	return strings.Join(parts, ".")
}

func snake(s string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			if prevLower {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
			prevLower = false
		} else {
			prevLower = true
		}
		b.WriteRune(r)
	}
	return b.String()
}
