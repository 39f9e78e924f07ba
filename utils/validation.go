// utils/validation.go
package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// ValidatePhone checks if a phone number is in a valid international format
func ValidatePhone(phone string) bool {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(phone)
	return phonePattern.MatchString(cleaned)
}

// ValidationFields converts a gin binding error into field messages keyed by
// the JSON (or form) name of the offending field.
func ValidationFields(err error) map[string][]string {
	fields := map[string][]string{}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			name := fe.Field()
			fields[name] = append(fields[name], fieldMessage(name, fe))
		}
		return fields
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		fields[typeErr.Field] = []string{fmt.Sprintf("The %s field has an invalid type.", typeErr.Field)}
		return fields
	}

	fields["body"] = []string{"The request body is malformed."}
	return fields
}

func fieldMessage(name string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", name)
	case "email":
		return fmt.Sprintf("The %s field must be a valid email address.", name)
	case "min", "gte":
		return fmt.Sprintf("The %s field must be at least %s.", name, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("The %s field must not be greater than %s.", name, fe.Param())
	case "gt":
		return fmt.Sprintf("The %s field must be greater than %s.", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", name)
	case "uuid":
		return fmt.Sprintf("The %s field must be a valid UUID.", name)
	default:
		return fmt.Sprintf("The %s field is invalid.", name)
	}
}

// RegisterJSONTagNames makes validator report json tag names so 422 bodies
// carry the same keys as the request.
func RegisterJSONTagNames(v *validator.Validate) {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
}
