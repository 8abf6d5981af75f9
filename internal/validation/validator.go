// Package validation wraps a shared go-playground validator and turns its
// errors into the field → message maps returned by request Validate methods.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the process-wide validator instance. Field names in
// errors are taken from json tags so they match the request bodies.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})
	return validate
}

// Struct validates s and returns nil or a non-empty field error map.
func Struct(s interface{}) map[string]string {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return map[string]string{"_": err.Error()}
	}

	out := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		key := fe.Field()
		if _, exists := out[key]; exists {
			continue
		}
		out[key] = translate(fe)
	}
	return out
}

// Merge copies extra into base, allocating base when needed.
func Merge(base, extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return base
	}
	if base == nil {
		base = make(map[string]string, len(extra))
	}
	for k, v := range extra {
		if _, exists := base[k]; !exists {
			base[k] = v
		}
	}
	return base
}

var messages = map[string]string{
	"required":  "%s is required",
	"notblank":  "%s is required",
	"email":     "%s must be a valid email address",
	"url":       "%s must be a valid URL",
	"uuid4":     "%s must be a valid id",
	"latitude":  "%s must be a valid latitude (-90 to 90)",
	"longitude": "%s must be a valid longitude (-180 to 180)",
	"alphanum":  "%s may only contain letters and digits",
}

var messagesWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
}

func translate(fe validator.FieldError) string {
	field := fe.Field()
	if tmpl, ok := messages[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field)
	}
	if tmpl, ok := messagesWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field, fe.Param())
	}

	isCollection := fe.Kind() == reflect.Slice || fe.Kind() == reflect.Map
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "min":
		switch {
		case isString:
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		case isCollection:
			return fmt.Sprintf("%s must contain at least %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		switch {
		case isString:
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		case isCollection:
			return fmt.Sprintf("%s must contain at most %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}
