package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/dittostore/pkg/storage/helper"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("stanza", func(fl validator.FieldLevel) bool {
			return helper.ValidStanza(fl.Field().String()) == nil
		})
		_ = validate.RegisterValidation("abspath", func(fl validator.FieldLevel) bool {
			return filepath.IsAbs(fl.Field().String())
		})
	})
	return validate
}

// Validate checks the configuration and reports every invalid field.
func Validate(cfg *Config) error {
	err := getValidator().Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_if", "required_without", "required_unless":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "abspath":
		return fmt.Sprintf("%s must be an absolute path, got %q", field, fe.Value())
	case "stanza":
		return fmt.Sprintf("%s is not a valid stanza name: %q", field, fe.Value())
	case "min", "max", "gte", "lte", "gt":
		return fmt.Sprintf("%s must be %s %s, got %v", field, fe.Tag(), fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
