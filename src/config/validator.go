package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
)

// Validator validates configuration values using go-playground/validator
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	v := validator.New()

	v.RegisterValidation("provider", validateProvider)
	v.RegisterValidation("content_format", validateContentFormat)
	v.RegisterValidation("log_format", validateLogFormat)

	return &Validator{
		validate: v,
	}
}

// Validate validates a complete configuration
func (v *Validator) Validate(config *Config) error {
	if config.Version == "" {
		config.Version = "1.0"
	}

	if err := v.validate.Struct(config); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			e := validationErrors[0]
			return ValidationError{
				Field:   e.Namespace(),
				Message: fmt.Sprintf("%s: validation failed on tag '%s' with value '%v'", e.Namespace(), e.Tag(), e.Value()),
				Value:   e.Value(),
			}
		}
		return err
	}

	return nil
}

// validateProvider validates embedding provider values
func validateProvider(fl validator.FieldLevel) bool {
	return oneOf(fl.Field().String(), "openai", "ollama")
}

// validateContentFormat validates page content formats
func validateContentFormat(fl validator.FieldLevel) bool {
	return oneOf(fl.Field().String(), "text", "markdown")
}

// validateLogFormat validates log format values
func validateLogFormat(fl validator.FieldLevel) bool {
	return oneOf(fl.Field().String(), "json", "text")
}

// oneOf allows empty values, which defaults fill in.
func oneOf(value string, valid ...string) bool {
	return value == "" || slices.Contains(valid, value)
}
