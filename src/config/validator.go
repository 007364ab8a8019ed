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

	// Register custom validation functions
	v.RegisterValidation("wire_format", oneOf(FormatTags, FormatRecords))
	v.RegisterValidation("memory_backend", oneOf(BackendFS, BackendSQLite))
	v.RegisterValidation("log_level", oneOf("debug", "info", "warn", "error"))
	v.RegisterValidation("log_format", oneOf("json", "text"))

	return &Validator{
		validate: v,
	}
}

// Validate validates a complete configuration
func (v *Validator) Validate(config *Config) error {
	// Set default version if empty
	if config.Version == "" {
		config.Version = "1.0"
	}

	if err := v.validate.Struct(config); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			// Report the first failure, named by its config path.
			e := validationErrors[0]
			return ValidationError{
				Field:   e.Namespace(),
				Message: fmt.Sprintf("validation failed on tag '%s' with value '%v'", e.Tag(), e.Value()),
				Value:   e.Value(),
			}
		}
		return err
	}

	if config.Memory.Backend == BackendFS && config.Memory.RootDir == "" {
		return ValidationError{Field: "Config.Memory.RootDir", Message: "required by the fs backend"}
	}
	return nil
}

// oneOf accepts the empty string, which defaults fill, or one of values.
func oneOf(values ...string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return value == "" || slices.Contains(values, value)
	}
}
