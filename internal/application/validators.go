package application

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// registerCustomValidators registers the domain-specific validation
// functions used by Config struct tags.
// registerCustomValidators returns an error if any validator registration fails.
func registerCustomValidators(v *validator.Validate) error {
	validators := map[string]validator.Func{
		"semver":    validateSemver,
		"extension": validateExtension,
		"loglevel":  validateLogLevel,
	}
	for tag, fn := range validators {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return nil
}

// validateSemver validates that a string follows semantic versioning
// format (X.Y.Z where X, Y, Z are non-negative integers).
func validateSemver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	var major, minor, patch int
	var rest string
	n, _ := fmt.Sscanf(value, "%d.%d.%d%s", &major, &minor, &patch, &rest)
	return n == 3 && major >= 0 && minor >= 0 && patch >= 0
}

// validateExtension requires a leading dot and no path separators.
func validateExtension(fl validator.FieldLevel) bool {
	return validExtension(fl.Field().String())
}

// validateLogLevel accepts the slog level names.
func validateLogLevel(fl validator.FieldLevel) bool {
	switch strings.ToLower(fl.Field().String()) {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
