package configuration

import (
	"strings"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

var validate = validator.New()

// Validate rejects configuration that would leave the allocator unable
// to compute a resource spec, run its launcher pool, or reach the
// driver/RM. Config parse errors are the caller's problem (Viper); this
// only checks the unmarshalled values are sane, via struct tags on the
// types in types.go.
func Validate(config AllocatorConfiguration) error {
	if err := validate.Struct(config); err != nil {
		logValidationErrors(err)
		return err
	}
	return nil
}

// logValidationErrors reports each failed field individually, in the
// same shape as the common config package's LogValidationErrors.
func logValidationErrors(err error) {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		log.Errorf("ConfigError: %s", err)
		return
	}
	for _, fieldErr := range validationErrors {
		fieldName := stripPrefix(fieldErr.Namespace())
		switch fieldErr.Tag() {
		case "required":
			log.Errorf("ConfigError: field %s is required but was not set", fieldName)
		default:
			log.Errorf("ConfigError: field %s has invalid value %v: fails %q", fieldName, fieldErr.Value(), fieldErr.Tag())
		}
	}
}

func stripPrefix(namespace string) string {
	if idx := strings.Index(namespace, "."); idx != -1 {
		return namespace[idx+1:]
	}
	return namespace
}
