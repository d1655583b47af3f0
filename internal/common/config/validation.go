package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/armadaproject/couponseed/internal/common/couponerrors"
)

// LogValidationErrors logs one line per problem found by validator or by a multierror of
// *couponerrors.ErrInvalidArgument.
func LogValidationErrors(err error) {
	if err == nil {
		return
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, err := range validationErrors {
			fieldName := stripPrefix(err.Namespace())
			tag := err.Tag()
			switch tag {
			case "required":
				log.Errorf("ConfigError: Field %s is required but was not found", fieldName)
			default:
				log.Errorf("ConfigError: Field %s has invalid value %v: %s", fieldName, err.Value(), tag)
			}
		}
		return
	}

	var merr *multierror.Error
	if !errors.As(err, &merr) {
		log.Errorf("ConfigError: %s", err)
		return
	}
	for _, err := range merr.Errors {
		var invalid *couponerrors.ErrInvalidArgument
		if errors.As(err, &invalid) {
			log.Errorf("ConfigError: Field %s has invalid value %v: %s", invalid.Name, invalid.Value, invalid.Message)
		} else {
			log.Errorf("ConfigError: %s", err)
		}
	}
}

func stripPrefix(s string) string {
	if idx := strings.Index(s, "."); idx != -1 {
		return s[idx+1:]
	}
	return s
}
