package request

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/edvin/deploytrack/internal/health"
)

var validate = validator.New()

// Service names become part of broadcast topics and backup object keys,
// so they stay lowercase DNS-label style: no underscores, no dots.
var serviceNameRegex = regexp.MustCompile(`^[a-z][a-z0-9-]{0,62}$`)

func init() {
	validate.RegisterValidation("servicename", func(fl validator.FieldLevel) bool {
		return serviceNameRegex.MatchString(fl.Field().String())
	})
	validate.RegisterValidation("shape", func(fl validator.FieldLevel) bool {
		return health.KnownShape(health.Shape(fl.Field().String()))
	})
}

func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

func RequireID(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("missing required ID")
	}
	return s, nil
}
