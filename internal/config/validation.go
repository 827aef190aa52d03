package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate validates the configuration using struct tags registered with
// the go-playground/validator library, plus cross-section rules.
func Validate(cfg *Config) error {
	v := validator.New()
	v.RegisterStructValidation(validateStores, Config{})

	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config validation failed: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// validateStores allows at most one revision-token backend.
func validateStores(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)
	if cfg.Redis.URL != "" && cfg.Postgres.DSN != "" {
		sl.ReportError(cfg.Postgres.DSN, "Postgres.DSN", "DSN", "excluded_with_redis", "")
	}
}
