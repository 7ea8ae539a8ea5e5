package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	wberr "wirebridge/internal/errors"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			if name := f.Tag.Get("flag"); name != "" {
				return name
			}
			return f.Name
		})
	})
	return validate
}

// ── Validation ───────────────────────────────────────────────────────

// Validate resolves the tunnel spec and checks that the configuration
// is internally consistent.  Problems are reported as
// *errors.ConfigError naming the flag to fix.
func (c *Config) Validate() error {
	if c.TunnelSpec != "" {
		user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
		if err != nil {
			return &wberr.ConfigError{
				Field:   "tunnel",
				Value:   c.TunnelSpec,
				Message: err.Error(),
				Hint:    "use [user@]host[:port], e.g. deploy@bastion.example.com:22",
			}
		}
		c.TunnelEnabled = true
		c.TunnelUser, c.TunnelHost, c.TunnelPort = user, host, port
	}

	if c.Timeout < 0 {
		return &wberr.ConfigError{
			Field:   "timeout",
			Value:   c.Timeout,
			Message: "must not be negative",
			Hint:    "use a duration such as 5s or 250ms",
		}
	}

	if err := validatorInstance().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return configError(verrs[0])
		}
		return err
	}
	return nil
}

// configError turns a validator failure into a ConfigError with a
// hint for the tag that failed.
func configError(fe validator.FieldError) *wberr.ConfigError {
	ce := &wberr.ConfigError{Field: fe.Field(), Value: fe.Value()}
	switch fe.Tag() {
	case "required", "required_if":
		ce.Value = nil
		ce.Message = "is required"
		ce.Hint = fmt.Sprintf("set --%s, the %s environment variable or the wire file", fe.Field(), envName(fe.Field()))
	case "min", "max":
		ce.Message = fmt.Sprintf("out of range (%s %s)", fe.Tag(), fe.Param())
		if fe.Field() == "port" || fe.Field() == "tunnel" {
			ce.Hint = "ports must be between 1 and 65535"
		}
	case "oneof":
		ce.Message = "must be one of: " + fe.Param()
	case "file":
		ce.Message = "file does not exist"
		ce.Hint = "check the path to your private key"
	case "hostname_rfc1123", "ip", "hostname_rfc1123|ip":
		ce.Message = "not a valid hostname or IP address"
	default:
		ce.Message = fmt.Sprintf("failed %q validation", fe.Tag())
	}
	return ce
}

func envName(flag string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}
