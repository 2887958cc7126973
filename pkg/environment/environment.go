// Package environment decides whether the process runs against development or production
// and which connection descriptor it may use.
package environment

import (
	"errors"
	"fmt"
	"strings"
)

// Environment is the process-wide deployment mode. It is set once at startup.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

func (e Environment) String() string {
	return string(e)
}

// IsDevelopment reports whether dev-only features may be enabled.
func (e Environment) IsDevelopment() bool {
	return e == Development
}

// ParseEnvironment parses the mode flag. An empty flag means development.
func ParseEnvironment(mode string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "development", "dev":
		return Development, nil
	case "production", "prod":
		return Production, nil
	default:
		return "", &ConfigError{Rule: "mode", Msg: fmt.Sprintf("unknown environment %q", mode)}
	}
}

// ConfigError is a fatal configuration problem. The process must stop before opening
// any connection when one is returned.
type ConfigError struct {
	Rule string
	Msg  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("environment configuration error (%s): %s", e.Rule, e.Msg)
}

// IsConfigError reports whether err is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
