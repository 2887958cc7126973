package environment

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Rule names, used as the "rule" log field and in ConfigError.
const (
	RulePlaceholder   = "dev-placeholder"
	RuleDevRequired   = "dev-url-required"
	RuleDevPointsProd = "dev-contains-prod"
	RuleProdRequired  = "prod-url-required"
	RuleProdPointsDev = "prod-contains-dev"
	RuleIsolation     = "environment-isolation"
	RuleInvalidURL    = "invalid-url"
)

const (
	productionMarker  = "prod"
	developmentMarker = "dev"
)

// Settings are the raw knobs the resolver reads.
type Settings struct {
	Mode           string
	DatabaseURL    string
	ProductionURL  string
	DevelopmentURL string
}

// ServerResolution is what the main server process runs with.
type ServerResolution struct {
	Environment Environment
	Descriptor  Descriptor
	// Placeholder is set when development has no database of its own.
	// All database work must then go to an in-memory mock.
	Placeholder bool
}

// ToolingResolution pins one descriptor to each environment for compare and sync tooling.
type ToolingResolution struct {
	Environment Environment
	Production  Descriptor
	Development Descriptor
}

// Resolver applies the isolation rules to Settings.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver creates a Resolver that reports each rule it applies to logger.
func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{logger: logger.Named("environment")}
}

// ResolveServer selects the environment and the single descriptor for application traffic.
func (r *Resolver) ResolveServer(s Settings) (*ServerResolution, error) {
	env, err := ParseEnvironment(s.Mode)
	if err != nil {
		return nil, err
	}

	if env == Development {
		if strings.TrimSpace(s.DevelopmentURL) == "" {
			r.logger.Warn("DEVELOPMENT MODE WITHOUT A DEVELOPMENT DATABASE: running in placeholder mode, "+
				"database operations are served by an in-memory mock",
				zap.String("rule", RulePlaceholder))
			return &ServerResolution{Environment: env, Placeholder: true}, nil
		}
		desc, err := r.development(s.DevelopmentURL)
		if err != nil {
			return nil, err
		}
		// A configured production string is never opened here, only used to prove isolation.
		if raw := r.productionURL(s); strings.TrimSpace(raw) != "" {
			prod, err := ParseDescriptor(raw)
			if err != nil {
				return nil, &ConfigError{Rule: RuleInvalidURL, Msg: fmt.Sprintf("production: %v", err)}
			}
			if err := r.isolated(raw, s.DevelopmentURL, prod, desc); err != nil {
				return nil, err
			}
		}
		r.logger.Info("Using development database",
			zap.String("url", desc.Masked()),
			zap.String("schema", desc.Schema))
		return &ServerResolution{Environment: env, Descriptor: desc}, nil
	}

	desc, err := r.production(s)
	if err != nil {
		return nil, err
	}
	return &ServerResolution{Environment: env, Descriptor: desc}, nil
}

// ResolveTooling requires both descriptors and proves they point at different targets.
// Nothing here opens a connection.
func (r *Resolver) ResolveTooling(s Settings) (*ToolingResolution, error) {
	env, err := ParseEnvironment(s.Mode)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(s.DevelopmentURL) == "" {
		r.logger.Error("Development connection string is required for sync tooling",
			zap.String("rule", RuleDevRequired))
		return nil, &ConfigError{Rule: RuleDevRequired, Msg: "DEV_DATABASE_URL must be set for comparison tooling"}
	}

	dev, err := r.development(s.DevelopmentURL)
	if err != nil {
		return nil, err
	}
	prod, err := r.production(s)
	if err != nil {
		return nil, err
	}

	if err := r.isolated(r.productionURL(s), s.DevelopmentURL, prod, dev); err != nil {
		return nil, err
	}

	r.logger.Info("Resolved sync environments",
		zap.String("production", prod.Masked()),
		zap.String("development", dev.Masked()),
		zap.String("development_schema", dev.Schema))

	return &ToolingResolution{Environment: env, Production: prod, Development: dev}, nil
}

// isolated fails unless production and development name different targets, both textually
// and by normalized identity.
func (r *Resolver) isolated(prodRaw, devRaw string, prod, dev Descriptor) error {
	if strings.TrimSpace(devRaw) == strings.TrimSpace(prodRaw) {
		r.logger.Error("Production and development connection strings are identical",
			zap.String("rule", RuleIsolation))
		return &ConfigError{Rule: RuleIsolation, Msg: "production and development connection strings are identical"}
	}

	prodID, err := prod.Identity()
	if err != nil {
		return &ConfigError{Rule: RuleInvalidURL, Msg: fmt.Sprintf("production: %v", err)}
	}
	devID, err := dev.Identity()
	if err != nil {
		return &ConfigError{Rule: RuleInvalidURL, Msg: fmt.Sprintf("development: %v", err)}
	}
	if prodID == devID {
		r.logger.Error("Production and development resolve to the same database and schema",
			zap.String("rule", RuleIsolation),
			zap.Stringer("target", prodID))
		return &ConfigError{Rule: RuleIsolation, Msg: fmt.Sprintf("both environments resolve to %s", prodID)}
	}
	return nil
}

func (r *Resolver) development(raw string) (Descriptor, error) {
	desc, err := ParseDescriptor(raw)
	if err != nil {
		return Descriptor{}, &ConfigError{Rule: RuleInvalidURL, Msg: fmt.Sprintf("development: %v", err)}
	}
	if desc.containsMarker(productionMarker) {
		r.logger.Error("Development connection string points at production",
			zap.String("rule", RuleDevPointsProd),
			zap.String("url", desc.Masked()))
		return Descriptor{}, &ConfigError{
			Rule: RuleDevPointsProd,
			Msg:  "development connection string contains \"prod\"",
		}
	}
	return desc, nil
}

func (r *Resolver) productionURL(s Settings) string {
	if strings.TrimSpace(s.ProductionURL) != "" {
		return s.ProductionURL
	}
	return s.DatabaseURL
}

func (r *Resolver) production(s Settings) (Descriptor, error) {
	raw := r.productionURL(s)
	if strings.TrimSpace(raw) == "" {
		r.logger.Error("Production connection string is not set",
			zap.String("rule", RuleProdRequired))
		return Descriptor{}, &ConfigError{Rule: RuleProdRequired, Msg: "PROD_DATABASE_URL or DATABASE_URL must be set"}
	}

	desc, err := ParseDescriptor(raw)
	if err != nil {
		return Descriptor{}, &ConfigError{Rule: RuleInvalidURL, Msg: fmt.Sprintf("production: %v", err)}
	}
	if desc.containsMarker(developmentMarker) {
		r.logger.Warn("PRODUCTION CONNECTION STRING LOOKS LIKE A DEVELOPMENT DATABASE",
			zap.String("rule", RuleProdPointsDev),
			zap.String("url", desc.Masked()))
	}
	return desc, nil
}
