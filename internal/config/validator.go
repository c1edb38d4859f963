package config

import (
	"fmt"
	"strings"

	"github.com/vyrodovalexey/filtergw/internal/route"
	"github.com/vyrodovalexey/filtergw/internal/util"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, e[i].Error())
	}
	return sb.String()
}

// Is reports util.ErrConfigInvalid as a match.
func (e ValidationErrors) Is(target error) bool {
	return target == util.ErrConfigInvalid
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// PredicateValidator checks a route predicate expression.
type PredicateValidator func(expr string) error

// FilterValidator checks the per-route filter definitions.
type FilterValidator func(defs []route.FilterDefinition) error

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithPredicateValidator enables predicate checks on routes.
func WithPredicateValidator(fn PredicateValidator) ValidatorOption {
	return func(v *Validator) {
		v.predicate = fn
	}
}

// WithFilterValidator enables per-route filter checks.
func WithFilterValidator(fn FilterValidator) ValidatorOption {
	return func(v *Validator) {
		v.filters = fn
	}
}

// Validator validates gateway configuration.
type Validator struct {
	errors    ValidationErrors
	predicate PredicateValidator
	filters   FilterValidator
}

// NewValidator creates a new configuration validator.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{errors: make(ValidationErrors, 0)}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateConfig validates a gateway configuration without predicate or
// filter checks.
func ValidateConfig(cfg *GatewayConfig) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(cfg *GatewayConfig) error {
	v.errors = make(ValidationErrors, 0)

	if cfg == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateRoot(cfg)
	if cfg.Metadata.Name == "" {
		v.addError("metadata.name", "name is required")
	}
	v.validateSpec(&cfg.Spec)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

// ValidateRoute validates a single route outside of a configuration file.
func (v *Validator) ValidateRoute(r *route.Route) error {
	v.errors = make(ValidationErrors, 0)
	v.validateRoute(r, "route")
	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateRoot(cfg *GatewayConfig) {
	if cfg.APIVersion == "" {
		v.addError("apiVersion", "apiVersion is required")
	} else if !strings.HasPrefix(cfg.APIVersion, APIVersionPrefix) {
		v.addError("apiVersion", fmt.Sprintf("apiVersion must start with '%s'", APIVersionPrefix))
	}

	if cfg.Kind == "" {
		v.addError("kind", "kind is required")
	} else if cfg.Kind != KindGateway {
		v.addError("kind", fmt.Sprintf("kind must be '%s'", KindGateway))
	}
}

func (v *Validator) validateSpec(spec *GatewaySpec) {
	v.validatePort("spec.listener.port", spec.Listener.Port)
	if spec.Admin.Enabled {
		v.validatePort("spec.admin.port", spec.Admin.Port)
		if spec.Admin.Port == spec.Listener.Port && spec.Admin.Bind == spec.Listener.Bind {
			v.addError("spec.admin.port", "admin port conflicts with listener port")
		}
	}

	v.validateObservability(&spec.Observability)
	v.validateFilters(&spec.Filters)

	if spec.Proxy.Timeout < 0 {
		v.addError("spec.proxy.timeout", "timeout must be non-negative")
	}

	ids := make(map[string]bool, len(spec.Routes))
	for i := range spec.Routes {
		path := fmt.Sprintf("spec.routes[%d]", i)
		r := &spec.Routes[i]
		if r.ID != "" {
			if ids[r.ID] {
				v.addError(path+".id", fmt.Sprintf("duplicate route id: %s", r.ID))
			}
			ids[r.ID] = true
		}
		v.validateRoute(r, path)
	}
}

func (v *Validator) validateObservability(obs *ObservabilityConfig) {
	switch strings.ToLower(obs.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		v.addError("spec.observability.logging.level", "level must be debug, info, warn or error")
	}
	switch strings.ToLower(obs.Logging.Format) {
	case "", "json", "console":
	default:
		v.addError("spec.observability.logging.format", "format must be json or console")
	}

	if obs.Metrics.Enabled {
		v.validatePort("spec.observability.metrics.port", obs.Metrics.Port)
		if !strings.HasPrefix(obs.Metrics.Path, "/") {
			v.addError("spec.observability.metrics.path", "path must start with '/'")
		}
	}

	if obs.Tracing.Enabled && (obs.Tracing.SamplingRate < 0 || obs.Tracing.SamplingRate > 1) {
		v.addError("spec.observability.tracing.samplingRate", "samplingRate must be between 0 and 1")
	}
}

func (v *Validator) validateFilters(f *FiltersConfig) {
	if rl := f.RateLimit; rl != nil && rl.Enabled {
		if rl.RequestsPerSecond <= 0 {
			v.addError("spec.filters.rateLimit.requestsPerSecond", "requestsPerSecond must be positive")
		}
		if rl.Burst <= 0 {
			v.addError("spec.filters.rateLimit.burst", "burst must be positive")
		}
	}

	if rr := f.RedisRateLimit; rr != nil && rr.Enabled {
		if rr.Address == "" {
			v.addError("spec.filters.redisRateLimit.address", "address is required")
		}
		if rr.Limit <= 0 {
			v.addError("spec.filters.redisRateLimit.limit", "limit must be positive")
		}
		if rr.Window <= 0 {
			v.addError("spec.filters.redisRateLimit.window", "window must be positive")
		}
	}

	if cb := f.CircuitBreaker; cb != nil && cb.Enabled {
		if cb.Threshold <= 0 {
			v.addError("spec.filters.circuitBreaker.threshold", "threshold must be positive")
		}
		if cb.Timeout <= 0 {
			v.addError("spec.filters.circuitBreaker.timeout", "timeout must be positive")
		}
	}

	if j := f.JWT; j != nil && j.Enabled {
		if j.Secret == "" {
			v.addError("spec.filters.jwt.secret", "secret is required")
		}
		switch j.Algorithm {
		case "", "HS256", "HS384", "HS512":
		default:
			v.addError("spec.filters.jwt.algorithm", "algorithm must be HS256, HS384 or HS512")
		}
	}
}

func (v *Validator) validateRoute(r *route.Route, path string) {
	if r.ID == "" {
		v.addError(path+".id", "id is required")
	}
	if err := util.ValidateURL(r.URI); err != nil {
		v.addError(path+".uri", err.Error())
	}
	if v.predicate != nil && r.Predicate != "" {
		if err := v.predicate(r.Predicate); err != nil {
			v.addError(path+".predicate", err.Error())
		}
	}
	if v.filters != nil && len(r.Filters) > 0 {
		if err := v.filters(r.Filters); err != nil {
			v.addError(path+".filters", err.Error())
		}
	}
}

func (v *Validator) validatePort(path string, port int) {
	if err := util.ValidatePort(port); err != nil {
		v.addError(path, err.Error())
	}
}

// addError adds a validation error.
func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}
