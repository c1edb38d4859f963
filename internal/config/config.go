package config

import (
	"time"

	"github.com/vyrodovalexey/filtergw/internal/route"
)

// API identification for configuration files.
const (
	APIVersionPrefix  = "gateway.filtergw.io/"
	DefaultAPIVersion = APIVersionPrefix + "v1"
	KindGateway       = "Gateway"
)

// Default values.
const (
	DefaultListenPort        = 8080
	DefaultAdminPort         = 8081
	DefaultMetricsPort       = 9090
	DefaultMetricsPath       = "/metrics"
	DefaultReadTimeout       = 30 * time.Second
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultWriteTimeout      = 30 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultServiceName       = "filtergw"
)

// GatewayConfig is the root of the configuration file.
type GatewayConfig struct {
	APIVersion string      `yaml:"apiVersion" json:"apiVersion"`
	Kind       string      `yaml:"kind" json:"kind"`
	Metadata   Metadata    `yaml:"metadata" json:"metadata"`
	Spec       GatewaySpec `yaml:"spec" json:"spec"`
}

// Metadata identifies a gateway instance.
type Metadata struct {
	Name   string            `yaml:"name" json:"name"`
	Labels map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// GatewaySpec holds the gateway settings.
type GatewaySpec struct {
	Listener      ListenerConfig      `yaml:"listener" json:"listener"`
	Admin         AdminConfig         `yaml:"admin" json:"admin"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
	Filters       FiltersConfig       `yaml:"filters" json:"filters"`
	Proxy         ProxyConfig         `yaml:"proxy" json:"proxy"`

	// Routes are loaded into the route store on start and on every reload.
	Routes []route.Route `yaml:"routes,omitempty" json:"routes,omitempty"`
}

// ListenerConfig configures the proxy listener.
type ListenerConfig struct {
	Bind     string            `yaml:"bind,omitempty" json:"bind,omitempty"`
	Port     int               `yaml:"port" json:"port"`
	Timeouts *ListenerTimeouts `yaml:"timeouts,omitempty" json:"timeouts,omitempty"`
}

// Address returns the listen address.
func (l ListenerConfig) Address() string {
	return joinHostPort(l.Bind, l.Port)
}

// ListenerTimeouts contains timeout configuration for HTTP listeners.
type ListenerTimeouts struct {
	// ReadTimeout is the maximum duration for reading the entire request, including the body.
	ReadTimeout Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`

	// ReadHeaderTimeout is the maximum duration for reading request headers.
	ReadHeaderTimeout Duration `yaml:"readHeaderTimeout,omitempty" json:"readHeaderTimeout,omitempty"`

	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`

	// IdleTimeout is the maximum duration to wait for the next request when keep-alives are enabled.
	IdleTimeout Duration `yaml:"idleTimeout,omitempty" json:"idleTimeout,omitempty"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout Duration `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`
}

// effective returns d, or def when d is unset.
func effective(d Duration, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d.Duration()
}

// GetEffectiveReadTimeout returns the effective read timeout.
func (t *ListenerTimeouts) GetEffectiveReadTimeout() time.Duration {
	if t == nil {
		return DefaultReadTimeout
	}
	return effective(t.ReadTimeout, DefaultReadTimeout)
}

// GetEffectiveReadHeaderTimeout returns the effective read header timeout.
func (t *ListenerTimeouts) GetEffectiveReadHeaderTimeout() time.Duration {
	if t == nil {
		return DefaultReadHeaderTimeout
	}
	return effective(t.ReadHeaderTimeout, DefaultReadHeaderTimeout)
}

// GetEffectiveWriteTimeout returns the effective write timeout.
func (t *ListenerTimeouts) GetEffectiveWriteTimeout() time.Duration {
	if t == nil {
		return DefaultWriteTimeout
	}
	return effective(t.WriteTimeout, DefaultWriteTimeout)
}

// GetEffectiveIdleTimeout returns the effective idle timeout.
func (t *ListenerTimeouts) GetEffectiveIdleTimeout() time.Duration {
	if t == nil {
		return DefaultIdleTimeout
	}
	return effective(t.IdleTimeout, DefaultIdleTimeout)
}

// GetEffectiveShutdownTimeout returns the effective shutdown timeout.
func (t *ListenerTimeouts) GetEffectiveShutdownTimeout() time.Duration {
	if t == nil {
		return DefaultShutdownTimeout
	}
	return effective(t.ShutdownTimeout, DefaultShutdownTimeout)
}

// AdminConfig configures the route administration API.
type AdminConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Bind    string `yaml:"bind,omitempty" json:"bind,omitempty"`
	Port    int    `yaml:"port" json:"port"`
}

// Address returns the listen address.
func (a AdminConfig) Address() string {
	return joinHostPort(a.Bind, a.Port)
}

// ObservabilityConfig groups logging, metrics and tracing.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// MetricsConfig configures the metrics endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Port      int    `yaml:"port" json:"port"`
	Path      string `yaml:"path" json:"path"`
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	ServiceName  string  `yaml:"serviceName" json:"serviceName"`
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate" json:"samplingRate"`
}

// FiltersConfig enables and configures the global filters. Nil sections
// are disabled.
type FiltersConfig struct {
	AccessLog      *AccessLogConfig      `yaml:"accessLog,omitempty" json:"accessLog,omitempty"`
	RateLimit      *RateLimitConfig      `yaml:"rateLimit,omitempty" json:"rateLimit,omitempty"`
	RedisRateLimit *RedisRateLimitConfig `yaml:"redisRateLimit,omitempty" json:"redisRateLimit,omitempty"`
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuitBreaker,omitempty" json:"circuitBreaker,omitempty"`
	JWT            *JWTConfig            `yaml:"jwt,omitempty" json:"jwt,omitempty"`
}

// AccessLogConfig configures the access log filter.
type AccessLogConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// RateLimitConfig configures the local token bucket limiter.
type RateLimitConfig struct {
	Enabled           bool     `yaml:"enabled" json:"enabled"`
	RequestsPerSecond float64  `yaml:"requestsPerSecond" json:"requestsPerSecond"`
	Burst             int      `yaml:"burst" json:"burst"`
	PerClient         bool     `yaml:"perClient,omitempty" json:"perClient,omitempty"`
	ClientTTL         Duration `yaml:"clientTTL,omitempty" json:"clientTTL,omitempty"`
}

// RedisRateLimitConfig configures the distributed fixed window limiter.
type RedisRateLimitConfig struct {
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	Address   string   `yaml:"address" json:"address"`
	Password  string   `yaml:"password,omitempty" json:"-"`
	DB        int      `yaml:"db,omitempty" json:"db,omitempty"`
	Limit     int64    `yaml:"limit" json:"limit"`
	Window    Duration `yaml:"window" json:"window"`
	KeyPrefix string   `yaml:"keyPrefix,omitempty" json:"keyPrefix,omitempty"`
}

// CircuitBreakerConfig configures the circuit breaker filter.
type CircuitBreakerConfig struct {
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	Threshold int      `yaml:"threshold" json:"threshold"`
	Timeout   Duration `yaml:"timeout" json:"timeout"`
}

// JWTConfig configures bearer token authentication.
type JWTConfig struct {
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	Secret    string   `yaml:"secret" json:"-"`
	Algorithm string   `yaml:"algorithm,omitempty" json:"algorithm,omitempty"`
	Issuer    string   `yaml:"issuer,omitempty" json:"issuer,omitempty"`
	Audience  string   `yaml:"audience,omitempty" json:"audience,omitempty"`
	Skew      Duration `yaml:"skew,omitempty" json:"skew,omitempty"`
}

// ProxyConfig configures upstream calls.
type ProxyConfig struct {
	Timeout       Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	FlushInterval Duration `yaml:"flushInterval,omitempty" json:"flushInterval,omitempty"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *GatewayConfig {
	return &GatewayConfig{
		APIVersion: DefaultAPIVersion,
		Kind:       KindGateway,
		Metadata:   Metadata{Name: "gateway"},
		Spec: GatewaySpec{
			Listener: ListenerConfig{Port: DefaultListenPort},
			Admin:    AdminConfig{Enabled: true, Port: DefaultAdminPort},
			Observability: ObservabilityConfig{
				Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
				Metrics: MetricsConfig{Enabled: true, Port: DefaultMetricsPort, Path: DefaultMetricsPath},
				Tracing: TracingConfig{ServiceName: DefaultServiceName, SamplingRate: 1.0},
			},
			Filters: FiltersConfig{
				AccessLog: &AccessLogConfig{Enabled: true},
			},
		},
	}
}
