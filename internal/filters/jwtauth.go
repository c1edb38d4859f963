package filters

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/vyrodovalexey/filtergw/internal/async"
	"github.com/vyrodovalexey/filtergw/internal/exchange"
	"github.com/vyrodovalexey/filtergw/internal/filter"
	"github.com/vyrodovalexey/filtergw/internal/observability"
	"github.com/vyrodovalexey/filtergw/internal/util"
)

const bearerPrefix = "Bearer "

// Token extraction errors.
var (
	ErrMissingToken  = errors.New("missing authorization header")
	ErrInvalidPrefix = errors.New("invalid authorization prefix")
)

// JWTConfig configures JWT validation.
type JWTConfig struct {
	// Secret is the HMAC signing key.
	Secret []byte

	// Algorithm is the HMAC algorithm; defaults to HS256.
	Algorithm string

	// Issuer, when set, must match the iss claim.
	Issuer string

	// Audience, when set, must be present in the aud claim.
	Audience string

	// Skew is the tolerated clock skew for exp/nbf/iat.
	Skew time.Duration
}

// JWTAuth validates HMAC-signed bearer tokens. Requests without a valid
// token are rejected with 401; claims of accepted tokens are stored in the
// exchange under exchange.AttrClaims.
type JWTAuth struct {
	opts      options
	cfg       JWTConfig
	algorithm jwa.SignatureAlgorithm
}

// NewJWTAuth creates a JWTAuth filter.
func NewJWTAuth(cfg JWTConfig, opts ...Option) (*JWTAuth, error) {
	if len(cfg.Secret) == 0 {
		return nil, util.NewConfigError("jwt.secret", "secret is required")
	}

	alg := jwa.HS256
	if cfg.Algorithm != "" {
		alg = jwa.SignatureAlgorithm(cfg.Algorithm)
		switch alg {
		case jwa.HS256, jwa.HS384, jwa.HS512:
		default:
			return nil, util.NewConfigError("jwt.algorithm", fmt.Sprintf("unsupported algorithm %q", cfg.Algorithm))
		}
	}

	return &JWTAuth{opts: newOptions(opts), cfg: cfg, algorithm: alg}, nil
}

// Name implements filter.Named.
func (f *JWTAuth) Name() string { return "JWTAuth" }

// Order implements filter.Ordered.
func (f *JWTAuth) Order() int { return OrderJWTAuth }

// Filter implements filter.Filter.
func (f *JWTAuth) Filter(ex *exchange.Exchange, chain filter.Chain) *async.Completion {
	claims, err := f.Validate(ex.Request())
	if err != nil {
		f.opts.logger.Debug("jwt authentication failed",
			observability.String("path", ex.Request().URL.Path),
			observability.Error(err),
		)
		ex.Response().Header().Set(HeaderWWWAuthenticate, `Bearer realm="gateway"`)
		f.opts.reject(ex, f.Name(), http.StatusUnauthorized, "unauthorized")
		return async.Complete()
	}

	ex.SetAttribute(exchange.AttrClaims, claims)
	return chain.Filter(ex)
}

// Validate extracts and verifies the bearer token of r and returns its claims.
func (f *JWTAuth) Validate(r *http.Request) (map[string]any, error) {
	raw, err := extractBearer(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", util.ErrUnauthorized, err)
	}

	parseOpts := []jwt.ParseOption{
		jwt.WithKey(f.algorithm, f.cfg.Secret),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(f.cfg.Skew),
	}
	if f.cfg.Issuer != "" {
		parseOpts = append(parseOpts, jwt.WithIssuer(f.cfg.Issuer))
	}
	if f.cfg.Audience != "" {
		parseOpts = append(parseOpts, jwt.WithAudience(f.cfg.Audience))
	}

	token, err := jwt.ParseString(raw, parseOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", util.ErrUnauthorized, err)
	}

	claims, err := token.AsMap(r.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to read claims: %w", err)
	}
	return claims, nil
}

func extractBearer(r *http.Request) (string, error) {
	header := r.Header.Get(HeaderAuthorization)
	if header == "" {
		return "", ErrMissingToken
	}
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", ErrInvalidPrefix
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
