// Package health provides liveness and readiness endpoints.
//
// A Checker aggregates named checks. Critical checks that fail make the
// gateway unready; non-critical failures report it as degraded.
package health
