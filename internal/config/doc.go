// Package config provides configuration management for the gateway.
//
// Configuration is read from a YAML file. ${VAR} and ${VAR:-default}
// references are replaced with environment values before parsing, and "$$"
// escapes a literal dollar sign. Values absent from the file keep the
// defaults of DefaultConfig.
//
// A Watcher reloads the file when it changes and hands every valid new
// configuration to a callback; invalid revisions are reported and skipped.
package config
