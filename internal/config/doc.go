// Package config loads and validates trader configuration from YAML.
//
// Configuration files may reference environment variables with ${VAR}
// syntax; they are expanded before parsing. Secrets (app key/secret,
// database password) are expected to arrive through the environment.
package config
