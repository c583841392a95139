// Package config defines the application's configuration structure and
// loads it from environment variables (MOVA_ prefix) and an optional
// mova.yaml file, validating the result before anything starts.
package config
