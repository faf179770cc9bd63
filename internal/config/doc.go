// Package config loads, validates, and hot-reloads the daemon
// configuration.
//
// Configuration comes from a YAML file with per-field environment
// overrides (VSBL_*). Secrets are referenced indirectly: the file names
// an environment variable, never the secret itself. The Provider makes
// the current configuration available to the delivery pipeline, which
// re-reads it before every attempt.
package config
