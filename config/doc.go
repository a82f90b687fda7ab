// Package config loads and validates the application's YAML configuration.
//
// Load fills defaults for omitted fields and rejects inconsistent values at
// startup rather than letting them surface mid-session. Credentials come
// from the environment by default (ENGINELINK_AUTH_TOKEN) so tokens stay out
// of config files.
package config
