// Package config provides configuration for pharmacrawl.
//
// Settings are resolved in three layers: built-in defaults from NewConfig,
// an optional .pharmacrawl YAML file, and command-line flags. Credentials are
// kept out of all three; LoadCredentials reads them from the environment and
// from .env files.
package config
