// Package config defines the application configuration structure and loads
// it from environment variables and optional config files using viper.
//
// Configuration is validated at startup; a missing database or cache URL is
// a fatal error so the server never starts in a half-wired state.
package config
