// Package config loads swarmweave's YAML configuration files and
// environment-variable overrides into a single Config value, the way
// cmd/config/pkg/config in the Synnergy example pack layers an
// environment-specific YAML file on top of a default one and then applies
// automatic env-var overrides via viper.
package config
