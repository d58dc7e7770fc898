// Package config loads and validates the Device Control Container
// configuration: baseline defaults, optional YAML file, then DCC_*
// environment overrides, in that order of precedence.
package config
