// Package config loads, parses, and validates application settings from
// environment variables (FARE_ prefix plus a few conventional aliases), an
// optional .env file, and an optional config.yaml.
package config
