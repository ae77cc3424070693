// Package config defines the engine configuration structure.
package config
