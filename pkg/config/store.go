package config

import (
	"fmt"
	"strings"
)

const (
	StoreKindPostgres = "postgres"
	StoreKindMemory   = "memory"
)

// StoreConfig selects the product store backend.
type StoreConfig struct {
	Kind string `koanf:"kind"`
}

// String returns a string representation of the store configuration.
func (c *StoreConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Store ---\n")
	b.WriteString(fmt.Sprintf("  kind: %s\n", c.Kind))
	return b.String()
}

// Validate defaults an empty kind to postgres.
func (c *StoreConfig) Validate() error {
	switch c.Kind {
	case "":
		c.Kind = StoreKindPostgres
	case StoreKindPostgres, StoreKindMemory:
	default:
		return fmt.Errorf("unknown store kind %q, expected %q or %q", c.Kind, StoreKindPostgres, StoreKindMemory)
	}
	return nil
}
