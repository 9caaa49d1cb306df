// internal/config/database.go
package config

import (
	"fmt"
	"strings"
)

// DSN returns the postgres connection string. Sessions run in UTC so that
// month boundaries for deposit limits match the ledger timestamps.
func (d *DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}

	parts := []string{
		"host=" + d.Host,
		"port=" + d.Port,
		"user=" + d.User,
	}
	if d.Password != "" {
		parts = append(parts, "password="+d.Password)
	}
	parts = append(parts,
		"dbname="+d.Database,
		fmt.Sprintf("sslmode=%s", d.SSLMode),
		"TimeZone=UTC",
	)
	return strings.Join(parts, " ")
}
