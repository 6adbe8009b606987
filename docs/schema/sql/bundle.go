// Package sqldocs exposes the SQL schema bundles directly from the docs tree.
package sqldocs

import (
	_ "embed"
	"strings"
)

// Postgres contains the PostgreSQL DDL bundle.
//
//go:embed postgres.sql
var Postgres string

// Statements splits a bundle into its individual statements, dropping
// comment lines and the trailing semicolons.
func Statements(bundle string) []string {
	var lines []string
	for _, line := range strings.Split(bundle, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}
	var out []string
	for _, stmt := range strings.Split(strings.Join(lines, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
