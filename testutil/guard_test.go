package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestInternalImportForbiddenPredicate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"firecheck/internal/core", true},
		{"firecheck/pkg/domain", false},
		{"github.com/spf13/viper", false},
	}
	for _, c := range cases {
		if got := InternalImportForbidden(c.in); got != c.want {
			t.Fatalf("InternalImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestModuleImportsExcept(t *testing.T) {
	forbidden := ModuleImportsExcept("firecheck/pkg/domain")
	cases := []struct {
		in   string
		want bool
	}{
		{"firecheck/pkg/domain", false},
		{"firecheck/internal/core", true},
		{"firecheck", true},
		{"firecheckers/x", false},
		{"context", false},
		{"github.com/jackc/pgx/v5", false},
	}
	for _, c := range cases {
		if got := forbidden(c.in); got != c.want {
			t.Fatalf("forbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func writePkg(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return dir
}

func TestAssertNoDirectImports(t *testing.T) {
	dir := writePkg(t, map[string]string{
		"x.go":      "package tmp\nimport \"fmt\"\nfunc X(){fmt.Println(1)}",
		"x_test.go": "package tmp\nimport _ \"firecheck/internal/core\"",
	})
	AssertNoDirectImports(t, dir, InternalImportForbidden, "tests are exempt")
}

type recorder struct{ msg string }

func (r *recorder) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestDirectImportViolations(t *testing.T) {
	dir := writePkg(t, map[string]string{
		"x.go": "package tmp\nimport (\n\t\"fmt\"\n\t_ \"firecheck/internal/core\"\n)\nfunc X(){fmt.Println(1)}",
	})
	viols, err := directImportViolations(dir, InternalImportForbidden)
	if err != nil {
		t.Fatalf("violations: %v", err)
	}
	if len(viols) != 1 || viols[0] != "firecheck/internal/core (in x.go)" {
		t.Fatalf("unexpected violations %v", viols)
	}

	var r recorder
	failIfDirectViolations(&r, "domain stays pure", viols)
	if r.msg == "" {
		t.Fatalf("expected failure message")
	}
	r = recorder{}
	failIfDirectViolations(&r, "none", nil)
	if r.msg != "" {
		t.Fatalf("unexpected failure %q", r.msg)
	}

	if _, err := directImportViolations(filepath.Join(dir, "missing"), InternalImportForbidden); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}
