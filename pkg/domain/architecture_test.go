package domain

import (
	"testing"

	"firecheck/testutil"
)

// TestDomainDoesNotImportInternal keeps the domain layer free of
// implementation packages so adapters and the core can both depend on it.
func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "domain must not import internal packages")
}

func TestDomainImportsNoOtherModulePackages(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.ModuleImportsExcept(), "domain is the dependency root")
}
