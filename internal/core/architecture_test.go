package core

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestOnlyStorageFactoryImportsPersistenceBackends ensures the engines and
// adapters depend on the domain store contracts, never on a concrete backend.
// Only the storage factory in this package may wire the implementations.
func TestOnlyStorageFactoryImportsPersistenceBackends(t *testing.T) {
	backendPrefix := "movercore/internal/infra/persistence"
	allowed := map[string]bool{
		"movercore/internal/core": true,
	}

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports}
	pkgs, err := packages.Load(cfg, "movercore/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	seen := make(map[string]struct{})
	for _, pkg := range pkgs {
		if allowed[pkg.PkgPath] || strings.HasPrefix(pkg.PkgPath, backendPrefix) {
			continue
		}
		for importPath := range pkg.Imports {
			if importPath == backendPrefix || strings.HasPrefix(importPath, backendPrefix+"/") {
				seen[pkg.PkgPath+": "+importPath] = struct{}{}
			}
		}
	}

	if len(seen) > 0 {
		violations := make([]string, 0, len(seen))
		for v := range seen {
			violations = append(violations, v)
		}
		sort.Strings(violations)
		for _, v := range violations {
			t.Errorf("forbidden import of persistence backend: %s", v)
		}
		t.Fatalf("found %d forbidden imports of persistence backends", len(violations))
	}
}
