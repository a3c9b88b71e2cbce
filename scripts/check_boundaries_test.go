package main

import "testing"

const testModule = "nftmarket/contexts/trading/nft-marketplace"

func TestDomainAllowsValueLibrariesOnly(t *testing.T) {
	if got := validateDomainImport("f.go", 1, "github.com/holiman/uint256", testModule); len(got) != 0 {
		t.Fatalf("expected uint256 to be allowed, got %+v", got)
	}
	if got := validateDomainImport("f.go", 1, "gorm.io/gorm", testModule); len(got) != 1 {
		t.Fatalf("expected gorm to be rejected in domain, got %+v", got)
	}
	if got := validateDomainImport("f.go", 1, testModule+"/adapters/memory", testModule); len(got) == 0 {
		t.Fatal("expected adapter import to be rejected in domain")
	}
}

func TestApplicationRejectsInfrastructure(t *testing.T) {
	if got := validateApplicationImport("f.go", 1, "nftmarket/internal/platform/db", testModule); len(got) == 0 {
		t.Fatal("expected platform import to be rejected in application")
	}
	if got := validateApplicationImport("f.go", 1, testModule+"/ports", testModule); len(got) != 0 {
		t.Fatalf("expected ports import to be allowed, got %+v", got)
	}
	if got := validateApplicationImport("f.go", 1, "nftmarket/contracts/gen/events/v1", testModule); len(got) != 0 {
		t.Fatalf("expected contracts import to be allowed, got %+v", got)
	}
}

func TestStdlibDetection(t *testing.T) {
	for path, want := range map[string]bool{
		"context":                   true,
		"encoding/json":             true,
		"nftmarket/internal/config": false,
		"github.com/google/uuid":    false,
	} {
		if got := isStdlib(path); got != want {
			t.Fatalf("isStdlib(%q) = %v, want %v", path, got, want)
		}
	}
}
