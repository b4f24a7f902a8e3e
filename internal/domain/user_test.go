package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParseRole(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want Role
		ok   bool
	}{
		{"ADMIN", RoleAdmin, true},
		{"DEALER_MANAGER", RoleDealerManager, true},
		{"DEALER_STAFF", RoleDealerStaff, true},
		{"EVM_STAFF", RoleEVMStaff, true},
		{"admin", "", false},
		{"SUPERUSER", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		role, ok := ParseRole(tc.raw)
		if ok != tc.ok || role != tc.want {
			t.Fatalf("ParseRole(%q) = (%q, %v), want (%q, %v)", tc.raw, role, ok, tc.want, tc.ok)
		}
	}
}

func TestRoleAffiliationRequirements(t *testing.T) {
	t.Parallel()

	if RoleAdmin.RequiresDealer() || RoleAdmin.RequiresManufacturer() {
		t.Fatalf("admin must not require an affiliation")
	}
	if !RoleDealerManager.RequiresDealer() || !RoleDealerStaff.RequiresDealer() {
		t.Fatalf("dealer roles must require a dealer")
	}
	if !RoleEVMStaff.RequiresManufacturer() || RoleEVMStaff.RequiresDealer() {
		t.Fatalf("manufacturer staff must require a manufacturer only")
	}
}

func TestSessionUsable(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	live := Session{SessionID: uuid.New(), ExpiresAt: now.Add(time.Hour)}
	if !live.Usable(now) {
		t.Fatalf("live session must be usable")
	}

	expired := live
	expired.ExpiresAt = now.Add(-time.Minute)
	if expired.Usable(now) {
		t.Fatalf("expired session must not be usable")
	}

	revokedAt := now.Add(-time.Minute)
	revoked := live
	revoked.RevokedAt = &revokedAt
	if revoked.Usable(now) {
		t.Fatalf("revoked session must not be usable")
	}
}
