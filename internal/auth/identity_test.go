package auth

import "testing"

func TestRoleOrdering(t *testing.T) {
	if !RoleOwner.AtLeast(RoleManager) {
		t.Fatal("owner should satisfy manager requirement")
	}
	if RoleViewer.AtLeast(RoleContributor) {
		t.Fatal("viewer should not satisfy contributor requirement")
	}
	if !RoleManager.AtLeast(RoleManager) {
		t.Fatal("role should satisfy its own requirement")
	}
}

func TestIsValidRole(t *testing.T) {
	if !IsValidRole(RoleOwner) {
		t.Fatal("owner should be a valid role")
	}
	if IsValidRole(Role("superuser")) {
		t.Fatal("unknown role should not be valid")
	}
}
