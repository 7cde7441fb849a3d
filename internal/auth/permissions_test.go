package auth

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleViewer, PermLightRead, true},
		{RoleViewer, PermLightOperate, false},
		{RoleViewer, PermLightConfigure, false},
		{RoleOperator, PermLightRead, true},
		{RoleOperator, PermLightOperate, true},
		{RoleOperator, PermLightConfigure, false},
		{RoleAdmin, PermLightRead, true},
		{RoleAdmin, PermLightOperate, true},
		{RoleAdmin, PermLightConfigure, true},
		{Role("nobody"), PermLightRead, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.perm), func(t *testing.T) {
			if got := HasPermission(tt.role, tt.perm); got != tt.want {
				t.Errorf("HasPermission(%s, %s) = %v, want %v", tt.role, tt.perm, got, tt.want)
			}
		})
	}
}

func TestPermissionsForRole_ReturnsCopy(t *testing.T) {
	perms := PermissionsForRole(RoleViewer)
	if len(perms) != 1 {
		t.Fatalf("viewer permissions = %v, want 1 entry", perms)
	}
	perms[0] = PermLightConfigure

	if HasPermission(RoleViewer, PermLightConfigure) {
		t.Error("mutating the returned slice must not change the role table")
	}
	if PermissionsForRole(Role("nobody")) != nil {
		t.Error("unknown role should have no permissions")
	}
}

func TestIsValidRole(t *testing.T) {
	for _, r := range ValidRoles {
		if !IsValidRole(r) {
			t.Errorf("IsValidRole(%s) = false", r)
		}
	}
	if IsValidRole(Role("panel")) {
		t.Error("IsValidRole(panel) = true")
	}
}
