package model

import "testing"

func TestRoleAtLeast(t *testing.T) {
	tests := []struct {
		name string
		have Role
		need Role
		want bool
	}{
		{"admin satisfies view", RoleAdmin, RoleView, true},
		{"admin satisfies edit", RoleAdmin, RoleEdit, true},
		{"admin satisfies admin", RoleAdmin, RoleAdmin, true},
		{"edit satisfies view", RoleEdit, RoleView, true},
		{"edit does not satisfy admin", RoleEdit, RoleAdmin, false},
		{"view does not satisfy edit", RoleView, RoleEdit, false},
		{"none does not satisfy view", RoleNone, RoleView, false},
		{"none satisfies none", RoleNone, RoleNone, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.have.AtLeast(tt.need); got != tt.want {
				t.Errorf("%s.AtLeast(%s) = %v, want %v", tt.have, tt.need, got, tt.want)
			}
		})
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleView, RoleEdit, RoleAdmin} {
		if !r.Valid() {
			t.Errorf("%s should be valid", r)
		}
	}
	for _, r := range []Role{RoleNone, Role(4), Role(-1)} {
		if r.Valid() {
			t.Errorf("%d should not be valid", r)
		}
	}
}

func TestMaxRole(t *testing.T) {
	if got := MaxRole(RoleView, RoleEdit); got != RoleEdit {
		t.Errorf("MaxRole(view, edit) = %s, want edit", got)
	}
	if got := MaxRole(RoleAdmin, RoleNone); got != RoleAdmin {
		t.Errorf("MaxRole(admin, none) = %s, want admin", got)
	}
	if got := MaxRole(RoleNone, RoleNone); got != RoleNone {
		t.Errorf("MaxRole(none, none) = %s, want none", got)
	}
}

func TestParseRole(t *testing.T) {
	for name, want := range map[string]Role{"view": RoleView, "edit": RoleEdit, "admin": RoleAdmin} {
		got, err := ParseRole(name)
		if err != nil {
			t.Fatalf("ParseRole(%q): %v", name, err)
		}
		if got != want {
			t.Errorf("ParseRole(%q) = %s, want %s", name, got, want)
		}
	}
	if _, err := ParseRole("root"); err == nil {
		t.Error("ParseRole(\"root\") should fail")
	}
}
