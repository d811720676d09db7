package domain

import "testing"

func TestRoleOrdering(t *testing.T) {
	order := []Role{RoleAnalyst, RoleManager, RoleFLUAML, RoleGFC}
	for i, junior := range order {
		for j, senior := range order {
			want := j > i
			if got := senior.SeniorTo(junior); got != want {
				t.Fatalf("SeniorTo(%s, %s) = %v, want %v", senior, junior, got, want)
			}
			wantAtLeast := j >= i
			if got := senior.AtLeast(junior); got != wantAtLeast {
				t.Fatalf("AtLeast(%s, %s) = %v, want %v", senior, junior, got, wantAtLeast)
			}
		}
	}
}

func TestRoleValid(t *testing.T) {
	for _, role := range []Role{RoleAnalyst, RoleManager, RoleFLUAML, RoleGFC} {
		if !role.Valid() {
			t.Fatalf("expected %s to be valid", role)
		}
	}
	if Role("INTERN").Valid() {
		t.Fatal("expected unknown role to be invalid")
	}
}

func TestLevelRoleRoundTrip(t *testing.T) {
	for _, role := range []Role{RoleManager, RoleFLUAML, RoleGFC} {
		level := LevelForRole(role)
		if level == LevelNone {
			t.Fatalf("expected senior level for %s", role)
		}
		if got := RoleForLevel(level); got != role {
			t.Fatalf("RoleForLevel(LevelForRole(%s)) = %s", role, got)
		}
	}
	if LevelForRole(RoleAnalyst) != LevelNone {
		t.Fatal("analyst should map to no escalation level")
	}
	if RoleForLevel(LevelNone) != RoleAnalyst {
		t.Fatal("NONE level should map back to analyst")
	}
}

func TestCaseHeldByAndTerminal(t *testing.T) {
	user := "u-1"
	c := &Case{Status: CaseStatusAssigned, Assignee: &user}
	if !c.HeldBy("u-1") {
		t.Fatal("expected case to be held by u-1")
	}
	if c.HeldBy("u-2") {
		t.Fatal("case should not be held by u-2")
	}
	if c.Terminal() {
		t.Fatal("assigned case should not be terminal")
	}
	c.Status = CaseStatusDispositioned
	if !c.Terminal() {
		t.Fatal("dispositioned case should be terminal")
	}
}
