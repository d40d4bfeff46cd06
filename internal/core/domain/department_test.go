package domain

import "testing"

func TestLookupDepartment(t *testing.T) {
	d, ok := LookupDepartment(" IT ")
	if !ok {
		t.Fatal("expected it department")
	}
	if !d.HasCategory("trabajo_remoto") {
		t.Error("expected it to include trabajo_remoto")
	}
	if d.HasCategory("vacaciones") {
		t.Error("expected it to exclude vacaciones")
	}

	if _, ok := LookupDepartment("astronomy"); ok {
		t.Error("expected unknown department")
	}
}

func TestDepartment_MatchesText(t *testing.T) {
	d, _ := LookupDepartment("legal")
	if !d.MatchesText("revisión del contrato anual") {
		t.Error("expected keyword match on contrato")
	}
	if d.MatchesText("días de vacaciones") {
		t.Error("expected no keyword match")
	}
}

func TestIsGeneralDepartment(t *testing.T) {
	for _, name := range []string{"", "general", " General "} {
		if !IsGeneralDepartment(name) {
			t.Errorf("expected %q to be general", name)
		}
	}
	if IsGeneralDepartment("rrhh") {
		t.Error("expected rrhh not to be general")
	}
}

func TestDepartmentNames(t *testing.T) {
	names := DepartmentNames()
	if len(names) != 8 {
		t.Fatalf("expected 8 departments, got %d", len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("expected sorted names, got %v", names)
		}
	}
}
