package assign

import (
	"errors"
	"reflect"
	"testing"
)

func newStore(t *testing.T, head string, pages int) *Store {
	t.Helper()
	s, err := NewStore(head, pages, DefaultMaterials)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestFullIdentifier(t *testing.T) {
	tests := []struct {
		head, suffix, want string
	}{
		{"J1001", "1", "J1001-1"},
		{"J1001", "", "J1001"},
		{"", "7", "7"},
		{"", "", ""},
	}
	for _, tt := range tests {
		if got := FullIdentifier(tt.head, tt.suffix); got != tt.want {
			t.Errorf("FullIdentifier(%q, %q) = %q, want %q", tt.head, tt.suffix, got, tt.want)
		}
	}
}

func TestValidateSkipsUnassignedPages(t *testing.T) {
	s := newStore(t, "J1001", 3)
	must(t, s.SetAssignment(1, "1", "SKS3"))
	must(t, s.SetAssignment(2, "2", ""))
	must(t, s.SetAssignment(3, "", ""))

	plan, err := s.ValidateAll()
	if err != nil {
		t.Fatalf("ValidateAll: %v", err)
	}
	if got, want := plan.Identifiers(), []string{"J1001-1", "J1001-2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("identifiers = %v, want %v", got, want)
	}
	if plan.Pages[0].Material != "SKS3" || plan.Pages[1].Material != "" {
		t.Errorf("materials = %q, %q", plan.Pages[0].Material, plan.Pages[1].Material)
	}
	if s.Phase() != Validating {
		t.Errorf("phase = %s, want validating", s.Phase())
	}
}

func TestValidateReportsEveryConflict(t *testing.T) {
	s := newStore(t, "J1001", 6)
	must(t, s.SetAssignment(1, "1", ""))
	must(t, s.SetAssignment(2, "1", ""))
	must(t, s.SetAssignment(3, "2", ""))
	must(t, s.SetAssignment(4, "3", ""))
	must(t, s.SetAssignment(5, "2", ""))
	must(t, s.SetAssignment(6, "2", "AL"))

	_, err := s.ValidateAll()
	var dup *DuplicateIdentifierError
	if !errors.As(err, &dup) {
		t.Fatalf("ValidateAll: got %v, want DuplicateIdentifierError", err)
	}
	if want := []string{"J1001-1", "J1001-2"}; !reflect.DeepEqual(dup.Identifiers, want) {
		t.Errorf("conflicts = %v, want %v", dup.Identifiers, want)
	}
	if want := []int{3, 5, 6}; !reflect.DeepEqual(dup.Pages["J1001-2"], want) {
		t.Errorf("pages for J1001-2 = %v, want %v", dup.Pages["J1001-2"], want)
	}
	if s.Phase() != Assigning {
		t.Errorf("phase after conflict = %s, want assigning", s.Phase())
	}
	// Conflicts block compositing.
	if err := s.BeginCompositing(&Plan{}); err == nil {
		t.Error("BeginCompositing should fail after a conflict")
	}

	must(t, s.SetSuffix(2, "4"))
	must(t, s.SetSuffix(5, "5"))
	must(t, s.SetSuffix(6, "6"))
	if _, err := s.ValidateAll(); err != nil {
		t.Errorf("ValidateAll after fixing: %v", err)
	}
}

func TestValidateRejectsUnusableFileNames(t *testing.T) {
	s := newStore(t, "J1001", 5)
	must(t, s.SetAssignment(1, "A/1", ""))
	must(t, s.SetAssignment(2, "2", ""))
	must(t, s.SetAssignment(3, `B\3`, ""))
	must(t, s.SetAssignment(4, "4\x01", "AL"))
	must(t, s.SetAssignment(5, "2", ""))

	_, err := s.ValidateAll()
	var inv *InvalidIdentifierError
	if !errors.As(err, &inv) {
		t.Fatalf("ValidateAll: got %v, want InvalidIdentifierError", err)
	}
	if want := []int{1, 3, 4}; !reflect.DeepEqual(inv.Pages, want) {
		t.Errorf("pages = %v, want %v", inv.Pages, want)
	}
	if inv.Identifiers[1] != "J1001-A/1" {
		t.Errorf("page 1 identifier = %q", inv.Identifiers[1])
	}
	// Duplicates found in the same pass are reported alongside.
	var dup *DuplicateIdentifierError
	if !errors.As(err, &dup) || !reflect.DeepEqual(dup.Identifiers, []string{"J1001-2"}) {
		t.Errorf("duplicates not reported with invalid names: %v", err)
	}
	if s.Phase() != Assigning {
		t.Errorf("phase = %s, want assigning", s.Phase())
	}

	must(t, s.SetSuffix(1, "A1"))
	must(t, s.SetSuffix(3, "B3"))
	must(t, s.SetSuffix(4, "4"))
	must(t, s.SetSuffix(5, "5"))
	if _, err := s.ValidateAll(); err != nil {
		t.Errorf("ValidateAll after fixing: %v", err)
	}

	s = newStore(t, "J/1001", 2)
	must(t, s.SetAssignment(1, "1", ""))
	must(t, s.SetAssignment(2, "2", ""))
	if _, err := s.ValidateAll(); !errors.As(err, &inv) || len(inv.Pages) != 2 {
		t.Errorf("head with a separator: got %v", err)
	}
}

func TestHeadOnlyPageQualifiesWhenAssigned(t *testing.T) {
	s := newStore(t, "S200", 1)
	must(t, s.SetAssignment(1, "", "AL"))
	plan, err := s.ValidateAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Pages) != 1 || plan.Pages[0].Identifier != "S200" || plan.Pages[0].Material != "AL" {
		t.Errorf("plan = %+v", plan.Pages)
	}
}

func TestEmptyIdentifierNeverQualifies(t *testing.T) {
	s := newStore(t, "", 2)
	must(t, s.SetAssignment(1, "", "AL"))
	must(t, s.SetAssignment(2, "", "SKS3"))
	plan, err := s.ValidateAll()
	if err != nil {
		t.Fatalf("empty identifiers must not conflict: %v", err)
	}
	if len(plan.Pages) != 0 {
		t.Errorf("plan has %d pages, want 0", len(plan.Pages))
	}
}

func TestMaterialSlots(t *testing.T) {
	s := newStore(t, "J1", 1)
	must(t, s.SetMaterialSlot(1, 0, "SKS3"))
	must(t, s.SetMaterialSlot(1, 1, "AL"))
	a, _ := s.Assignment(1)
	if got := a.Material(); got != "SKS3 + AL" {
		t.Errorf("Material = %q, want %q", got, "SKS3 + AL")
	}

	must(t, s.SetMaterialSlot(1, 0, "S45C"))
	a, _ = s.Assignment(1)
	if a.Materials[1] != "AL" || a.Material() != "S45C + AL" {
		t.Errorf("changing slot 0 disturbed slot 1: %q", a.Material())
	}

	must(t, s.SetMaterialSlot(1, 0, ""))
	a, _ = s.Assignment(1)
	if a.Material() != "AL" {
		t.Errorf("Material = %q, want AL", a.Material())
	}

	if err := s.SetMaterialSlot(1, 2, "AL"); err == nil {
		t.Error("slot 2 should be rejected")
	}
	var unknown *UnknownMaterialError
	if err := s.SetMaterialSlot(1, 0, "TITANIUM"); !errors.As(err, &unknown) {
		t.Errorf("got %v, want UnknownMaterialError", err)
	}
}

func TestSetAssignmentParsesMaterial(t *testing.T) {
	s := newStore(t, "J1", 1)
	tests := []struct {
		material string
		want     [MaterialSlots]string
		wantErr  bool
	}{
		{"", [MaterialSlots]string{}, false},
		{"SKD11", [MaterialSlots]string{"SKD11"}, false},
		{"SKS3 + AL", [MaterialSlots]string{"SKS3", "AL"}, false},
		{"SKS3+AL", [MaterialSlots]string{"SKS3", "AL"}, false},
		{"SKS3 + AL + S45C", [MaterialSlots]string{}, true},
		{"SKS3 + ", [MaterialSlots]string{}, true},
		{"BRASS", [MaterialSlots]string{}, true},
	}
	for _, tt := range tests {
		err := s.SetAssignment(1, "1", tt.material)
		if (err != nil) != tt.wantErr {
			t.Errorf("SetAssignment(%q): err = %v, wantErr %v", tt.material, err, tt.wantErr)
			continue
		}
		if err != nil {
			continue
		}
		a, _ := s.Assignment(1)
		if a.Materials != tt.want {
			t.Errorf("SetAssignment(%q): slots = %q, want %q", tt.material, a.Materials, tt.want)
		}
	}
}

func TestNilVocabularyAcceptsAnything(t *testing.T) {
	s, err := NewStore("J1", 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	must(t, s.SetAssignment(1, "1", "BRASS + COPPER"))
}

func TestPageRange(t *testing.T) {
	s := newStore(t, "J1", 2)
	if err := s.SetAssignment(0, "1", ""); err == nil {
		t.Error("page 0 should be rejected")
	}
	if _, err := s.Assignment(3); err == nil {
		t.Error("page 3 should be rejected")
	}
	if _, err := NewStore("J1", 0, nil); err == nil {
		t.Error("NewStore with no pages should fail")
	}
}

func TestStateMachine(t *testing.T) {
	s := newStore(t, "J1001", 2)
	if s.Phase() != Loaded {
		t.Fatalf("initial phase = %s", s.Phase())
	}
	must(t, s.SetAssignment(1, "1", ""))
	if s.Phase() != Assigning {
		t.Fatalf("phase after edit = %s", s.Phase())
	}

	// Compositing requires validation first.
	var te *TransitionError
	if err := s.BeginCompositing(&Plan{}); !errors.As(err, &te) {
		t.Fatalf("BeginCompositing before validation: %v", err)
	}

	plan, err := s.ValidateAll()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetAssignment(2, "2", ""); !errors.Is(err, ErrLocked) {
		t.Errorf("edit while validating: got %v, want ErrLocked", err)
	}
	if err := s.BeginCompositing(&Plan{}); err == nil {
		t.Error("a foreign plan must be refused")
	}
	must(t, s.BeginCompositing(plan))

	if err := s.SetMaterialSlot(1, 0, "AL"); !errors.Is(err, ErrLocked) {
		t.Errorf("edit while compositing: got %v, want ErrLocked", err)
	}
	if _, err := s.ValidateAll(); !errors.Is(err, ErrLocked) {
		t.Errorf("validate while compositing: got %v, want ErrLocked", err)
	}

	// A failed batch returns to editing and keeps assignments.
	must(t, s.EndCompositing(errors.New("boom")))
	if s.Phase() != Assigning {
		t.Fatalf("phase after failure = %s", s.Phase())
	}
	if a, _ := s.Assignment(1); a.Suffix != "1" {
		t.Errorf("assignment lost after failure: %+v", a)
	}

	plan, err = s.ValidateAll()
	if err != nil {
		t.Fatal(err)
	}
	must(t, s.BeginCompositing(plan))
	must(t, s.EndCompositing(nil))
	if s.Phase() != Done {
		t.Fatalf("phase = %s, want done", s.Phase())
	}
	if err := s.SetHead("J2000"); !errors.Is(err, ErrLocked) {
		t.Errorf("edit when done: got %v, want ErrLocked", err)
	}
	must(t, s.Reopen())
	must(t, s.SetHead("J2000"))
	if id, _ := s.FullIdentifier(1); id != "J2000-1" {
		t.Errorf("FullIdentifier = %q", id)
	}
}

func TestPlanIsDetachedFromStore(t *testing.T) {
	s := newStore(t, "J1", 1)
	must(t, s.SetAssignment(1, "1", ""))
	must(t, s.SetPlacement(1, 40, 50))
	plan, err := s.ValidateAll()
	if err != nil {
		t.Fatal(err)
	}
	must(t, s.Reopen())
	must(t, s.SetPlacement(1, 1, 2))
	if p := plan.Pages[0].Placement; p == nil || p.X != 40 || p.Y != 50 {
		t.Errorf("plan placement changed to %+v", p)
	}
	must(t, s.ClearPlacement(1))
	if a, _ := s.Assignment(1); a.Placement != nil {
		t.Error("placement not cleared")
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
