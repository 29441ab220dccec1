package core

import "testing"

func TestTrackerActivateOrder(t *testing.T) {
	tr := NewTrackedResources[int]()
	tr.Activate(3)
	tr.Activate(1)
	tr.Activate(2)
	tr.Activate(1) // duplicate, no reorder

	got := tr.Active()
	want := []int{3, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("active count = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("active[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if !tr.ChangedThisFrame() {
		t.Error("expected changed flag after activation")
	}
}

func TestTrackerDeactivatePreservesOrder(t *testing.T) {
	tr := NewTrackedResources[string]()
	tr.Activate("a")
	tr.Activate("b")
	tr.Activate("c")
	tr.Reset()

	tr.Deactivate("b")
	got := tr.Active()
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("active = %v, want [a c]", got)
	}
	if !tr.ChangedThisFrame() {
		t.Error("expected changed flag after deactivation")
	}
}

func TestTrackerModifiedOnlyWhenActive(t *testing.T) {
	tr := NewTrackedResources[int]()
	tr.Activate(1)
	tr.Activate(2)
	tr.Reset()

	tr.SetModified(2)
	tr.SetModified(99) // not active, ignored

	mod := tr.Modified()
	if len(mod) != 1 || mod[0] != 2 {
		t.Fatalf("modified = %v, want [2]", mod)
	}
	if !tr.ChangedThisFrame() {
		t.Error("expected changed flag after modification")
	}
}

func TestTrackerResetClearsSignals(t *testing.T) {
	tr := NewTrackedResources[int]()
	tr.Activate(1)
	tr.SetModified(1)
	tr.Reset()

	if tr.ChangedThisFrame() {
		t.Error("changed flag survived reset")
	}
	if len(tr.Modified()) != 0 {
		t.Error("modified set survived reset")
	}
	if tr.Count() != 1 {
		t.Errorf("count = %d, want 1: reset must not touch the active set", tr.Count())
	}
}

func TestTrackerModifiedFollowsActiveOrder(t *testing.T) {
	tr := NewTrackedResources[int]()
	tr.Activate(10)
	tr.Activate(20)
	tr.Activate(30)
	tr.Reset()

	tr.SetModified(30)
	tr.SetModified(10)

	mod := tr.Modified()
	if len(mod) != 2 || mod[0] != 10 || mod[1] != 30 {
		t.Fatalf("modified = %v, want [10 30]", mod)
	}
}
