package sim

import "testing"

func TestScheduler_ReselectsOnInterval(t *testing.T) {
	s := NewTargetScheduler(10, 1)

	if _, changed := s.Tick(9.9, 100); changed {
		t.Fatal("reselected before the interval elapsed")
	}

	target, changed := s.Tick(0.2, 100)
	if !changed {
		t.Fatal("no reselection after the interval elapsed")
	}
	if target >= 100 {
		t.Fatalf("target %d out of range", target)
	}

	// The accumulator resets after a selection.
	if _, changed := s.Tick(5, 100); changed {
		t.Error("reselected again without a full interval")
	}
}

func TestScheduler_OrphanedTargetReselectsImmediately(t *testing.T) {
	s := NewTargetScheduler(10, 1)

	// Drive until the scheduler picks a high index.
	var target uint32
	for i := 0; i < 100; i++ {
		target, _ = s.Tick(10, 1000)
		if target >= 100 {
			break
		}
	}
	if target < 100 {
		t.Skip("rng never picked a high index")
	}

	// Capacity shrinks below the target: reselection must not wait.
	newTarget, changed := s.Tick(0.001, 100)
	if !changed {
		t.Fatal("orphaned target was not reselected")
	}
	if newTarget >= 100 {
		t.Fatalf("new target %d still out of range", newTarget)
	}
}

func TestScheduler_TargetAlwaysBelowActiveCount(t *testing.T) {
	s := NewTargetScheduler(1, 7)
	for i := 0; i < 500; i++ {
		target, _ := s.Tick(1.0, 37)
		if target >= 37 {
			t.Fatalf("tick %d: target %d >= active count 37", i, target)
		}
	}
}

func TestScheduler_ZeroActiveCountDoesNotPanic(t *testing.T) {
	s := NewTargetScheduler(1, 1)
	target, _ := s.Tick(2, 0)
	if target != 0 {
		t.Fatalf("expected target 0 with no agents, got %d", target)
	}
}
