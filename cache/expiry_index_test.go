package cache

import "testing"

func TestExpiryIndexDueByOrdersByDeadline(t *testing.T) {
	idx := newExpiryIndex()
	r1 := &Record{exptime: 100, created: 0}
	r2 := &Record{exptime: 50, created: 0}
	idx.set("late", 0, false, r1)
	idx.set("early", 0, false, r2)

	due := idx.dueBy(1000)
	if len(due) != 2 || due[0] != "early" || due[1] != "late" {
		t.Fatalf("expected [early late], got %v", due)
	}
}

func TestExpiryIndexNeverExpiresNotIndexed(t *testing.T) {
	idx := newExpiryIndex()
	r := &Record{exptime: 0, created: 0}
	idx.set("forever", 0, false, r)
	if due := idx.dueBy(1 << 40); len(due) != 0 {
		t.Fatalf("expected no indexed entry for exptime=0, got %v", due)
	}
}

func TestExpiryIndexReindexesOnUpdate(t *testing.T) {
	idx := newExpiryIndex()
	r := &Record{exptime: 10, created: 0}
	idx.set("k", 0, false, r)

	oldDeadline, _ := r.Deadline()
	r.exptime = 1000
	idx.set("k", oldDeadline, true, r)

	if due := idx.dueBy(10); len(due) != 0 {
		t.Fatalf("expected reindexed deadline to push key out of dueBy(10), got %v", due)
	}
	newDeadline, _ := r.Deadline()
	if due := idx.dueBy(newDeadline); len(due) != 1 || due[0] != "k" {
		t.Fatalf("expected key due at its new deadline, got %v", due)
	}
}
