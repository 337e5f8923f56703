package coordinator

import "testing"

func TestDemandScoreFormula(t *testing.T) {
	d := ShardDemand{Pending: 3, Available: 1, Loading: 2}
	want := 10*3 - 5*1 - 2*2
	if got := d.Score(); got != want {
		t.Fatalf("score = %d, want %d", got, want)
	}
}

func TestDemandTrackerRecordAndRelease(t *testing.T) {
	tr := NewDemandTracker()
	tr.RecordPending([]int{0, 1})
	tr.RecordPending([]int{0})

	if got := tr.Score(0); got != 20 {
		t.Fatalf("shard 0 score = %d, want 20", got)
	}
	if got := tr.Score(1); got != 10 {
		t.Fatalf("shard 1 score = %d, want 10", got)
	}

	tr.Release(0)
	if got := tr.Score(0); got != 10 {
		t.Fatalf("after release shard 0 score = %d, want 10", got)
	}
}

func TestDemandTrackerObserveSetsAvailableAndLoading(t *testing.T) {
	tr := NewDemandTracker()
	tr.RecordPending([]int{2})
	tr.Observe(2, 3, 1)

	snap := tr.Snapshot()
	d := snap[2]
	if d.Pending != 1 || d.Available != 3 || d.Loading != 1 {
		t.Fatalf("unexpected snapshot: %+v", d)
	}
}

func TestDemandTrackerReleaseNeverGoesNegative(t *testing.T) {
	tr := NewDemandTracker()
	tr.Release(5)
	if got := tr.Score(5); got != 0 {
		t.Fatalf("score = %d, want 0", got)
	}
}
