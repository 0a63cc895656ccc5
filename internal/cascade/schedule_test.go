package cascade

import "testing"

func TestOriginalScheduleBlockSizeIteration1(t *testing.T) {
	sched := NewOriginalSchedule(DefaultScheduleConfig())
	cases := []struct {
		ber  float64
		n    uint32
		want uint32
	}{
		{0.01, 10000, 73},
		{0.0, 10000, 73000},
		{0.1, 10000, 8},
	}
	for _, c := range cases {
		if got := sched.BlockSize(1, c.ber, c.n); got != c.want {
			t.Errorf("BlockSize(1, %v, %d) = %d, want %d", c.ber, c.n, got, c.want)
		}
	}
}

func TestOriginalScheduleBlockSizeDoublesEachIteration(t *testing.T) {
	sched := NewOriginalSchedule(DefaultScheduleConfig())
	first := sched.BlockSize(1, 0.01, 10000)
	for k := uint32(2); k <= 4; k++ {
		got := sched.BlockSize(k, 0.01, 10000)
		want := first << (k - 1)
		if got != want {
			t.Errorf("BlockSize(%d, 0.01, 10000) = %d, want %d", k, got, want)
		}
	}
}

func TestOriginalScheduleNrCascadeIterations(t *testing.T) {
	sched := NewOriginalSchedule(DefaultScheduleConfig())
	if got := sched.NrCascadeIterations(); got != 4 {
		t.Fatalf("NrCascadeIterations() = %d, want 4 (the paper's default)", got)
	}
}
