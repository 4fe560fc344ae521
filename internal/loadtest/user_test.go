package loadtest

import (
	"context"
	"testing"
	"time"
)

func noop(ctx context.Context) {}

func TestTaskPicker_Weights(t *testing.T) {
	tasks := []Task{
		{Name: "send", Weight: 10, Fn: noop},
		{Name: "history", Weight: 3, Fn: noop},
		{Name: "disabled", Weight: 0, Fn: noop},
		{Name: "stats", Weight: 1, Fn: noop},
		{Name: "sessions", Weight: 1, Fn: noop},
		{Name: "nil", Weight: 5},
	}

	var n int
	picker := newTaskPicker(tasks, func(total int) int {
		if total != 15 {
			t.Fatalf("total weight = %d, want 15", total)
		}
		return n
	})

	counts := map[string]int{}
	for n = 0; n < 15; n++ {
		counts[picker.pick().Name]++
	}

	want := map[string]int{"send": 10, "history": 3, "stats": 1, "sessions": 1}
	for name, c := range want {
		if counts[name] != c {
			t.Errorf("%s picked %d times, want %d", name, counts[name], c)
		}
	}
	if counts["disabled"] != 0 || counts["nil"] != 0 {
		t.Error("zero-weight and nil tasks must never be picked")
	}
}

func TestTaskPicker_Empty(t *testing.T) {
	picker := newTaskPicker([]Task{{Name: "off", Weight: 0, Fn: noop}}, nil)
	if !picker.empty() {
		t.Error("picker with only zero weights should be empty")
	}
}

func TestTaskPicker_RandomDistribution(t *testing.T) {
	picker := newTaskPicker([]Task{
		{Name: "a", Weight: 3, Fn: noop},
		{Name: "b", Weight: 1, Fn: noop},
	}, nil)

	counts := map[string]int{}
	for i := 0; i < 20000; i++ {
		counts[picker.pick().Name]++
	}
	ratio := float64(counts["a"]) / 20000
	if ratio < 0.70 || ratio > 0.80 {
		t.Errorf("task a picked %.3f of the time, want about 0.75", ratio)
	}
}

func TestBetween(t *testing.T) {
	wait := Between(500*time.Millisecond, 2*time.Second)
	for i := 0; i < 1000; i++ {
		d := wait()
		if d < 500*time.Millisecond || d > 2*time.Second {
			t.Fatalf("wait %v outside [500ms, 2s]", d)
		}
	}

	swapped := Between(2*time.Second, time.Second)
	if d := swapped(); d < time.Second || d > 2*time.Second {
		t.Errorf("swapped bounds produced %v", d)
	}
	if d := Between(time.Second, time.Second)(); d != time.Second {
		t.Errorf("equal bounds produced %v", d)
	}
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if Sleep(ctx, time.Minute) {
		t.Error("Sleep should report cancellation")
	}
	if time.Since(start) > time.Second {
		t.Error("Sleep should return as soon as the context ends")
	}
	if Sleep(ctx, 0) {
		t.Error("zero sleep on a cancelled context should report cancellation")
	}
	if !Sleep(context.Background(), time.Millisecond) {
		t.Error("Sleep should complete on a live context")
	}
}
