package collector

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

const interruptsFixture = `           CPU0       CPU1
  0:         10          0   IO-APIC    2-edge      timer
  8:          1          2   IO-APIC    8-edge      rtc0
LOC:       1000       2000   Local timer interrupts
ERR:          0
`

func TestReadContextSwitches(t *testing.T) {
	root := setTestProcRoot(t)
	writeTestFile(t, filepath.Join(root, "stat"), "cpu 1 2 3 4\nintr 5 6\nctxt 123456\nbtime 1\n")

	got, err := ReadContextSwitches()
	if err != nil {
		t.Fatalf("ReadContextSwitches() error = %v", err)
	}
	if got != 123456 {
		t.Fatalf("ReadContextSwitches() = %d, want 123456", got)
	}
}

func TestReadContextSwitches_Missing(t *testing.T) {
	root := setTestProcRoot(t)
	writeTestFile(t, filepath.Join(root, "stat"), "cpu 1 2 3 4\n")

	if _, err := ReadContextSwitches(); err == nil {
		t.Fatal("ReadContextSwitches() error = nil, want missing ctxt error")
	}
}

func TestReadInterruptTotal(t *testing.T) {
	root := setTestProcRoot(t)
	writeTestFile(t, filepath.Join(root, "interrupts"), interruptsFixture)

	got, err := ReadInterruptTotal()
	if err != nil {
		t.Fatalf("ReadInterruptTotal() error = %v", err)
	}
	if got != 3013 {
		t.Fatalf("ReadInterruptTotal() = %d, want 3013", got)
	}
}

func TestClassifyWakeups(t *testing.T) {
	tests := []struct {
		name string
		rate *float64
		want WakeupLevel
	}{
		{name: "unavailable", rate: nil, want: WakeupUnknown},
		{name: "idle", rate: ptr(200.0), want: WakeupLow},
		{name: "boundary low", rate: ptr(1000.0), want: WakeupLow},
		{name: "moderate", rate: ptr(3000.0), want: WakeupModerate},
		{name: "boundary moderate", rate: ptr(5000.0), want: WakeupModerate},
		{name: "high", rate: ptr(9000.0), want: WakeupHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyWakeups(tt.rate); got != tt.want {
				t.Fatalf("ClassifyWakeups() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSampleWakeups(t *testing.T) {
	root := setTestProcRoot(t)
	writeTestFile(t, filepath.Join(root, "stat"), "cpu 1 2 3 4\nctxt 1000\n")
	writeTestFile(t, filepath.Join(root, "interrupts"), interruptsFixture)

	oldSleep := sleep
	t.Cleanup(func() { sleep = oldSleep })
	sleep = func(_ context.Context, d time.Duration) error {
		if d != 2*time.Second {
			t.Fatalf("sleep(%v), want 2s", d)
		}
		writeTestFile(t, filepath.Join(root, "stat"), "cpu 1 2 3 4\nctxt 13000\n")
		return nil
	}

	got, err := SampleWakeups(t.Context(), 2*time.Second)
	if err != nil {
		t.Fatalf("SampleWakeups() error = %v", err)
	}
	if got.ContextSwitchesPerSec == nil || *got.ContextSwitchesPerSec != 6000 {
		t.Fatalf("ContextSwitchesPerSec = %v, want 6000", got.ContextSwitchesPerSec)
	}
	// interrupts did not advance
	if got.InterruptsPerSec != nil {
		t.Fatalf("InterruptsPerSec = %v, want nil", *got.InterruptsPerSec)
	}
	if got.Level != WakeupHigh {
		t.Fatalf("Level = %q, want %q", got.Level, WakeupHigh)
	}
}

func TestSampleWakeups_Unavailable(t *testing.T) {
	_ = setTestProcRoot(t)

	oldSleep := sleep
	t.Cleanup(func() { sleep = oldSleep })
	sleep = func(context.Context, time.Duration) error { return nil }

	got, err := SampleWakeups(t.Context(), time.Second)
	if err != nil {
		t.Fatalf("SampleWakeups() error = %v", err)
	}
	if got.ContextSwitchesPerSec != nil || got.InterruptsPerSec != nil || got.Level != WakeupUnknown {
		t.Fatalf("SampleWakeups() = %+v, want unknown with no rates", got)
	}
}

func TestSampleWakeups_Cancelled(t *testing.T) {
	root := setTestProcRoot(t)
	writeTestFile(t, filepath.Join(root, "stat"), "cpu 1 2 3 4\nctxt 1000\n")

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	start := time.Now()
	got, err := SampleWakeups(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("SampleWakeups() error = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("SampleWakeups() took %v, want an early return", elapsed)
	}
	if got.ContextSwitchesPerSec != nil || got.Level != WakeupUnknown {
		t.Fatalf("SampleWakeups() = %+v, want no rates", got)
	}
}
