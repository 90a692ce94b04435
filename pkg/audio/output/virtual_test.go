// ABOUTME: Tests for the virtual output
// ABOUTME: Verifies manual clock control, suspension and capture
package output

import (
	"errors"
	"testing"
	"time"

	"github.com/harperreed/narrator-go/pkg/audio"
)

var testFormat = audio.Format{Codec: "pcm", SampleRate: 1000, Channels: 1, BitDepth: 16}

func TestVirtualManualClock(t *testing.T) {
	v := NewVirtual(VirtualOptions{Capture: true})
	if err := v.Open(testFormat); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer v.Close()

	if v.Now() != 0 {
		t.Errorf("expected clock at 0, got %v", v.Now())
	}

	if err := v.Schedule(monoBuffer(0, 1000, 0.5, 0.5)); err != nil {
		t.Fatalf("schedule failed: %v", err)
	}

	v.Advance(100 * time.Millisecond)
	if got := v.Now(); got != 0.1 {
		t.Errorf("expected clock 0.1, got %v", got)
	}

	captured := v.Captured()
	if len(captured) != 100 {
		t.Fatalf("expected 100 captured frames, got %d", len(captured))
	}
	if captured[0] != 0.5 || captured[1] != 0.5 || captured[2] != 0 {
		t.Errorf("unexpected captured audio %v", captured[:3])
	}
	if len(v.Scheduled()) != 1 {
		t.Errorf("expected 1 scheduled buffer, got %d", len(v.Scheduled()))
	}
}

func TestVirtualSuspendFreezesClock(t *testing.T) {
	v := NewVirtual(VirtualOptions{})
	if err := v.Open(testFormat); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer v.Close()

	v.AdvanceFrames(250)
	if err := v.Suspend(); err != nil {
		t.Fatalf("suspend failed: %v", err)
	}
	if !v.Suspended() {
		t.Error("expected suspended")
	}

	v.AdvanceFrames(500)
	if got := v.Now(); got != 0.25 {
		t.Errorf("expected frozen clock 0.25, got %v", got)
	}

	if err := v.Resume(); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	v.AdvanceFrames(250)
	if got := v.Now(); got != 0.5 {
		t.Errorf("expected clock 0.5, got %v", got)
	}
}

func TestVirtualFractionalAdvance(t *testing.T) {
	v := NewVirtual(VirtualOptions{})
	if err := v.Open(audio.Format{Codec: "pcm", SampleRate: 3, Channels: 1, BitDepth: 16}); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer v.Close()

	// 0.5s at 3Hz is 1.5 frames; two advances owe exactly three
	v.Advance(500 * time.Millisecond)
	v.Advance(500 * time.Millisecond)
	if got := v.Now(); got != 1.0 {
		t.Errorf("expected clock 1.0, got %v", got)
	}
}

func TestVirtualErrors(t *testing.T) {
	v := NewVirtual(VirtualOptions{})

	if err := v.Schedule(monoBuffer(0, 1000, 1)); !errors.Is(err, ErrNotOpen) {
		t.Errorf("expected ErrNotOpen, got %v", err)
	}
	if err := v.Open(audio.Format{SampleRate: 0, Channels: 1}); err == nil {
		t.Error("expected error for zero sample rate")
	}
	if err := v.Open(testFormat); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := v.Open(testFormat); err == nil {
		t.Error("expected error opening twice")
	}

	if err := v.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := v.Close(); err != nil {
		t.Errorf("second close returned %v", err)
	}
	if err := v.Schedule(monoBuffer(0, 1000, 1)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if !v.Closed() {
		t.Error("expected closed")
	}
}

func TestVirtualRealtimeAdvances(t *testing.T) {
	v := NewVirtual(VirtualOptions{Realtime: true})
	if err := v.Open(audio.Format{Codec: "pcm", SampleRate: 8000, Channels: 1, BitDepth: 16}); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer v.Close()

	deadline := time.Now().Add(2 * time.Second)
	for v.Now() < 0.02 {
		if time.Now().After(deadline) {
			t.Fatal("realtime clock did not advance")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
