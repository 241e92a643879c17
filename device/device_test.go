package device_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/sdlab/labdev/device"
)

type fakePort struct {
	open bool
	name string
}

func (f fakePort) IsOpen() bool { return f.open }
func (f fakePort) Port() string { return f.name }

func TestCheckStopsAtFirstFailure(t *testing.T) {
	calls := 0
	counting := func(pass bool, kind device.Kind) device.Guard {
		return func() (device.Result, bool) {
			calls++
			if pass {
				return device.Result{}, true
			}
			return device.Failure(kind, "nope"), false
		}
	}
	res, ok := device.Check(
		counting(true, device.OK),
		counting(false, device.NotInitialized),
		counting(false, device.InvalidAxis),
	)
	if ok {
		t.Fatal("expected check to fail")
	}
	if res.Kind != device.NotInitialized {
		t.Errorf("expected %s got %s", device.NotInitialized, res.Kind)
	}
	if calls != 2 {
		t.Errorf("expected 2 guards evaluated, got %d", calls)
	}
}

func TestCheckAllPass(t *testing.T) {
	_, ok := device.Check(
		device.SerialOpen(fakePort{open: true, name: "COM1"}),
		device.Initialized(func() bool { return true }),
		device.Axis(2, func(a int) bool { return a == 2 }),
	)
	if !ok {
		t.Error("expected all guards to pass")
	}
}

func TestGuards(t *testing.T) {
	var nilPort device.Porter
	tests := []struct {
		name  string
		guard device.Guard
		kind  device.Kind
		msg   string
	}{
		{"closed port", device.SerialOpen(fakePort{name: "/dev/ttyUSB0"}), device.NotConnected, "Serial port /dev/ttyUSB0 is not open."},
		{"nil port", device.SerialOpen(nilPort), device.NotConnected, "no serial port is attached"},
		{"not initialized", device.Initialized(func() bool { return false }), device.NotInitialized, "device is not initialized"},
		{"bad axis", device.Axis(4, func(a int) bool { return a < 4 }), device.InvalidAxis, "axis 4 is not valid or not part of the configured axis list"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := tt.guard()
			if ok {
				t.Fatal("expected guard to fail")
			}
			if res.OK {
				t.Error("failed guard returned an OK result")
			}
			if res.Kind != tt.kind {
				t.Errorf("expected %s got %s", tt.kind, res.Kind)
			}
			if res.Message != tt.msg {
				t.Errorf("expected %q got %q", tt.msg, res.Message)
			}
		})
	}
}

func TestResultErrMatchesSentinel(t *testing.T) {
	err := device.Failure(device.InvalidSpeed, "speed 500 exceeds 100").Err()
	if !errors.Is(err, device.ErrInvalidSpeed) {
		t.Errorf("expected errors.Is to match ErrInvalidSpeed, err=%v", err)
	}
	if errors.Is(err, device.ErrInvalidAxis) {
		t.Error("InvalidSpeed error matched ErrInvalidAxis")
	}
	if device.Success("fine").Err() != nil {
		t.Error("successful result produced an error")
	}
}

func TestResultString(t *testing.T) {
	if s := device.Failure(device.ResponseTimeout, "no reply").String(); s != "ResponseTimeout: no reply" {
		t.Errorf("unexpected string %q", s)
	}
	if s := device.Measured(3.5, "pos").String(); s != "pos" {
		t.Errorf("unexpected string %q", s)
	}
	if s := device.Kind(99).String(); s != "Kind(99)" {
		t.Errorf("unexpected string %q", s)
	}
}

func TestManualClock(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	c := device.NewManualClock(start)
	c.Sleep(100 * time.Millisecond)
	c.Sleep(time.Second)
	if got := c.Now().Sub(start); got != 1100*time.Millisecond {
		t.Errorf("expected clock to advance 1.1s, got %v", got)
	}
	want := []time.Duration{100 * time.Millisecond, time.Second}
	if diff := cmp.Diff(want, c.Sleeps()); diff != "" {
		t.Errorf("sleeps mismatch (-want +got):\n%s", diff)
	}
}
