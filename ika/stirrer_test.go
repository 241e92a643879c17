package ika

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/google/go-cmp/cmp"

	"github.com/sdlab/labdev/command"
	"github.com/sdlab/labdev/device"
	"github.com/sdlab/labdev/generichttp"
)

func newTestStirrer(t *testing.T) (*Stirrer, *Sim, *device.ManualClock) {
	t.Helper()
	sim := NewSim()
	clock := device.NewManualClock(time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC))
	cfg := DefaultConfig()
	cfg.Clock = clock
	cfg.Logger = log.New(&bytes.Buffer{}, "", 0)
	return NewStirrer(sim, cfg), sim, clock
}

func initialized(t *testing.T) (*Stirrer, *Sim, *device.ManualClock) {
	t.Helper()
	s, sim, clock := newTestStirrer(t)
	if res := s.Initialize(); !res.OK {
		t.Fatalf("initialize failed: %s", res)
	}
	sim.ClearWrites()
	return s, sim, clock
}

func TestInitialize(t *testing.T) {
	s, sim, clock := newTestStirrer(t)
	if res := s.Initialize(); !res.OK {
		t.Fatal(res)
	}
	want := []string{"IN_NAME", "OUT_SP_4 200", "START_4", "OUT_SP_1 50", "START_1"}
	if diff := cmp.Diff(want, sim.Writes()); diff != "" {
		t.Errorf("wire traffic mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]time.Duration{10 * time.Second}, clock.Sleeps()); diff != "" {
		t.Errorf("sleeps mismatch (-want +got):\n%s", diff)
	}
	if !sim.Heating || !sim.Stirring || !s.Initialized() {
		t.Errorf("expected heating, stirring and initialized")
	}
}

func TestZeroDefaultTemperature(t *testing.T) {
	sim := NewSim()
	cfg := DefaultConfig()
	cfg.DefaultTemperature = 0
	cfg.Clock = device.NewManualClock(time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC))
	cfg.Logger = log.New(&bytes.Buffer{}, "", 0)
	s := NewStirrer(sim, cfg)
	if s.DefaultTemperature() != 0 {
		t.Fatalf("expected 0 C to be kept got %v", s.DefaultTemperature())
	}
	if res := s.Initialize(); !res.OK {
		t.Fatal(res)
	}
	if sim.TempSP != 0 {
		t.Errorf("expected a 0 C setpoint got %v", sim.TempSP)
	}
	if s.DefaultStirRate() != 200 {
		t.Errorf("expected a zero stir rate to take the default, got %v", s.DefaultStirRate())
	}
}

func TestInitializeSilentDevice(t *testing.T) {
	s, sim, _ := newTestStirrer(t)
	sim.Ignore = []string{"IN_NAME"}
	if res := s.Initialize(); res.Kind != device.ResponseTimeout {
		t.Errorf("expected ResponseTimeout got %s", res)
	}
	if s.Initialized() {
		t.Error("expected uninitialized")
	}
}

func TestChangeTemperature(t *testing.T) {
	s, sim, clock := initialized(t)
	res := s.ChangeTemperature(80)
	if !res.OK || res.Value != 80 {
		t.Fatalf("expected 80 got %s", res)
	}
	want := []string{"START_1", "OUT_SP_1 80", "IN_SP_1", "IN_PV_2"}
	if diff := cmp.Diff(want, sim.Writes()); diff != "" {
		t.Errorf("wire traffic mismatch (-want +got):\n%s", diff)
	}
	if n := len(clock.Sleeps()); n != 2 {
		t.Errorf("expected a settle per setpoint, got %d sleeps", n)
	}

	sim.ClearWrites()
	if res := s.ChangeTemperature(501); res.Kind != device.InvalidArgument {
		t.Errorf("expected InvalidArgument got %s", res)
	}
	if n := len(sim.Writes()); n != 0 {
		t.Errorf("expected nothing sent, got %d writes", n)
	}

	sim.Ignore = []string{"OUT_SP_1"}
	if res := s.ChangeTemperature(120); res.OK || res.Kind != device.UnspecifiedFailure {
		t.Errorf("expected UnspecifiedFailure got %s", res)
	}
}

func TestChangeStirRateDefaults(t *testing.T) {
	s, sim, _ := initialized(t)
	if res := s.SetDefaultStirRate(40); res.Kind != device.InvalidArgument {
		t.Errorf("expected InvalidArgument got %s", res)
	}
	if res := s.SetDefaultStirRate(600); !res.OK {
		t.Fatal(res)
	}
	if n := len(sim.Writes()); n != 0 {
		t.Errorf("setting a default should not talk to the device, got %d writes", n)
	}
	res := s.ChangeToDefaultStirRate()
	if !res.OK || sim.SpeedSP != 600 || res.Value != 600 {
		t.Errorf("expected 600 rpm got %s, setpoint %v", res, sim.SpeedSP)
	}
	if res := s.StirRate(); res.Value != 600 {
		t.Errorf("expected 600 got %v", res.Value)
	}
}

func TestStopAndGuards(t *testing.T) {
	s, sim, _ := newTestStirrer(t)
	if res := s.ChangeStirRate(300); res.Kind != device.NotInitialized {
		t.Errorf("expected NotInitialized got %s", res)
	}
	if res := s.Temperature(); !res.OK || res.Value != 22 {
		t.Errorf("expected 22 got %s", res)
	}
	if res := s.Initialize(); !res.OK {
		t.Fatal(res)
	}
	inv := command.NewInvoker(4, s.logger)
	if res := inv.Run(HaltCmd(s)); !res.OK {
		t.Fatal(res)
	}
	if sim.Heating || sim.Stirring {
		t.Error("expected heater and motor off")
	}
	sim.Close()
	if res := s.StopHeating(); res.Kind != device.NotConnected {
		t.Errorf("expected NotConnected got %s", res)
	}
}

func TestHTTPWrapper(t *testing.T) {
	s, sim, _ := newTestStirrer(t)
	r := chi.NewRouter()
	NewHTTPWrapper(s).RT().Bind(r)
	do := func(method, path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
		return w
	}
	if w := do(http.MethodPost, "/temperature", `{"f64": 60}`); w.Code != http.StatusConflict {
		t.Errorf("expected 409 got %d", w.Code)
	}
	if w := do(http.MethodPost, "/initialize", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body)
	}
	if w := do(http.MethodPost, "/default-temperature", `{"f64": 65}`); w.Code != http.StatusOK {
		t.Errorf("expected 200 got %d", w.Code)
	}
	if w := do(http.MethodPost, "/temperature/default", ""); w.Code != http.StatusOK || sim.TempSP != 65 {
		t.Errorf("expected 200 and 65 got %d and %v", w.Code, sim.TempSP)
	}
	w := do(http.MethodGet, "/temperature", "")
	f := generichttp.FloatT{}
	if err := json.NewDecoder(w.Body).Decode(&f); err != nil || f.F64 != 65 {
		t.Errorf("expected 65 got %v, %v", f.F64, err)
	}
	if w := do(http.MethodPost, "/stir-rate", `{"f64": 2000}`); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 got %d", w.Code)
	}
}
