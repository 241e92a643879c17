package sciencetech

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"

	"github.com/sdlab/labdev/command"
	"github.com/sdlab/labdev/generichttp"
)

func TestHTTPWrapper(t *testing.T) {
	l, sim, _ := newTestLamp(t)
	r := chi.NewRouter()
	NewHTTPWrapper(l).RT().Bind(r)
	do := func(method, path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
		return w
	}

	if w := do(http.MethodPost, "/shutter", `{"bool": false}`); w.Code != http.StatusConflict {
		t.Errorf("expected 409 before initialization got %d", w.Code)
	}
	if w := do(http.MethodPost, "/initialize", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body)
	}
	if w := do(http.MethodPost, "/attenuator", `{"int": 30}`); w.Code != http.StatusOK || sim.Attenuator != 30 {
		t.Errorf("expected 200 and 30 got %d and %d", w.Code, sim.Attenuator)
	}
	if w := do(http.MethodPost, "/attenuator", `{"int": 300}`); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 got %d", w.Code)
	}

	w := do(http.MethodGet, "/current", "")
	f := generichttp.FloatT{}
	if err := json.NewDecoder(w.Body).Decode(&f); err != nil || f.F64 != 85 {
		t.Errorf("expected 85 got %v, %v", f.F64, err)
	}

	w = do(http.MethodGet, "/feedback/lamp%20minutes", "")
	s := generichttp.StrT{}
	if err := json.NewDecoder(w.Body).Decode(&s); err != nil || s.Str != "LAMP MINUTES 0018" {
		t.Errorf("expected the lamp minutes line got %q, %v", s.Str, err)
	}
	if w := do(http.MethodGet, "/feedback/colour", ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an unknown field got %d", w.Code)
	}

	w = do(http.MethodGet, "/status", "")
	lines := []string{}
	if err := json.NewDecoder(w.Body).Decode(&lines); err != nil || len(lines) != 16 {
		t.Errorf("expected 16 status lines got %d, %v", len(lines), err)
	}

	do(http.MethodPost, "/shutter", `{"bool": false}`)
	w = do(http.MethodGet, "/shutter", "")
	b := generichttp.BoolT{}
	if err := json.NewDecoder(w.Body).Decode(&b); err != nil || b.Bool {
		t.Errorf("expected the shutter open, got closed=%v, %v", b.Bool, err)
	}
}

func TestIlluminateAndDarken(t *testing.T) {
	l, sim, _ := newTestLamp(t)
	inv := command.NewInvoker(4, l.logger)
	if res := inv.Run(IlluminateCmd(l)); !res.OK {
		t.Fatal(res)
	}
	if !sim.Arc || sim.Shutter {
		t.Errorf("expected the arc on and the shutter open, got arc=%t shutter=%t", sim.Arc, sim.Shutter)
	}
	if res := inv.Run(DarkenCmd(l)); !res.OK {
		t.Fatal(res)
	}
	if sim.Arc || !sim.Shutter {
		t.Errorf("expected the arc off and the shutter closed, got arc=%t shutter=%t", sim.Arc, sim.Shutter)
	}
	if res := inv.Run(SetAttenuatorCmd(l, 101)); res.OK {
		t.Error("expected failure")
	}
	if last, _ := inv.Last(); last.Name != "sciencetech.set_attenuator(101)" {
		t.Errorf("unexpected command name %q", last.Name)
	}
}
