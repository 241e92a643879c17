package motion

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/google/go-cmp/cmp"

	"github.com/sdlab/labdev/device"
	"github.com/sdlab/labdev/generichttp"
	"github.com/sdlab/labdev/util"
)

// stage is a two axis controller held entirely in memory
type stage struct {
	pos   map[int]float64
	on    map[int]bool
	moves []string
}

func newStage() *stage {
	return &stage{pos: map[int]float64{1: 0, 2: 0}, on: map[int]bool{}}
}

func (s *stage) check(axis int) (device.Result, bool) {
	return device.Check(device.Axis(axis, func(a int) bool { _, ok := s.pos[a]; return ok }))
}

func (s *stage) Position(axis int) device.Result {
	if res, ok := s.check(axis); !ok {
		return res
	}
	return device.Measured(s.pos[axis], "")
}

func (s *stage) MoveAbsolute(axis int, x float64) device.Result {
	if res, ok := s.check(axis); !ok {
		return res
	}
	s.moves = append(s.moves, "abs")
	s.pos[axis] = x
	return device.Success("moved")
}

func (s *stage) MoveRelative(axis int, x float64) device.Result {
	if res, ok := s.check(axis); !ok {
		return res
	}
	s.moves = append(s.moves, "rel")
	s.pos[axis] += x
	return device.Success("moved")
}

func (s *stage) Home(axis int) device.Result {
	return s.MoveAbsolute(axis, 0)
}

func (s *stage) AxisOn(axis int) device.Result  { s.on[axis] = true; return device.Success("") }
func (s *stage) AxisOff(axis int) device.Result { s.on[axis] = false; return device.Success("") }
func (s *stage) AxisEnabled(axis int) device.Result {
	if s.on[axis] {
		return device.Measured(1, "")
	}
	return device.Measured(0, "")
}

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestControllerRoutesByCapability(t *testing.T) {
	ctl := NewHTTPMotionController(newStage())
	want := []string{
		"POST /axis/{axis}/enabled",
		"GET /axis/{axis}/enabled",
		"POST /axis/{axis}/home",
		"GET /axis/{axis}/pos",
		"POST /axis/{axis}/pos",
	}
	got := ctl.RT().Endpoints()
	if len(got) != len(want) {
		t.Fatalf("expected %d routes got %v", len(want), got)
	}
	for _, e := range want {
		found := false
		for _, g := range got {
			if g == e {
				found = true
			}
		}
		if !found {
			t.Errorf("missing route %s in %v", e, got)
		}
	}
}

func TestMoveAndQuery(t *testing.T) {
	s := newStage()
	r := chi.NewRouter()
	NewHTTPMotionController(s).RT().Bind(r)

	if w := serve(t, r, http.MethodPost, "/axis/1/pos", `{"f64": 5}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body)
	}
	if w := serve(t, r, http.MethodPost, "/axis/1/pos?relative=true", `{"f64": -2}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body)
	}
	w := serve(t, r, http.MethodGet, "/axis/1/pos", "")
	f := generichttp.FloatT{}
	if err := json.NewDecoder(w.Body).Decode(&f); err != nil || f.F64 != 3 {
		t.Errorf("expected 3 got %v, %v", f.F64, err)
	}
	if diff := cmp.Diff([]string{"abs", "rel"}, s.moves); diff != "" {
		t.Errorf("moves mismatch (-want +got):\n%s", diff)
	}

	if w := serve(t, r, http.MethodPost, "/axis/7/pos", `{"f64": 1}`); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown axis got %d", w.Code)
	}
	if w := serve(t, r, http.MethodGet, "/axis/x/pos", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a non-integer axis got %d", w.Code)
	}
	if w := serve(t, r, http.MethodPost, "/axis/1/pos?relative=maybe", `{"f64": 1}`); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad relative flag got %d", w.Code)
	}
}

func TestEnable(t *testing.T) {
	s := newStage()
	r := chi.NewRouter()
	NewHTTPMotionController(s).RT().Bind(r)
	serve(t, r, http.MethodPost, "/axis/2/enabled", `{"bool": true}`)
	if !s.on[2] {
		t.Fatal("expected axis 2 on")
	}
	w := serve(t, r, http.MethodGet, "/axis/2/enabled", "")
	b := generichttp.BoolT{}
	if err := json.NewDecoder(w.Body).Decode(&b); err != nil || !b.Bool {
		t.Errorf("expected true got %v, %v", b.Bool, err)
	}
}

func TestLimitMiddleware(t *testing.T) {
	s := newStage()
	ctl := NewHTTPMotionController(s)
	lim := LimitMiddleware{Limits: map[int]util.Limiter{1: {Min: -1, Max: 10}}, Mov: s}
	lim.Inject(ctl)
	r := chi.NewRouter()
	r.Use(lim.Check)
	ctl.RT().Bind(r)

	tests := []struct {
		name string
		path string
		body string
		code int
	}{
		{"inside", "/axis/1/pos", `{"f64": 8}`, http.StatusOK},
		{"relative outside", "/axis/1/pos?relative=true", `{"f64": 3}`, http.StatusBadRequest},
		{"relative inside", "/axis/1/pos?relative=true", `{"f64": -9}`, http.StatusOK},
		{"absolute outside", "/axis/1/pos", `{"f64": -1.5}`, http.StatusBadRequest},
		{"unlimited axis", "/axis/2/pos", `{"f64": 1000}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, r, http.MethodPost, tt.path, tt.body)
			if w.Code != tt.code {
				t.Errorf("expected %d got %d: %s", tt.code, w.Code, w.Body)
			}
		})
	}
	if s.pos[1] != -1 {
		t.Errorf("expected axis 1 at -1 got %v", s.pos[1])
	}

	w := serve(t, r, http.MethodGet, "/axis/1/limits", "")
	got := util.Limiter{}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(util.Limiter{Min: -1, Max: 10}, got); diff != "" {
		t.Errorf("limits mismatch (-want +got):\n%s", diff)
	}
	w = serve(t, r, http.MethodGet, "/axis/2/limits", "")
	if strings.TrimSpace(w.Body.String()) != "null" {
		t.Errorf("expected null for an unlimited axis got %q", w.Body)
	}
}
