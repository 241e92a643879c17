package main

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/knadh/koanf"

	"github.com/sdlab/labdev/generichttp"
	"github.com/sdlab/labdev/newport"
	"github.com/sdlab/labdev/util"
)

const testConfig = `Addr: ":8123"
Mock: true
Nodes:
  - Type: esp301
    Endpoint: lab/esp/*
    Addr: /dev/ttyUSB0
    Serial: true
    Timeout: 2s
    Args:
      PollInterval: 50ms
      Axes:
        1:
          DefaultSpeed: 5
          MaxSpeed: 20
          Unit: mm
        2:
          DefaultSpeed: 1
          MaxSpeed: 10
          Unit: deg
      Limits:
        1:
          Min: 0
          Max: 50
  - Type: ika
    Endpoint: /lab/stirrer
    Addr: 192.168.100.10:2001
    Args:
      DefaultTemperature: 65
  - Type: sciencetech
    Endpoint: lab/lamp
    Addr: /dev/ttyUSB1
    Serial: true
  - Type: "69907"
    Endpoint: lab/ps
    Addr: /dev/ttyUSB2
    Serial: true
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labserver.yml")
	if err := ioutil.WriteFile(path, []byte(testConfig), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func loadTestConfig(t *testing.T) Config {
	t.Helper()
	ConfigFileName = writeConfig(t)
	k = koanf.New(".")
	setupconfig()
	c, err := unmarshal()
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestUnmarshalConfig(t *testing.T) {
	c := loadTestConfig(t)
	if c.Addr != ":8123" || !c.Mock || len(c.Nodes) != 4 {
		t.Fatalf("unexpected config %+v", c)
	}
	if c.Nodes[0].Timeout != 2*time.Second {
		t.Errorf("expected 2s got %v", c.Nodes[0].Timeout)
	}
	args := ESPArgs{}
	if err := decodeArgs(c.Nodes[0].Args, &args); err != nil {
		t.Fatal(err)
	}
	want := ESPArgs{
		Axes: map[int]newport.AxisConfig{
			1: {DefaultSpeed: 5, MaxSpeed: 20, Unit: newport.Millimeter},
			2: {DefaultSpeed: 1, MaxSpeed: 10, Unit: newport.Degree},
		},
		PollInterval: 50 * time.Millisecond,
		Limits:       map[int]util.Limiter{1: {Min: 0, Max: 50}},
	}
	if diff := cmp.Diff(want, args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadYaml(t *testing.T) {
	c, err := LoadYaml(writeConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	if c.Nodes[1].Type != "ika" || c.Nodes[1].Endpoint != "/lab/stirrer" {
		t.Errorf("unexpected node %+v", c.Nodes[1])
	}
	if c.Nodes[0].Timeout != 2*time.Second {
		t.Errorf("expected 2s got %v", c.Nodes[0].Timeout)
	}
	args := ESPArgs{}
	if err := decodeArgs(c.Nodes[0].Args, &args); err != nil {
		t.Fatal(err)
	}
	if args.PollInterval != 50*time.Millisecond || args.Axes[2].Unit != newport.Degree {
		t.Errorf("unexpected esp args %+v", args)
	}
	if _, err := LoadYaml(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestBuildMux(t *testing.T) {
	c := loadTestConfig(t)
	mux, err := BuildMux(c)
	if err != nil {
		t.Fatal(err)
	}
	do := func(method, path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
		return w
	}

	w := do(http.MethodGet, "/endpoints", "")
	graph := map[string][]string{}
	if err := json.NewDecoder(w.Body).Decode(&graph); err != nil {
		t.Fatal(err)
	}
	for _, stem := range []string{"/lab/esp", "/lab/stirrer", "/lab/lamp", "/lab/ps"} {
		if len(graph[stem]) == 0 {
			t.Errorf("no routes listed for %s", stem)
		}
	}
	found := false
	for _, ep := range graph["/lab/esp"] {
		if ep == "GET /axis/{axis}/lock" {
			found = true
		}
	}
	if !found {
		t.Error("expected the esp node to carry an axis lock")
	}

	if w := do(http.MethodPost, "/lab/esp/axis/1/pos", `{"f64": 75}`); w.Code != http.StatusBadRequest {
		t.Errorf("expected a move past the limit to be refused with 400, got %d", w.Code)
	}
	if w := do(http.MethodPost, "/lab/esp/axis/1/lock", `{"bool": true}`); w.Code != http.StatusOK {
		t.Errorf("expected 200 locking axis 1 got %d", w.Code)
	}
	if w := do(http.MethodPost, "/lab/esp/axis/1/pos", `{"f64": 5}`); w.Code != http.StatusLocked {
		t.Errorf("expected 423 on a locked axis got %d", w.Code)
	}

	w = do(http.MethodGet, "/lab/stirrer/default-temperature", "")
	f := generichttp.FloatT{}
	if err := json.NewDecoder(w.Body).Decode(&f); err != nil || f.F64 != 65 {
		t.Errorf("expected 65 got %v, %v", f.F64, err)
	}
	if w := do(http.MethodPost, "/lab/lamp/shutter", `{"bool": false}`); w.Code != http.StatusConflict {
		t.Errorf("expected 409 from an uninitialized lamp got %d", w.Code)
	}
}

func TestBuildMuxRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name  string
		nodes []ObjSetup
	}{
		{"unknown type", []ObjSetup{{Type: "toaster", Endpoint: "a"}}},
		{"duplicate endpoint", []ObjSetup{{Type: "ika", Endpoint: "a"}, {Type: "sciencetech", Endpoint: "/a/"}}},
		{"bad args", []ObjSetup{{Type: "esp301", Endpoint: "a", Args: map[string]interface{}{"PollInterval": "soon"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := BuildMux(Config{Mock: true, Nodes: tt.nodes}); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestStirrerDefaultTemperature(t *testing.T) {
	tests := []struct {
		name string
		args map[string]interface{}
		want float64
	}{
		{"unset", nil, 50},
		{"zero", map[string]interface{}{"DefaultTemperature": 0}, 0},
		{"set", map[string]interface{}{"DefaultTemperature": "80"}, 80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, err := BuildMux(Config{Mock: true, Nodes: []ObjSetup{{Type: "ika", Endpoint: "ika", Args: tt.args}}})
			if err != nil {
				t.Fatal(err)
			}
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ika/default-temperature", nil))
			f := generichttp.FloatT{}
			if err := json.NewDecoder(w.Body).Decode(&f); err != nil || f.F64 != tt.want {
				t.Errorf("expected %v got %v, %v", tt.want, f.F64, err)
			}
		})
	}
}
