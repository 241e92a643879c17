package locker

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi"

	"github.com/sdlab/labdev/generichttp"
)

type table generichttp.RouteTable

func (t table) RT() generichttp.RouteTable { return generichttp.RouteTable(t) }

func ok(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

func mux(l ManipulableLock, rt table) http.Handler {
	Inject(rt, l)
	r := chi.NewRouter()
	r.Use(l.Check)
	rt.RT().Bind(r)
	return r
}

func do(h http.Handler, method, path, body string) int {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w.Code
}

func TestLockerRefusesWhileLocked(t *testing.T) {
	l := New()
	h := mux(l, table{{Method: http.MethodGet, Path: "/power"}: ok})
	if code := do(h, http.MethodGet, "/power", ""); code != http.StatusOK {
		t.Fatalf("expected 200 got %d", code)
	}
	if code := do(h, http.MethodPost, "/lock", `{"bool": true}`); code != http.StatusOK {
		t.Fatalf("expected 200 locking got %d", code)
	}
	if !l.Locked() {
		t.Fatal("expected locked")
	}
	if code := do(h, http.MethodGet, "/power", ""); code != http.StatusLocked {
		t.Errorf("expected 423 got %d", code)
	}
	if code := do(h, http.MethodGet, "/lock", ""); code != http.StatusOK {
		t.Errorf("expected the lock route to stay reachable, got %d", code)
	}
	do(h, http.MethodPost, "/lock", `{"bool": false}`)
	if code := do(h, http.MethodGet, "/power", ""); code != http.StatusOK {
		t.Errorf("expected 200 after unlock got %d", code)
	}
}

func TestAxisLocker(t *testing.T) {
	l := NewAL()
	h := mux(l, table{
		{Method: http.MethodGet, Path: "/axis/{axis}/pos"}: ok,
		{Method: http.MethodPost, Path: "/initialize"}:     ok,
	})
	do(h, http.MethodPost, "/axis/2/lock", `{"bool": true}`)
	if !l.Locked("2") || l.Locked("1") {
		t.Fatal("expected only axis 2 locked")
	}
	tests := []struct {
		method, path string
		code         int
	}{
		{http.MethodGet, "/axis/2/pos", http.StatusLocked},
		{http.MethodGet, "/axis/1/pos", http.StatusOK},
		{http.MethodPost, "/initialize", http.StatusOK},
	}
	for _, tt := range tests {
		if code := do(h, tt.method, tt.path, ""); code != tt.code {
			t.Errorf("%s %s: expected %d got %d", tt.method, tt.path, tt.code, code)
		}
	}
}

func TestRequestsAreSerialized(t *testing.T) {
	var inside, peak int32
	slow := func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inside, 1)
		if n > atomic.LoadInt32(&peak) {
			atomic.StoreInt32(&peak, n)
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inside, -1)
		w.WriteHeader(http.StatusOK)
	}
	h := mux(New(), table{{Method: http.MethodGet, Path: "/slow"}: slow})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			do(h, http.MethodGet, "/slow", "")
		}()
	}
	wg.Wait()
	if peak != 1 {
		t.Errorf("expected one request at a time, saw %d", peak)
	}
}
