// Package locker provides HTTP middleware that serializes the requests to one
// device and allows it, or one of its axes, to be locked, returning 423 (locked)
package locker

import (
	"encoding/json"
	"go/types"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi"

	"github.com/sdlab/labdev/generichttp"
)

// ManipulableLock is a lock that can be inspected and changed over HTTP
type ManipulableLock interface {
	// Check is the middleware
	Check(http.Handler) http.Handler

	// Inject adds the routes to manipulate the lock
	Inject(generichttp.HTTPer)
}

// Inject adds the routes of l to other
func Inject(other generichttp.HTTPer, l ManipulableLock) {
	l.Inject(other)
}

// serializer holds the per-device mutex shared by both lock types.  Drivers
// are not safe for concurrent use, so every protected request holds it
type serializer struct {
	mu sync.Mutex

	// DoNotProtect is a list of path suffixes that neither wait for the
	// device nor are refused while locked
	DoNotProtect []string
}

func (s *serializer) exempt(path string) bool {
	for _, str := range s.DoNotProtect {
		if strings.HasSuffix(path, str) {
			return true
		}
	}
	return false
}

// Locker is a type which behaves like a sync.Mutex without the blocking
type Locker struct {
	serializer

	flag     sync.RWMutex
	isLocked bool
}

// New returns a new Locker with DoNotProtect prepopulated with "lock"
func New() *Locker {
	return &Locker{serializer: serializer{DoNotProtect: []string{"lock"}}}
}

// Lock the locker
func (l *Locker) Lock() {
	l.flag.Lock()
	defer l.flag.Unlock()
	l.isLocked = true
}

// Unlock the locker
func (l *Locker) Unlock() {
	l.flag.Lock()
	defer l.flag.Unlock()
	l.isLocked = false
}

// Locked returns true if the locker is locked
func (l *Locker) Locked() bool {
	l.flag.RLock()
	defer l.flag.RUnlock()
	return l.isLocked
}

// Check is an HTTP middleware that returns http.StatusLocked if Locked() is
// true, otherwise waits for the device and passes down the line
func (l *Locker) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.exempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if l.Locked() {
			w.WriteHeader(http.StatusLocked)
			return
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// HTTPSet calls Lock or Unlock based on json:bool on the request body
func (l *Locker) HTTPSet(w http.ResponseWriter, r *http.Request) {
	b := generichttp.BoolT{}
	err := json.NewDecoder(r.Body).Decode(&b)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if b.Bool {
		l.Lock()
	} else {
		l.Unlock()
	}
	w.WriteHeader(http.StatusOK)
}

// HTTPGet returns Locked() over HTTP as JSON
func (l *Locker) HTTPGet(w http.ResponseWriter, r *http.Request) {
	hp := generichttp.HumanPayload{T: types.Bool, Bool: l.Locked()}
	hp.EncodeAndRespond(w, r)
}

// Inject adds GET and POST /lock routes to other
func (l *Locker) Inject(other generichttp.HTTPer) {
	rt := other.RT()
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/lock"}] = l.HTTPGet
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/lock"}] = l.HTTPSet
}

// AxisLocker is a Locker for motion controllers, which locks individual axes.
// Routes that do not name an axis are never refused
type AxisLocker struct {
	serializer

	flag   sync.RWMutex
	locked map[string]bool
}

// NewAL returns a new AxisLocker with DoNotProtect prepopulated with "lock"
func NewAL() *AxisLocker {
	return &AxisLocker{
		serializer: serializer{DoNotProtect: []string{"lock"}},
		locked:     make(map[string]bool),
	}
}

// Lock an axis
func (l *AxisLocker) Lock(axis string) {
	l.flag.Lock()
	defer l.flag.Unlock()
	l.locked[axis] = true
}

// Unlock an axis
func (l *AxisLocker) Unlock(axis string) {
	l.flag.Lock()
	defer l.flag.Unlock()
	delete(l.locked, axis)
}

// Locked returns true if the axis is locked
func (l *AxisLocker) Locked(axis string) bool {
	l.flag.RLock()
	defer l.flag.RUnlock()
	return l.locked[axis]
}

// axisOf returns the segment following "axis" in a path, or ""
func axisOf(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "axis" {
			return parts[i+1]
		}
	}
	return ""
}

// Check is an HTTP middleware that returns http.StatusLocked if the axis in
// the path is locked, otherwise waits for the device and passes down the line
func (l *AxisLocker) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.exempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if axis := axisOf(r.URL.Path); axis != "" && l.Locked(axis) {
			w.WriteHeader(http.StatusLocked)
			return
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// HTTPSet locks or unlocks the {axis} of the route based on json:bool
func (l *AxisLocker) HTTPSet(w http.ResponseWriter, r *http.Request) {
	axis := chi.URLParam(r, "axis")
	b := generichttp.BoolT{}
	err := json.NewDecoder(r.Body).Decode(&b)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if b.Bool {
		l.Lock(axis)
	} else {
		l.Unlock(axis)
	}
	w.WriteHeader(http.StatusOK)
}

// HTTPGet returns Locked for the {axis} of the route as JSON
func (l *AxisLocker) HTTPGet(w http.ResponseWriter, r *http.Request) {
	hp := generichttp.HumanPayload{T: types.Bool, Bool: l.Locked(chi.URLParam(r, "axis"))}
	hp.EncodeAndRespond(w, r)
}

// Inject adds GET and POST /axis/{axis}/lock routes to other
func (l *AxisLocker) Inject(other generichttp.HTTPer) {
	rt := other.RT()
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/axis/{axis}/lock"}] = l.HTTPGet
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/axis/{axis}/lock"}] = l.HTTPSet
}
