package motion

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"

	"github.com/sdlab/labdev/device"
	"github.com/sdlab/labdev/generichttp"
	"github.com/sdlab/labdev/util"
)

// LimitMiddleware is a type that can impose axis-specific software limits on
// motion, refusing a move that would leave them before it reaches the driver
type LimitMiddleware struct {
	// Limits contains the server imposed limits on the controller
	Limits map[int]util.Limiter

	// Mov is a reference to the mover, used to query axis positions
	Mov Mover
}

// Check verifies if a motion would violate the axis limit, if it exists,
// and if it does, responds with StatusBadRequest.
// Otherwise, flows control to the next handler
func (l *LimitMiddleware) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/pos") || r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}
		axis, relative, ok := parsePosPath(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		// bail as early as possible if we don't have a limit for this axis
		limiter, ok := l.Limits[axis]
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		// downstream handlers want the body,
		// read it all here, then "paste" it back with ioutil
		bodyContent, _ := ioutil.ReadAll(r.Body)
		r.Body.Close()
		r.Body = ioutil.NopCloser(bytes.NewBuffer(bodyContent))
		f := generichttp.FloatT{}
		if err := json.NewDecoder(bytes.NewReader(bodyContent)).Decode(&f); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cmd := f.F64
		if relative {
			// in the relative case, shift the command by the current position
			res := l.Mov.Position(axis)
			if !res.OK {
				generichttp.RespondResult(w, r, res)
				return
			}
			cmd += res.Value
		}
		if !limiter.Check(cmd) {
			generichttp.RespondResult(w, r, device.Failuref(device.InvalidArgument,
				"requested position %s violates software limits %s on axis %d, aborted",
				util.FormatFloat(cmd), limiter, axis))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// parsePosPath extracts the axis from ".../axis/{axis}/pos".  The middleware
// runs before chi has matched the route, so URL parameters are not available
func parsePosPath(r *http.Request) (int, bool, bool) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	n := len(parts)
	if n < 3 || parts[n-3] != "axis" {
		return 0, false, false
	}
	axis, err := strconv.Atoi(parts[n-2])
	if err != nil {
		return 0, false, false
	}
	relative, _ := strconv.ParseBool(r.URL.Query().Get("relative"))
	return axis, relative, true
}

// Inject places a /axis/{axis}/limits route on the table of the HTTPer
func (l LimitMiddleware) Inject(h generichttp.HTTPer) {
	h.RT()[generichttp.MethodPath{Method: http.MethodGet, Path: "/axis/{axis}/limits"}] = Limits(l)
}

// Limits returns an HTTP handler func that returns the limits for an axis,
// or null if it has none
func Limits(l LimitMiddleware) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis, res, ok := axisParam(r)
		if !ok {
			generichttp.RespondResult(w, r, res)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		var err error
		if lim, ok := l.Limits[axis]; ok {
			err = json.NewEncoder(w).Encode(lim)
		} else {
			err = json.NewEncoder(w).Encode(nil)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
