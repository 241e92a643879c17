package motion

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sdlab/labdev/device"
	"github.com/sdlab/labdev/generichttp"
)

// Mover describes an interface with position-related methods for axes
type Mover interface {
	// Position gets the current position of an axis as the Result value
	Position(int) device.Result

	// MoveAbsolute moves an axis to an absolute position
	MoveAbsolute(int, float64) device.Result

	// MoveRelative moves an axis a relative amount
	MoveRelative(int, float64) device.Result

	// Home homes an axis
	Home(int) device.Result
}

// HTTPMove adds routes for the mover to the route table
func HTTPMove(iface Mover, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/axis/{axis}/home"}] = Home(iface)
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/axis/{axis}/pos"}] = GetPos(iface)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/axis/{axis}/pos"}] = SetPos(iface)
}

// GetPos returns an HTTP handler func from a mover that gets the position of an axis
func GetPos(m Mover) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fcn, ok := withAxis(w, r, m.Position)
		if !ok {
			return
		}
		generichttp.GetFloat(fcn)(w, r)
	}
}

func popAxisRelative(r *http.Request) (int, bool, device.Result, bool) {
	axis, res, ok := axisParam(r)
	if !ok {
		return 0, false, res, false
	}
	relative := r.URL.Query().Get("relative")
	if relative == "" {
		relative = "false"
	}
	b, err := strconv.ParseBool(relative)
	if err != nil {
		return 0, false, device.Failuref(device.InvalidArgument, "relative=%q is not a boolean", relative), false
	}
	return axis, b, device.Result{}, true
}

// SetPos returns an HTTP handler func from a mover that triggers an absolute or
// relative move on an axis based on the relative query parameter
func SetPos(m Mover) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis, rel, res, ok := popAxisRelative(r)
		if !ok {
			generichttp.RespondResult(w, r, res)
			return
		}
		f := generichttp.FloatT{}
		err := json.NewDecoder(r.Body).Decode(&f)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if rel {
			res = m.MoveRelative(axis, f.F64)
		} else {
			res = m.MoveAbsolute(axis, f.F64)
		}
		generichttp.RespondResult(w, r, res)
	}
}

// Home returns an HTTP handler func from a mover that homes an axis
func Home(m Mover) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fcn, ok := withAxis(w, r, m.Home)
		if !ok {
			return
		}
		generichttp.RespondResult(w, r, fcn())
	}
}
