package motion

import (
	"net/http"

	"github.com/sdlab/labdev/device"
	"github.com/sdlab/labdev/generichttp"
)

// Uniter is a controller whose axes may be programmed in different units
type Uniter interface {
	// AxisUnit returns the unit name as the Result message
	AxisUnit(int) device.Result

	// ChangeAxisUnit programs the axis in the named unit
	ChangeAxisUnit(int, string) device.Result
}

// HTTPUnit adds routes for units to the route table
func HTTPUnit(u Uniter, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/axis/{axis}/unit"}] = GetUnit(u)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/axis/{axis}/unit"}] = SetUnit(u)
}

// GetUnit returns an HTTP handler func that responds {"str": unit}
func GetUnit(u Uniter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fcn, ok := withAxis(w, r, u.AxisUnit)
		if !ok {
			return
		}
		generichttp.GetString(fcn)(w, r)
	}
}

// SetUnit returns an HTTP handler func that reads {"str": unit} and programs the axis
func SetUnit(u Uniter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis, res, ok := axisParam(r)
		if !ok {
			generichttp.RespondResult(w, r, res)
			return
		}
		generichttp.SetString(func(s string) device.Result {
			return u.ChangeAxisUnit(axis, s)
		})(w, r)
	}
}
