package motion

import (
	"net/http"

	"github.com/sdlab/labdev/device"
	"github.com/sdlab/labdev/generichttp"
)

// Speeder describes an interface with velocity-related methods for axes
type Speeder interface {
	// SetAxisDefaultSpeed sets the velocity used by moves on the axis
	SetAxisDefaultSpeed(int, float64) device.Result

	// AxisDefaultSpeed gets the velocity used by moves on the axis
	AxisDefaultSpeed(int) device.Result
}

// HTTPSpeed adds routes for the speeder to the route table
func HTTPSpeed(iface Speeder, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/axis/{axis}/velocity"}] = SetVelocity(iface)
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/axis/{axis}/velocity"}] = GetVelocity(iface)
}

// SetVelocity returns an HTTP handler func which sets the velocity setpoint on an axis
func SetVelocity(s Speeder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis, res, ok := axisParam(r)
		if !ok {
			generichttp.RespondResult(w, r, res)
			return
		}
		generichttp.SetFloat(func(f float64) device.Result {
			return s.SetAxisDefaultSpeed(axis, f)
		})(w, r)
	}
}

// GetVelocity returns an HTTP handler func which gets the velocity setpoint on an axis
func GetVelocity(s Speeder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fcn, ok := withAxis(w, r, s.AxisDefaultSpeed)
		if !ok {
			return
		}
		generichttp.GetFloat(fcn)(w, r)
	}
}
