package motion

import (
	"net/http"

	"github.com/sdlab/labdev/device"
	"github.com/sdlab/labdev/generichttp"
)

// Enabler describes an interface with enable/disable methods for axes
type Enabler interface {
	// AxisOn enables an axis
	AxisOn(int) device.Result

	// AxisOff disables an axis
	AxisOff(int) device.Result

	// AxisEnabled gets if an axis is enabled, as a Result value of 1 or 0
	AxisEnabled(int) device.Result
}

// HTTPEnable adds routes for the enabler to the route table
func HTTPEnable(iface Enabler, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/axis/{axis}/enabled"}] = GetEnabled(iface)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/axis/{axis}/enabled"}] = SetEnabled(iface)
}

// SetEnabled returns an HTTP handler func from an enabler that enables or disables the axis
func SetEnabled(e Enabler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis, res, ok := axisParam(r)
		if !ok {
			generichttp.RespondResult(w, r, res)
			return
		}
		generichttp.Toggle(
			func() device.Result { return e.AxisOn(axis) },
			func() device.Result { return e.AxisOff(axis) })(w, r)
	}
}

// GetEnabled returns an HTTP handler func from an enabler that returns if the axis is enabled
func GetEnabled(e Enabler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fcn, ok := withAxis(w, r, e.AxisEnabled)
		if !ok {
			return
		}
		generichttp.GetBool(fcn)(w, r)
	}
}
