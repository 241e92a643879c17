// Package motion provides an HTTP interface to motion controllers.
//
// A controller need only be a Mover; the other capabilities are discovered
// by type assertion and their routes added when present
package motion

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/sdlab/labdev/device"
	"github.com/sdlab/labdev/generichttp"
)

// Controller is used for the HTTP interface, which will check if the
// concrete type implements the other interfaces of this package
type Controller interface {
	// Mover - all Controllers must be Movers
	Mover
}

// HTTPMotionController wraps a motion controller with HTTP
type HTTPMotionController struct {
	Controller

	RouteTable generichttp.RouteTable
}

// NewHTTPMotionController returns a new HTTP wrapper with the route table pre-configured
func NewHTTPMotionController(c Controller) HTTPMotionController {
	w := HTTPMotionController{Controller: c}
	rt := generichttp.RouteTable{}
	HTTPMove(c, rt)
	if enabler, ok := interface{}(c).(Enabler); ok {
		HTTPEnable(enabler, rt)
	}
	if speeder, ok := interface{}(c).(Speeder); ok {
		HTTPSpeed(speeder, rt)
	}
	if initializer, ok := interface{}(c).(Initializer); ok {
		HTTPInitialize(initializer, rt)
	}
	if uniter, ok := interface{}(c).(Uniter); ok {
		HTTPUnit(uniter, rt)
	}
	if mq, ok := interface{}(c).(MotionQueryer); ok {
		HTTPMoving(mq, rt)
	}
	w.RouteTable = rt
	return w
}

// RT satisfies generichttp.HTTPer
func (h HTTPMotionController) RT() generichttp.RouteTable {
	return h.RouteTable
}

// axisParam pulls the {axis} URL parameter.  A non-integer axis is reported
// the same way the driver reports an axis it does not have
func axisParam(r *http.Request) (int, device.Result, bool) {
	s := chi.URLParam(r, "axis")
	axis, err := strconv.Atoi(s)
	if err != nil {
		return 0, device.Failuref(device.InvalidAxis, "axis %q is not an integer", s), false
	}
	return axis, device.Result{}, true
}

// withAxis adapts a per-axis operation to a no-argument one, or responds
// with the parse failure
func withAxis(w http.ResponseWriter, r *http.Request, fcn func(int) device.Result) (func() device.Result, bool) {
	axis, res, ok := axisParam(r)
	if !ok {
		generichttp.RespondResult(w, r, res)
		return nil, false
	}
	return func() device.Result { return fcn(axis) }, true
}
