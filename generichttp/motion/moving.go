package motion

import (
	"go/types"
	"net/http"

	"github.com/sdlab/labdev/device"
	"github.com/sdlab/labdev/generichttp"
)

// MotionQueryer is a type which can query whether an axis is in motion
type MotionQueryer interface {
	// IsMoving returns true while the axis is in motion
	IsMoving(int) (bool, device.Result)
}

// GetMoving returns an http.HandlerFunc for m.IsMoving
func GetMoving(m MotionQueryer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis, res, ok := axisParam(r)
		if !ok {
			generichttp.RespondResult(w, r, res)
			return
		}
		moving, res := m.IsMoving(axis)
		if !res.OK {
			generichttp.RespondResult(w, r, res)
			return
		}
		hp := generichttp.HumanPayload{T: types.Bool, Bool: moving}
		hp.EncodeAndRespond(w, r)
	}
}

// HTTPMoving adds routes for motion queries to the route table
func HTTPMoving(iface MotionQueryer, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/axis/{axis}/moving"}] = GetMoving(iface)
}
