package newport

import (
	"net/http"

	"github.com/sdlab/labdev/generichttp"
)

// PS69907HTTPWrapper wraps a 69907 supply in an HTTP interface
type PS69907HTTPWrapper struct {
	*PS69907

	RouteTable generichttp.RouteTable
}

// NewPS69907HTTPWrapper returns a new wrapper with the route table populated
func NewPS69907HTTPWrapper(ps *PS69907) PS69907HTTPWrapper {
	rt := generichttp.RouteTable{
		{Method: http.MethodPost, Path: "/initialize"}:   generichttp.Do(ps.Initialize),
		{Method: http.MethodPost, Path: "/deinitialize"}: generichttp.Do(ps.Deinitialize),
		{Method: http.MethodGet, Path: "/lamp"}:          generichttp.GetBool(ps.LampOn),
		{Method: http.MethodPost, Path: "/lamp"}:         generichttp.Toggle(ps.TurnOn, ps.TurnOff),
		{Method: http.MethodGet, Path: "/power-limit"}:   generichttp.GetFloat(ps.PowerLimit),
		{Method: http.MethodPost, Path: "/power-limit"}:  generichttp.SetFloat(ps.SetPowerLimit),
		{Method: http.MethodPost, Path: "/power-mode"}:   generichttp.Do(ps.PowerMode),
		{Method: http.MethodGet, Path: "/status"}:        generichttp.Do(ps.Status),
		{Method: http.MethodGet, Path: "/check-error"}:   generichttp.Do(ps.CheckError),
	}
	return PS69907HTTPWrapper{PS69907: ps, RouteTable: rt}
}

// RT satisfies generichttp.HTTPer
func (h PS69907HTTPWrapper) RT() generichttp.RouteTable {
	return h.RouteTable
}
