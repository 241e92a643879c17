package motion

import (
	"net/http"

	"github.com/sdlab/labdev/device"
	"github.com/sdlab/labdev/generichttp"
)

// Initializer is a controller brought up as a whole, not per axis
type Initializer interface {
	// Initialize engages every configured axis and homes it
	Initialize() device.Result
}

// HTTPInitialize adds routes for initialization to the route table
func HTTPInitialize(i Initializer, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/initialize"}] = generichttp.Do(i.Initialize)
}
