// Package ascii contains some injectable HTTP interfaces to ASCII hardware
package ascii

import (
	"encoding/json"
	"go/types"
	"net/http"

	"github.com/sdlab/labdev/device"
	"github.com/sdlab/labdev/generichttp"
)

// RawCommunicator has a single Raw method, which sends a line and returns
// the reply as the Result message
type RawCommunicator interface {
	Raw(string) device.Result
}

// RawWrapper is a wrapper around a raw communicator
type RawWrapper struct {
	Comm RawCommunicator
}

// HTTPRaw provides access to the raw function over http.  The request is
// {"str": text} and the reply {"str": response}
func (rw RawWrapper) HTTPRaw(w http.ResponseWriter, r *http.Request) {
	str := generichttp.StrT{}
	err := json.NewDecoder(r.Body).Decode(&str)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res := rw.Comm.Raw(str.Str)
	if !res.OK {
		generichttp.RespondResult(w, r, res)
		return
	}
	hp := generichttp.HumanPayload{T: types.String, String: res.Message}
	hp.EncodeAndRespond(w, r)
}

// InjectRawComm injects a /raw POST route into the route table
func InjectRawComm(table generichttp.RouteTable, raw RawCommunicator) {
	wrap := RawWrapper{Comm: raw}
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/raw"}] = wrap.HTTPRaw
}
