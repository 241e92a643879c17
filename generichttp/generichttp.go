// Package generichttp defines the route table type every device wrapper fills
// in, the JSON payloads they exchange, and handler generators that adapt
// driver operations returning a device.Result to HTTP
package generichttp

import (
	"encoding/json"
	"fmt"
	"go/types"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi"

	"github.com/sdlab/labdev/device"
)

// MethodPath is a struct containing an HTTP method and a URL path
type MethodPath struct {
	Method, Path string
}

// RouteTable maps MethodPaths to handlers
type RouteTable map[MethodPath]http.HandlerFunc

// Endpoints returns the routes in the table as "METHOD /path", sorted by path
func (rt RouteTable) Endpoints() []string {
	keys := make([]MethodPath, 0, len(rt))
	for k := range rt {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Path == keys[j].Path {
			return keys[i].Method < keys[j].Method
		}
		return keys[i].Path < keys[j].Path
	})
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.Method + " " + k.Path
	}
	return out
}

// Bind calls MethodFunc for each route on the router
func (rt RouteTable) Bind(r chi.Router) {
	for k, v := range rt {
		r.MethodFunc(k.Method, k.Path, v)
	}
}

// HTTPer is anything with a route table
type HTTPer interface {
	RT() RouteTable
}

// SubMuxSanitize converts a URL stem such as "omc/esp/" to "/omc/esp"
func SubMuxSanitize(str string) string {
	str = strings.Trim(strings.TrimSuffix(str, "*"), "/")
	return "/" + str
}

// FloatT is a struct with a single F64 field
type FloatT struct {
	F64 float64 `json:"f64"`
}

// BoolT is a struct with a single Bool field
type BoolT struct {
	Bool bool `json:"bool"`
}

// StrT is a struct with a single Str field
type StrT struct {
	Str string `json:"str"`
}

// IntT is a struct with a single Int field
type IntT struct {
	Int int `json:"int"`
}

// HumanPayload is a tagged union of the primitive payloads.  T selects
// which field is sent
type HumanPayload struct {
	T      types.BasicKind
	Bool   bool
	Float  float64
	Int    int
	String string
}

// EncodeAndRespond writes the payload to w as JSON, or as plain text if the
// request carries ?format=text
func (hp HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	var v interface{}
	switch hp.T {
	case types.Bool:
		v = BoolT{Bool: hp.Bool}
	case types.Float64:
		v = FloatT{F64: hp.Float}
	case types.Int:
		v = IntT{Int: hp.Int}
	case types.String:
		v = StrT{Str: hp.String}
	default:
		http.Error(w, fmt.Sprintf("unsupported payload kind %d", hp.T), http.StatusInternalServerError)
		return
	}
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		switch hp.T {
		case types.Bool:
			fmt.Fprintln(w, hp.Bool)
		case types.Float64:
			fmt.Fprintln(w, hp.Float)
		case types.Int:
			fmt.Fprintln(w, hp.Int)
		default:
			fmt.Fprintln(w, hp.String)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// StatusFor maps the kind of a result to an HTTP status code
func StatusFor(k device.Kind) int {
	switch k {
	case device.OK:
		return http.StatusOK
	case device.NotConnected:
		return http.StatusServiceUnavailable
	case device.NotInitialized:
		return http.StatusConflict
	case device.InvalidAxis:
		return http.StatusNotFound
	case device.InvalidSpeed, device.InvalidArgument:
		return http.StatusBadRequest
	case device.ResponseTimeout:
		return http.StatusGatewayTimeout
	case device.ControllerFault:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RespondResult writes res as JSON with the status its kind maps to
func RespondResult(w http.ResponseWriter, r *http.Request, res device.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusFor(res.Kind))
	if err := json.NewEncoder(w).Encode(res); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Do returns a handler that calls fcn and responds with its result
func Do(fcn func() device.Result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		RespondResult(w, r, fcn())
	}
}

// GetFloat calls fcn and responds {"f64": value} on success
func GetFloat(fcn func() device.Result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := fcn()
		if !res.OK {
			RespondResult(w, r, res)
			return
		}
		hp := HumanPayload{T: types.Float64, Float: res.Value}
		hp.EncodeAndRespond(w, r)
	}
}

// GetBool calls fcn and responds {"bool": value != 0} on success
func GetBool(fcn func() device.Result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := fcn()
		if !res.OK {
			RespondResult(w, r, res)
			return
		}
		hp := HumanPayload{T: types.Bool, Bool: res.Value != 0}
		hp.EncodeAndRespond(w, r)
	}
}

// GetString calls fcn and responds {"str": message} on success
func GetString(fcn func() device.Result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := fcn()
		if !res.OK {
			RespondResult(w, r, res)
			return
		}
		hp := HumanPayload{T: types.String, String: res.Message}
		hp.EncodeAndRespond(w, r)
	}
}

// SetFloat parses a JSON input of {"f64": value} and calls fcn with it
func SetFloat(fcn func(float64) device.Result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := FloatT{}
		err := json.NewDecoder(r.Body).Decode(&f)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		RespondResult(w, r, fcn(f.F64))
	}
}

// SetInt parses a JSON input of {"int": value} and calls fcn with it
func SetInt(fcn func(int) device.Result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		i := IntT{}
		err := json.NewDecoder(r.Body).Decode(&i)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		RespondResult(w, r, fcn(i.Int))
	}
}

// SetString parses a JSON input of {"str": value} and calls fcn with it
func SetString(fcn func(string) device.Result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := StrT{}
		err := json.NewDecoder(r.Body).Decode(&s)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		RespondResult(w, r, fcn(s.Str))
	}
}

// SetBool parses a JSON input of {"bool": value} and calls fcn with it
func SetBool(fcn func(bool) device.Result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := BoolT{}
		err := json.NewDecoder(r.Body).Decode(&b)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		RespondResult(w, r, fcn(b.Bool))
	}
}

// Toggle returns a handler that reads {"bool": value} and calls on or off
func Toggle(on, off func() device.Result) http.HandlerFunc {
	return SetBool(func(b bool) device.Result {
		if b {
			return on()
		}
		return off()
	})
}
