package sciencetech

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/sdlab/labdev/device"
	"github.com/sdlab/labdev/generichttp"
)

// HTTPWrapper provides HTTP bindings on top of a Lamp
type HTTPWrapper struct {
	*Lamp

	RouteTable generichttp.RouteTable
}

// NewHTTPWrapper returns a new wrapper with the route table populated
func NewHTTPWrapper(l *Lamp) HTTPWrapper {
	w := HTTPWrapper{Lamp: l}
	w.RouteTable = generichttp.RouteTable{
		{Method: http.MethodPost, Path: "/initialize"}:      generichttp.Do(l.Initialize),
		{Method: http.MethodPost, Path: "/deinitialize"}:    generichttp.Do(l.Deinitialize),
		{Method: http.MethodGet, Path: "/shutter"}:          generichttp.GetBool(l.ShutterClosed),
		{Method: http.MethodPost, Path: "/shutter"}:         generichttp.Toggle(l.CloseShutter, l.OpenShutter),
		{Method: http.MethodGet, Path: "/cooling"}:          generichttp.GetBool(l.CoolingOn),
		{Method: http.MethodPost, Path: "/cooling"}:         generichttp.Toggle(l.EnableCooling, l.DisableCooling),
		{Method: http.MethodGet, Path: "/lamp"}:             generichttp.GetBool(l.ArcLampOn),
		{Method: http.MethodPost, Path: "/lamp"}:            generichttp.Toggle(l.EnableArcLamp, l.DisableArcLamp),
		{Method: http.MethodGet, Path: "/attenuator"}:       generichttp.GetFloat(l.Attenuator),
		{Method: http.MethodPost, Path: "/attenuator"}:      generichttp.SetInt(l.SetAttenuator),
		{Method: http.MethodPost, Path: "/attenuator/open"}: generichttp.Do(l.OpenAttenuator),
		{Method: http.MethodGet, Path: "/current"}:          generichttp.GetFloat(l.Current),
		{Method: http.MethodPost, Path: "/current"}:         generichttp.SetFloat(l.SetCurrent),
		{Method: http.MethodGet, Path: "/status"}:           w.HTTPStatus,
		{Method: http.MethodGet, Path: "/feedback/{field}"}: w.HTTPFeedback,
	}
	return w
}

// RT satisfies generichttp.HTTPer
func (h HTTPWrapper) RT() generichttp.RouteTable {
	return h.RouteTable
}

// HTTPStatus returns the status dump as a json array of lines
func (h HTTPWrapper) HTTPStatus(w http.ResponseWriter, r *http.Request) {
	lines, res := h.Lamp.Status()
	if !res.OK {
		generichttp.RespondResult(w, r, res)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(lines); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HTTPFeedback returns the line for {field} as {"str": line}
func (h HTTPWrapper) HTTPFeedback(w http.ResponseWriter, r *http.Request) {
	field := chi.URLParam(r, "field")
	generichttp.GetString(func() device.Result { return h.Lamp.Feedback(field) })(w, r)
}
