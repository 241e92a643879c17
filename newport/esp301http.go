package newport

import (
	"encoding/json"
	"fmt"
	"go/types"
	"net/http"

	"github.com/sdlab/labdev/device"
	"github.com/sdlab/labdev/generichttp"
	"github.com/sdlab/labdev/generichttp/ascii"
	"github.com/sdlab/labdev/generichttp/motion"
)

// ESP301HTTPWrapper wraps ESP301 operation in an HTTP interface.  The axis
// routes come from motion.HTTPMotionController; the rest are specific to the ESP
type ESP301HTTPWrapper struct {
	// ESP301 is the underlying motion controller
	*ESP301

	// RouteTable is the map of patterns to route handlers
	RouteTable generichttp.RouteTable
}

// NewESP301HTTPWrapper returns a new wrapper with the route table populated
func NewESP301HTTPWrapper(esp *ESP301) ESP301HTTPWrapper {
	w := ESP301HTTPWrapper{ESP301: esp, RouteTable: motion.NewHTTPMotionController(esp).RT()}
	rt := w.RouteTable
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/connect"}] = generichttp.Do(esp.Connect)
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/disconnect"}] = generichttp.Do(esp.Disconnect)
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/deinitialize"}] = generichttp.SetBool(esp.Deinitialize)
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/state"}] = w.HTTPState
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/errors"}] = w.HTTPErrors
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/check-error"}] = generichttp.Do(esp.CheckError)
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/single-cmd"}] = w.JSONSingle
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/multi-cmd"}] = w.JSONArray
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/cmd-list"}] = CmdList
	ascii.InjectRawComm(rt, esp)
	return w
}

// RT satisfies generichttp.HTTPer
func (h ESP301HTTPWrapper) RT() generichttp.RouteTable {
	return h.RouteTable
}

// HTTPState returns the lifecycle state as {"str": state}
func (h ESP301HTTPWrapper) HTTPState(w http.ResponseWriter, r *http.Request) {
	hp := generichttp.HumanPayload{T: types.String, String: h.ESP301.State().String()}
	hp.EncodeAndRespond(w, r)
}

// HTTPErrors reads the error queue and returns it as a json array
func (h ESP301HTTPWrapper) HTTPErrors(w http.ResponseWriter, r *http.Request) {
	errs, res := h.ESP301.ReadErrors()
	if !res.OK {
		generichttp.RespondResult(w, r, res)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(errs); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func badJSON(w http.ResponseWriter, err error) {
	fstr := fmt.Sprintf("error decoding JSON, request should have fields \"axis\", \"cmd\", \"f64\", \"write\".  axis and f64 may be left blank.  %q", err)
	http.Error(w, fstr, http.StatusBadRequest)
}

// axesConfigured refuses commands addressed to an axis the driver does not
// have, as the axis guard does for the typed operations
func (h ESP301HTTPWrapper) axesConfigured(cmds ...JSONCommand) device.Result {
	for _, c := range cmds {
		m, err := LookupMnemonic(c.Cmd)
		if err != nil || !m.UsesAxis {
			continue
		}
		if res, ok := device.Check(h.ESP301.axisValid(c.Axis)); !ok {
			return res
		}
	}
	return device.Result{OK: true}
}

func (h ESP301HTTPWrapper) sendTelegram(w http.ResponseWriter, r *http.Request, tele string, err error) {
	if err != nil {
		generichttp.RespondResult(w, r, device.Failure(device.InvalidArgument, err.Error()))
		return
	}
	res := h.ESP301.Raw(tele)
	if !res.OK {
		generichttp.RespondResult(w, r, res)
		return
	}
	hp := generichttp.HumanPayload{T: types.String, String: res.Message}
	hp.EncodeAndRespond(w, r)
}

// JSONSingle handles singular commands over HTTP of JSONCommand type
func (h ESP301HTTPWrapper) JSONSingle(w http.ResponseWriter, r *http.Request) {
	jcmd := JSONCommand{}
	err := json.NewDecoder(r.Body).Decode(&jcmd)
	defer r.Body.Close()
	if err != nil {
		badJSON(w, err)
		return
	}
	if res := h.axesConfigured(jcmd); !res.OK {
		generichttp.RespondResult(w, r, res)
		return
	}
	tele, err := jcmd.Telegram()
	h.sendTelegram(w, r, tele, err)
}

// JSONArray handles arrays of commands over HTTP of JSONCommand type.  They
// are sent as one line, which must fit the controller's buffer
func (h ESP301HTTPWrapper) JSONArray(w http.ResponseWriter, r *http.Request) {
	jcmds := []JSONCommand{}
	err := json.NewDecoder(r.Body).Decode(&jcmds)
	defer r.Body.Close()
	if err != nil {
		badJSON(w, err)
		return
	}
	if res := h.axesConfigured(jcmds...); !res.OK {
		generichttp.RespondResult(w, r, res)
		return
	}
	tele, err := Telegrams(jcmds)
	h.sendTelegram(w, r, tele, err)
}

// CmdList returns the catalog of commands usable with single-cmd and multi-cmd
func CmdList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(ESPMnemonics); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
