package ika

import (
	"net/http"

	"github.com/sdlab/labdev/device"
	"github.com/sdlab/labdev/generichttp"
)

// HTTPWrapper provides HTTP bindings on top of a Stirrer
type HTTPWrapper struct {
	*Stirrer

	RouteTable generichttp.RouteTable
}

// NewHTTPWrapper returns a new wrapper with the route table populated
func NewHTTPWrapper(s *Stirrer) HTTPWrapper {
	w := HTTPWrapper{Stirrer: s}
	defTemp := func() device.Result {
		return device.Measured(s.DefaultTemperature(), "default temperature")
	}
	defRate := func() device.Result {
		return device.Measured(s.DefaultStirRate(), "default stir rate")
	}
	w.RouteTable = generichttp.RouteTable{
		{Method: http.MethodPost, Path: "/initialize"}:          generichttp.Do(s.Initialize),
		{Method: http.MethodPost, Path: "/deinitialize"}:        generichttp.Do(s.Deinitialize),
		{Method: http.MethodGet, Path: "/name"}:                 generichttp.GetString(s.Name),
		{Method: http.MethodGet, Path: "/temperature"}:          generichttp.GetFloat(s.Temperature),
		{Method: http.MethodPost, Path: "/temperature"}:         generichttp.SetFloat(s.ChangeTemperature),
		{Method: http.MethodPost, Path: "/temperature/default"}: generichttp.Do(s.ChangeToDefaultTemperature),
		{Method: http.MethodGet, Path: "/default-temperature"}:  generichttp.GetFloat(defTemp),
		{Method: http.MethodPost, Path: "/default-temperature"}: generichttp.SetFloat(s.SetDefaultTemperature),
		{Method: http.MethodPost, Path: "/stop-heating"}:        generichttp.Do(s.StopHeating),
		{Method: http.MethodGet, Path: "/stir-rate"}:            generichttp.GetFloat(s.StirRate),
		{Method: http.MethodPost, Path: "/stir-rate"}:           generichttp.SetFloat(s.ChangeStirRate),
		{Method: http.MethodPost, Path: "/stir-rate/default"}:   generichttp.Do(s.ChangeToDefaultStirRate),
		{Method: http.MethodGet, Path: "/default-stir-rate"}:    generichttp.GetFloat(defRate),
		{Method: http.MethodPost, Path: "/default-stir-rate"}:   generichttp.SetFloat(s.SetDefaultStirRate),
		{Method: http.MethodPost, Path: "/stop-stirring"}:       generichttp.Do(s.StopStirring),
	}
	return w
}

// RT satisfies generichttp.HTTPer
func (h HTTPWrapper) RT() generichttp.RouteTable {
	return h.RouteTable
}
