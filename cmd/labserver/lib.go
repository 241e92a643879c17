package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-yaml/yaml"
	"github.com/mitchellh/mapstructure"

	"github.com/sdlab/labdev/comm"
	"github.com/sdlab/labdev/generichttp"
	"github.com/sdlab/labdev/generichttp/motion"
	"github.com/sdlab/labdev/ika"
	"github.com/sdlab/labdev/newport"
	"github.com/sdlab/labdev/sciencetech"
	"github.com/sdlab/labdev/server/middleware/locker"
	"github.com/sdlab/labdev/util"
)

// ObjSetup holds the typical triplet of args for a New<device> call, plus the
// line settings of its transport.  Serial, Backend, Baud, and Timeout need not
// be populated in the config file; each type has its own defaults
type ObjSetup struct {
	// Addr holds the network or filesystem address of the remote device,
	// e.g. 192.168.100.123:2006 for a device connected to port 6
	// on a digi portserver, or /dev/ttyS4 for an RS232 device on a serial cable
	Addr string `koanf:"Addr" yaml:"Addr"`

	// Endpoint is the full path the routes from this device will be served on
	// ex. Endpoint="/lab/esp" will produce routes of /lab/esp/axis/1/pos, etc.
	Endpoint string `koanf:"Endpoint" yaml:"Endpoint"`

	// Serial determines if the connection is serial/RS232 (True) or TCP (False)
	Serial bool `koanf:"Serial" yaml:"Serial"`

	// Backend is the serial implementation, tarm or bugst
	Backend string `koanf:"Backend" yaml:"Backend,omitempty"`

	Baud    int           `koanf:"Baud" yaml:"Baud,omitempty"`
	Timeout time.Duration `koanf:"Timeout" yaml:"Timeout,omitempty"`

	// Type is the "type" of the object, e.g. ESP301
	Type string `koanf:"Type" yaml:"Type"`

	// Args holds any arguments to pass into the constructor for the object
	Args map[string]interface{} `koanf:"Args" yaml:"Args"`
}

// Config is a struct that holds the initialization parameters for various
// HTTP adapted devices.  It is to be populated by a koanf unmarshal call.
type Config struct {
	// Addr is the address to listen at
	Addr string `koanf:"Addr" yaml:"Addr"`

	// Mock swaps every transport for an in-memory simulator
	Mock bool `koanf:"Mock" yaml:"Mock"`

	// Nodes is the list of nodes to set up
	Nodes []ObjSetup `koanf:"Nodes" yaml:"Nodes"`
}

// ESPArgs are the Args understood by esp301 nodes
type ESPArgs struct {
	Axes         map[int]newport.AxisConfig
	PollInterval time.Duration
	MaxWait      time.Duration

	// Limits are software position limits per axis
	Limits map[int]util.Limiter
}

// PSArgs are the Args understood by 69907 nodes
type PSArgs struct {
	DefaultLimit float64
	Limits       util.Limiter
}

// LampArgs are the Args understood by sciencetech nodes
type LampArgs struct {
	Settle  time.Duration
	Current float64
}

// StirrerArgs are the Args understood by ika nodes.  DefaultTemperature is a
// pointer because 0 C is a valid default
type StirrerArgs struct {
	DefaultTemperature *float64
	DefaultStirRate    float64
	Settle             time.Duration
}

// decodeHook lets config files say 100ms for durations and mm for units
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc())
}

// decodeArgs decodes a node's Args (or a whole config file) into out, a
// pointer to one of the *Args types or a Config
func decodeArgs(args map[string]interface{}, out interface{}) error {
	if args == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       decodeHook(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(args)
}

// LoadYaml converts a (path to a) yaml file into a Config struct.  The file
// is decoded generically and then through the same hooks as Args, so
// Timeout: 2s works as it does under koanf
func LoadYaml(path string) (Config, error) {
	cfg := Config{}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	raw := map[string]interface{}{}
	if err = yaml.NewDecoder(f).Decode(&raw); err != nil {
		return cfg, err
	}
	err = decodeArgs(raw, &cfg)
	return cfg, err
}

// transport returns a simulator when mocking, otherwise a RemoteDevice with
// the node's line settings laid over the type's.  Failing to open is logged,
// not fatal; the driver guards report NotConnected until the port comes back
func transport(node ObjSetup, base comm.Config) comm.Transport {
	base.Addr = node.Addr
	base.Serial = node.Serial
	if node.Backend != "" {
		base.Backend = node.Backend
	}
	if node.Baud != 0 {
		base.Baud = node.Baud
	}
	if node.Timeout != 0 {
		base.Timeout = node.Timeout
	}
	rd := comm.NewRemoteDevice(base)
	if err := rd.Open(); err != nil {
		log.Printf("%s at %s is not reachable yet: %v", node.Type, node.Addr, err)
	}
	return rd
}

// axesOf returns the axis numbers of m in ascending order
func axesOf(m map[int]newport.AxisConfig) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// node is one device ready to be mounted
type node struct {
	httper     generichttp.HTTPer
	middleware []func(http.Handler) http.Handler
	axisLocker bool
}

// espNode wraps esp for HTTP with software position limits
func espNode(esp *newport.ESP301, limits map[int]util.Limiter) node {
	limiter := &motion.LimitMiddleware{Limits: limits, Mov: esp}
	n := node{httper: newport.NewESP301HTTPWrapper(esp), axisLocker: true}
	n.middleware = append(n.middleware, limiter.Check)
	limiter.Inject(n.httper)
	return n
}

// nodeRouter binds the routes of n behind lock.  The lock is the outermost
// middleware, so node middleware that queries the device (the position
// limits of a relative move) only runs while the request holds the device
func nodeRouter(n node, lock locker.ManipulableLock) chi.Router {
	r := chi.NewRouter()
	r.Use(lock.Check)
	r.Use(n.middleware...)
	n.httper.RT().Bind(r)
	return r
}

func buildNode(c Config, setup ObjSetup) (node, error) {
	var n node
	typ := strings.ToLower(setup.Type)
	switch typ {
	case "esp", "esp300", "esp301":
		args := ESPArgs{}
		if err := decodeArgs(setup.Args, &args); err != nil {
			return n, fmt.Errorf("decoding esp301 args: %w", err)
		}
		cfg := newport.DefaultESP301Config()
		if len(args.Axes) > 0 {
			cfg.Axes = args.Axes
		}
		if args.PollInterval != 0 {
			cfg.PollInterval = args.PollInterval
		}
		cfg.MaxWait = args.MaxWait
		var t comm.Transport
		if c.Mock {
			t = newport.NewMockESP301(axesOf(cfg.Axes)...)
		} else {
			t = transport(setup, comm.Config{Baud: 921600})
		}
		n = espNode(newport.NewESP301(t, cfg), args.Limits)

	case "69907", "ps69907", "oriel":
		args := PSArgs{}
		if err := decodeArgs(setup.Args, &args); err != nil {
			return n, fmt.Errorf("decoding 69907 args: %w", err)
		}
		var t comm.Transport
		if c.Mock {
			t = newport.NewPS69907Sim()
		} else {
			t = transport(setup, comm.Config{Baud: 9600})
		}
		ps := newport.NewPS69907(t, newport.PS69907Config{DefaultLimit: args.DefaultLimit, Limits: args.Limits})
		n.httper = newport.NewPS69907HTTPWrapper(ps)

	case "sciencetech", "arc-lamp":
		args := LampArgs{}
		if err := decodeArgs(setup.Args, &args); err != nil {
			return n, fmt.Errorf("decoding sciencetech args: %w", err)
		}
		var t comm.Transport
		if c.Mock {
			t = sciencetech.NewSim()
		} else {
			t = transport(setup, comm.Config{Baud: 9600})
		}
		lamp := sciencetech.NewLamp(t, sciencetech.Config{Settle: args.Settle, Current: args.Current})
		n.httper = sciencetech.NewHTTPWrapper(lamp)

	case "ika", "stirrer", "cmag":
		args := StirrerArgs{}
		if err := decodeArgs(setup.Args, &args); err != nil {
			return n, fmt.Errorf("decoding ika args: %w", err)
		}
		var t comm.Transport
		if c.Mock {
			t = ika.NewSim()
		} else {
			t = transport(setup, comm.Config{Baud: 9600, DataBits: 7, Parity: "E", Terminators: comm.NAMURTerminators})
		}
		cfg := ika.DefaultConfig()
		if args.DefaultTemperature != nil {
			cfg.DefaultTemperature = *args.DefaultTemperature
		}
		cfg.DefaultStirRate = args.DefaultStirRate
		cfg.Settle = args.Settle
		s := ika.NewStirrer(t, cfg)
		n.httper = ika.NewHTTPWrapper(s)

	default:
		return n, fmt.Errorf("type %s not understood", typ)
	}
	return n, nil
}

// BuildMux constructs a chi mux with one submux per node.  The mux serves a
// special route, /endpoints, which returns a map of node stem to its routes
// as JSON.
func BuildMux(c Config) (chi.Router, error) {
	// make the root handler
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	supergraph := map[string][]string{}

	// for every node specified, build a submux
	for _, setup := range c.Nodes {
		n, err := buildNode(c, setup)
		if err != nil {
			return nil, err
		}
		// prepare the URL, "lab/esp" => "/lab/esp"
		hndlS := generichttp.SubMuxSanitize(setup.Endpoint)
		if _, dup := supergraph[hndlS]; dup {
			return nil, fmt.Errorf("endpoint %s is used by more than one node", hndlS)
		}

		// add a lock interface for this node
		var lock locker.ManipulableLock
		if n.axisLocker {
			lock = locker.NewAL()
		} else {
			lock = locker.New()
		}
		locker.Inject(n.httper, lock)

		// add the endpoints to the graph
		supergraph[hndlS] = n.httper.RT().Endpoints()

		// bind to the mux
		root.Mount(hndlS, nodeRouter(n, lock))
	}
	root.Get("/endpoints", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		err := json.NewEncoder(w).Encode(supergraph)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return root, nil
}
