package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/mitchellh/mapstructure"

	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "labserver.yml"
	k              = koanf.New(".")
)

func setupconfig() {
	k.Load(structs.Provider(Config{
		Addr:  ":8000",
		Nodes: []ObjSetup{}}, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

// unmarshal decodes the loaded config, accepting "100ms" style durations
func unmarshal() (Config, error) {
	c := Config{}
	err := k.UnmarshalWithConf("", &c, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       decodeHook(),
			WeaklyTypedInput: true,
			Result:           &c,
		},
	})
	return c, err
}

func root() {
	str := `labserver communicates with serial lab instruments and exposes an HTTP interface to them
This enables a server-client architecture, and the clients can leverage the
excellent HTTP libraries for any programming language.

Usage:
	labserver <command>

Commands:
	run
	help
	mkconf
	conf [file.yml]
	version`
	fmt.Println(str)
}

func help() {
	str := `labserver is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

No two endpoints can have the same URL.

URLs may look like any variation between "lab/esp" or "/lab/esp/*", the leading
slash is added and the trailing slash and * are removed by the server.

Set Mock: true to serve every node from an in-memory simulator.

Each node may set Serial (true for a local port, false for a terminal server),
Backend ("tarm" or "bugst"), Baud, and Timeout (e.g. "2s").

Hardware and matching "type" fields, case insensitive, alphabetical by vendor:
- IKA
	> C-MAG HS hotplate stirrers "ika", "stirrer", "cmag"
	  Args: DefaultTemperature, DefaultStirRate, Settle
- Newport
	> ESP300 / ESP301 "esp", "esp300", "esp301"
	  Args: Axes (per axis DefaultSpeed, MaxSpeed, Unit), PollInterval, MaxWait,
	        Limits (per axis Min, Max)
	> 69907 arc lamp supply "69907", "ps69907", "oriel"
	  Args: DefaultLimit, Limits (Min, Max)
- Sciencetech
	> arc lamp controllers "sciencetech", "arc-lamp"
	  Args: Settle, Current`
	fmt.Println(str)
}

func mkconf() {
	c, err := unmarshal()
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

// printconf prints the effective config, or with a path, the config that
// file would produce
func printconf(args []string) {
	var (
		c   Config
		err error
	)
	if len(args) > 0 {
		c, err = LoadYaml(args[0])
	} else {
		c, err = unmarshal()
	}
	if err != nil {
		log.Fatal(err)
	}
	err = yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("labserver version %v\n", Version)
}

func run() {
	c, err := unmarshal()
	if err != nil {
		log.Fatal(err)
	}
	if len(c.Nodes) == 0 {
		log.Fatal("no nodes configured, see labserver help")
	}
	mux, err := BuildMux(c)
	if err != nil {
		log.Fatal(err)
	}
	log.Println("now listening for requests at ", c.Addr)
	log.Fatal(http.ListenAndServe(c.Addr, mux))
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf(args[2:])
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
