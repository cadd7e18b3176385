package main

import (
	"flag"
	"net/http"
	"time"

	"github.com/mastercactapus/grblhub/grbl"
	"github.com/mastercactapus/grblhub/grbl/sim"
	"github.com/mastercactapus/grblhub/hub"
	"github.com/mastercactapus/grblhub/logger"
	"github.com/mastercactapus/grblhub/registry"
	"github.com/mastercactapus/grblhub/spjs"
	"github.com/mastercactapus/grblhub/transport"
)

// simPort is the port name served by the built-in simulator.
const simPort = "sim"

func main() {
	port := flag.String("port", "", "Port path (or name if using SPJS). Use 'sim' for the simulator.")
	baud := flag.Int("baud", transport.DefaultBaud, "Serial baud rate.")
	spjsURL := flag.String("spjs", "", "Websocket URL of the SPJS server to use.")
	addr := flag.String("addr", ":9091", "Address to bind the API server to.")
	firmware := flag.String("firmware", hub.DefaultFirmware, "Required firmware version prefix.")
	params := flag.Int("params", hub.DefaultParameterCount, "Number of firmware settings.")
	longTimeout := flag.Duration("long-timeout", grbl.DefaultLongTimeout, "Answer timeout for '$' and '?' commands.")
	shortTimeout := flag.Duration("short-timeout", grbl.DefaultShortTimeout, "Answer timeout for other commands.")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error).")
	flag.Parse()

	lvl, err := logger.ParseLevel(*logLevel)
	if err != nil {
		logger.GetLogger().Fatal("bad log level", "err", err)
	}
	log := logger.NewSlog(nil, lvl)
	logger.SetLogger(log)

	var sp *spjs.Client
	if *spjsURL != "" {
		sp = spjs.NewClient(*spjsURL, log)
		defer sp.Close()
	}

	o := &opener{sp: sp, baud: *baud, board: sim.New()}
	reg := registry.New(o.open, log)
	defer reg.Close()

	h := hub.New(reg,
		hub.WithFirmware(*firmware),
		hub.WithParameterCount(*params),
		hub.WithLogger(log),
		hub.WithSessionOptions(
			grbl.WithLongTimeout(*longTimeout),
			grbl.WithShortTimeout(*shortTimeout),
		),
	)
	stage := h.Stage(hub.StageDevice)

	if *port != "" {
		err = h.SetPort(*port)
		if err == nil {
			err = stage.Initialize()
		}
		if err != nil {
			code, msg := hub.Code(err)
			log.Error("startup port failed", "port", *port, "code", code, "msg", msg, "err", err)
		}
	}

	a := newAPI(h, stage, o.ports, log)
	defer a.Close()

	srv := &http.Server{
		Addr:              *addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "*")
			log.Debug("request", "method", req.Method, "path", req.URL.Path, "remote", req.RemoteAddr)
			a.ServeHTTP(w, req)
		}),
	}
	log.Info("listening", "addr", *addr)
	err = srv.ListenAndServe()
	if err != nil {
		log.Fatal("serve", "err", err)
	}
}
