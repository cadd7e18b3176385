package main

import (
	"encoding/json"
	"errors"
	"io"
	stdlog "log"
	"net/http"
	"strconv"
	"strings"

	sse "github.com/alexandrevicenzi/go-sse"
	"github.com/gorilla/mux"

	"github.com/mastercactapus/grblhub/grbl"
	"github.com/mastercactapus/grblhub/hub"
	"github.com/mastercactapus/grblhub/logger"
	"github.com/mastercactapus/grblhub/motion"
)

const stateChannel = "/events/state"

type api struct {
	http.Handler
	h     *hub.Hub
	stage *hub.Stage
	ports func() ([]string, error)
	sse   *sse.Server
	log   logger.Logger
}

type hubInfo struct {
	hub.State
	Stats grbl.Stats `json:"stats"`
}

type stageInfo struct {
	Busy      bool    `json:"busy"`
	X         int64   `json:"x"`
	Y         int64   `json:"y"`
	Code      int     `json:"code"`
	Message   string  `json:"message,omitempty"`
	MaxStepsX int64   `json:"maxStepsX"`
	MaxStepsY int64   `json:"maxStepsY"`
	StepSize  float64 `json:"stepSizeUm"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func newAPI(h *hub.Hub, stage *hub.Stage, ports func() ([]string, error), log logger.Logger) *api {
	r := mux.NewRouter()

	a := &api{
		Handler: r,
		h:       h,
		stage:   stage,
		ports:   ports,
		log:     log,
		sse: sse.NewServer(&sse.Options{
			Logger: stdlog.New(io.Discard, "", 0),
		}),
	}

	r.HandleFunc("/api/ports", a.listPorts).Methods("GET")
	r.HandleFunc("/api/hub", a.getHub).Methods("GET")
	r.HandleFunc("/api/hub/port", a.setPort).Methods("PUT")
	r.HandleFunc("/api/hub/status", a.getStatus).Methods("GET")
	r.HandleFunc("/api/hub/parameters", a.getParameters).Methods("GET")
	r.HandleFunc("/api/hub/parameters/{index:[0-9]+}", a.setParameter).Methods("PUT")
	r.HandleFunc("/api/hub/command", a.runCommand).Methods("POST")
	r.HandleFunc("/api/hub/command", a.getCommand).Methods("GET")
	r.HandleFunc("/api/stage", a.getStage).Methods("GET")
	r.HandleFunc("/api/stage/move", a.move).Methods("POST")
	r.HandleFunc("/api/stage/home", a.home).Methods("POST")
	r.HandleFunc("/api/stage/stop", a.stop).Methods("POST")
	r.PathPrefix("/events/").Handler(a.sse)

	go func() {
		for state := range h.States() {
			data, err := json.Marshal(state)
			if err != nil {
				log.Error("marshal state", "err", err)
				continue
			}
			a.sse.SendMessage(stateChannel, sse.SimpleMessage(string(data)))
		}
	}()

	return a
}

func (a *api) Close() { a.sse.Shutdown() }

func (a *api) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		a.log.Error("encode", "err", err)
	}
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, motion.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, hub.ErrNoPort), errors.Is(err, hub.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, hub.ErrOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, hub.ErrUnknownPosition):
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}

func (a *api) writeError(w http.ResponseWriter, req *http.Request, err error) {
	code, msg := hub.Code(err)
	a.log.Warn("request failed", "method", req.Method, "path", req.URL.Path, "code", code, "err", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus(err))
	json.NewEncoder(w).Encode(apiError{Code: code, Message: msg, Error: err.Error()})
}

func readBody(req *http.Request) (string, error) {
	data, err := io.ReadAll(io.LimitReader(req.Body, 4096))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (a *api) listPorts(w http.ResponseWriter, req *http.Request) {
	ports, err := a.ports()
	if err != nil {
		a.writeError(w, req, err)
		return
	}
	a.writeJSON(w, ports)
}

func (a *api) getHub(w http.ResponseWriter, req *http.Request) {
	a.writeJSON(w, hubInfo{State: a.h.State(), Stats: a.h.Stats()})
}

func (a *api) setPort(w http.ResponseWriter, req *http.Request) {
	name, err := readBody(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	a.stage.Shutdown()
	err = a.h.SetPort(name)
	if err == nil {
		err = a.stage.Initialize()
	}
	if err != nil {
		a.writeError(w, req, err)
		return
	}
	a.writeJSON(w, hubInfo{State: a.h.State(), Stats: a.h.Stats()})
}

func (a *api) getStatus(w http.ResponseWriter, req *http.Request) {
	_, err := a.h.QueryStatus()
	if err != nil {
		a.writeError(w, req, err)
		return
	}
	a.writeJSON(w, a.h.State())
}

func (a *api) getParameters(w http.ResponseWriter, req *http.Request) {
	params, err := a.h.ReadParameters()
	if err != nil {
		a.writeError(w, req, err)
		return
	}
	a.writeJSON(w, params)
}

func (a *api) setParameter(w http.ResponseWriter, req *http.Request) {
	index, err := strconv.Atoi(mux.Vars(req)["index"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	body, err := readBody(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	value, err := strconv.ParseFloat(body, 64)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = a.h.SetParameter(index, value)
	if err != nil {
		a.writeError(w, req, err)
		return
	}
	a.writeJSON(w, a.h.Parameters())
}

type commandResult struct {
	Result string `json:"result"`
}

func (a *api) runCommand(w http.ResponseWriter, req *http.Request) {
	cmd, err := readBody(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, err := a.h.Command(cmd)
	if err != nil {
		a.writeError(w, req, err)
		return
	}
	a.writeJSON(w, commandResult{Result: result})
}

func (a *api) getCommand(w http.ResponseWriter, req *http.Request) {
	a.writeJSON(w, commandResult{Result: a.h.CommandResult()})
}

func (a *api) getStage(w http.ResponseWriter, req *http.Request) {
	info := stageInfo{
		Busy:     a.stage.Busy(),
		StepSize: a.stage.StepSizeUm(),
	}
	_, info.MaxStepsX, _, info.MaxStepsY = a.stage.StepLimits()

	var err error
	info.X, info.Y, err = a.stage.PositionSteps()
	if err != nil {
		a.writeError(w, req, err)
		return
	}
	info.Code, info.Message = hub.Code(a.stage.LastError())
	a.writeJSON(w, info)
}

func (a *api) move(w http.ResponseWriter, req *http.Request) {
	var err error
	parse := func(param string) (val int64) {
		if err != nil {
			return 0
		}
		val, err = strconv.ParseInt(req.FormValue(param), 10, 64)
		return val
	}
	x := parse("x")
	y := parse("y")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.FormValue("relative") == "1" {
		err = a.stage.SetRelativePositionSteps(x, y)
	} else {
		err = a.stage.SetPositionSteps(x, y)
	}
	if err != nil {
		a.writeError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *api) home(w http.ResponseWriter, req *http.Request) {
	err := a.stage.Home()
	if err != nil {
		a.writeError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *api) stop(w http.ResponseWriter, req *http.Request) {
	err := a.stage.Stop()
	if err != nil {
		a.writeError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
