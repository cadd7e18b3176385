package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastercactapus/grblhub/coord"
	"github.com/mastercactapus/grblhub/grbl/sim"
	"github.com/mastercactapus/grblhub/hub"
	"github.com/mastercactapus/grblhub/logger"
	"github.com/mastercactapus/grblhub/registry"
)

func newTestAPI(t *testing.T) (*httptest.Server, *sim.Board) {
	t.Helper()
	log := logger.NewSlog(nil, logger.ErrorLevel)
	o := &opener{board: sim.New()}
	reg := registry.New(o.open, log)
	h := hub.New(reg, hub.WithLogger(log))
	a := newAPI(h, h.Stage(hub.StageDevice), func() ([]string, error) { return []string{simPort}, nil }, log)

	srv := httptest.NewServer(a)
	t.Cleanup(func() {
		srv.Close()
		a.Close()
		reg.Close()
	})
	return srv, o.board
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if method == "POST" && strings.Contains(body, "=") {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestAPI_NoPort(t *testing.T) {
	srv, _ := newTestAPI(t)

	resp := do(t, srv, "GET", "/api/hub/status", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var e apiError
	decode(t, resp, &e)
	assert.Equal(t, hub.CodeNoPortSet, e.Code)

	resp = do(t, srv, "GET", "/api/ports", "")
	var ports []string
	decode(t, resp, &ports)
	assert.Equal(t, []string{"sim"}, ports)

	resp = do(t, srv, "PUT", "/api/hub/port", "COM1")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	decode(t, resp, &e)
	assert.Equal(t, hub.CodePortOpenFailed, e.Code)
}

func TestAPI_Hub(t *testing.T) {
	srv, board := newTestAPI(t)

	resp := do(t, srv, "PUT", "/api/hub/port", "sim\n")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var info hubInfo
	decode(t, resp, &info)
	assert.True(t, info.Ready)
	assert.Equal(t, "sim", info.Port)
	assert.Equal(t, "Grbl 0.8c ", info.Version)
	assert.Len(t, info.Parameters, hub.DefaultParameterCount)

	board.SetState("Run")
	resp = do(t, srv, "GET", "/api/hub/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var state hub.State
	decode(t, resp, &state)
	assert.Equal(t, "Run", state.Status)

	resp = do(t, srv, "PUT", "/api/hub/parameters/4", "300")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var params []float64
	decode(t, resp, &params)
	assert.Equal(t, 300.0, params[4])
	assert.Equal(t, 300.0, board.Parameter(4))

	resp = do(t, srv, "PUT", "/api/hub/parameters/4", "fast")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, "POST", "/api/hub/command", "G02X1")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	var e apiError
	decode(t, resp, &e)
	assert.Equal(t, hub.CodeRejected, e.Code)

	resp = do(t, srv, "GET", "/api/hub/command", "")
	var res commandResult
	decode(t, resp, &res)
	assert.Equal(t, hub.ErrorReply, res.Result)

	resp = do(t, srv, "POST", "/api/hub/command", "M108P1.000Q0")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &res)
	assert.Equal(t, "ok", res.Result)
}

func TestAPI_Stage(t *testing.T) {
	srv, board := newTestAPI(t)
	resp := do(t, srv, "PUT", "/api/hub/port", "sim")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stage := func() stageInfo {
		var info stageInfo
		decode(t, do(t, srv, "GET", "/api/stage", ""), &info)
		return info
	}
	idle := func() bool { return !stage().Busy }

	resp = do(t, srv, "POST", "/api/stage/home", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Eventually(t, idle, time.Second, 5*time.Millisecond)

	form := url.Values{"x": {"1000"}, "y": {"2000"}}
	resp = do(t, srv, "POST", "/api/stage/move", form.Encode())
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Eventually(t, idle, time.Second, 5*time.Millisecond)
	assert.Equal(t, coord.Point{X: 1000, Y: 2000}, board.MPos())

	form = url.Values{"x": {"-500"}, "y": {"0"}, "relative": {"1"}}
	resp = do(t, srv, "POST", "/api/stage/move", form.Encode())
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Eventually(t, idle, time.Second, 5*time.Millisecond)

	resp = do(t, srv, "GET", "/api/hub/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	info := stage()
	assert.Equal(t, int64(500), info.X)
	assert.Equal(t, int64(2000), info.Y)
	assert.Equal(t, hub.CodeOK, info.Code)
	assert.Equal(t, int64(hub.MaxStepsX), info.MaxStepsX)

	form = url.Values{"x": {"-1"}, "y": {"0"}}
	resp = do(t, srv, "POST", "/api/stage/move", form.Encode())
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	form = url.Values{"x": {"one"}, "y": {"0"}}
	resp = do(t, srv, "POST", "/api/stage/move", form.Encode())
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	board.SetMoveDelay(100 * time.Millisecond)
	form = url.Values{"x": {"1"}, "y": {"1"}}
	resp = do(t, srv, "POST", "/api/stage/move", form.Encode())
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp = do(t, srv, "POST", "/api/stage/move", form.Encode())
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var e apiError
	decode(t, resp, &e)
	assert.Equal(t, hub.CodeBusy, e.Code)

	resp = do(t, srv, "POST", "/api/stage/stop", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Eventually(t, idle, time.Second, 5*time.Millisecond)
}
