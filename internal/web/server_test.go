package web

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/bikedash/internal/logic"
	"github.com/sweeney/bikedash/internal/status"
)

func newTestServer(t *testing.T, logs io.Writer) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Now().Add(-time.Hour)
	tr := status.NewTracker("boot-42", start, status.Config{
		WheelRadius:    0.337,
		PulsesPerRev:   1,
		DebounceMs:     35,
		SleepTimeoutMs: 10000,
		TickMs:         1000,
		Broker:         "tcp://192.168.1.200:1883",
		HTTPAddr:       ":8080",
	})
	srv := New(":0", tr, zerolog.New(logs))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, io.Discard)
	tr.Update(logic.SpeedSample{Speed: 18.04, Pulses: 2}, 42, true,
		logic.InactivityState{Phase: logic.PhaseActive, Remaining: 10 * time.Second})
	tr.SetMQTTConnected(true)

	resp, body := get(t, ts.URL+"/index.json")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var sj status.StatusJSON
	require.NoError(t, json.Unmarshal([]byte(body), &sj))
	assert.Equal(t, "boot-42", sj.Status.BootID)
	assert.Equal(t, 18.0, sj.Status.SpeedKmh)
	assert.Equal(t, 42, sj.Status.Brightness)
	assert.Equal(t, "ON", sj.Status.Lights)
	assert.Equal(t, "ACTIVE", sj.Status.Phase)
	assert.Equal(t, int64(10), sj.Status.SleepInSeconds)
	assert.True(t, sj.Status.MQTT.Connected)
	assert.GreaterOrEqual(t, sj.Status.UptimeSeconds, int64(3600))
}

func TestHTMLEndpoints(t *testing.T) {
	ts, tr := newTestServer(t, io.Discard)
	tr.Update(logic.SpeedSample{Speed: 23.46}, 80, false,
		logic.InactivityState{Phase: logic.PhasePending, Idle: 3 * time.Second, Remaining: 7 * time.Second})
	tr.RecordSleep(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))

	for _, path := range []string{"/", "/index.html"} {
		resp, body := get(t, ts.URL+path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"), path)
		assert.Contains(t, body, "Bike Dashboard", path)
		assert.Contains(t, body, "23.5 km/h", path)
		assert.Contains(t, body, "80%", path)
		assert.Contains(t, body, "PENDING", path)
		assert.Contains(t, body, "7s", path)
		assert.Contains(t, body, "2026-05-01T09:00:00Z", path)
		assert.Contains(t, body, "boot-42", path)
		assert.NotContains(t, body, "Last wake", path)
	}
}

func TestHTMLBeforeFirstTick(t *testing.T) {
	ts, _ := newTestServer(t, io.Discard)
	_, body := get(t, ts.URL+"/")
	assert.Contains(t, body, "UNKNOWN")
	assert.Contains(t, body, " 0.0 km/h")
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t, io.Discard)
	resp, _ := get(t, ts.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t, io.Discard)
	resp, err := http.Post(ts.URL+"/index.json", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t, io.Discard)

	var sj status.StatusJSON
	_, body := get(t, ts.URL+"/index.json")
	require.NoError(t, json.Unmarshal([]byte(body), &sj))
	assert.Equal(t, 0, sj.Status.Sleeps)

	tr.RecordSleep(time.Now())
	_, body = get(t, ts.URL+"/index.json")
	require.NoError(t, json.Unmarshal([]byte(body), &sj))
	assert.Equal(t, 1, sj.Status.Sleeps)
}

// syncBuffer is written by the server goroutine and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAccessLog(t *testing.T) {
	var logs syncBuffer
	ts, _ := newTestServer(t, &logs)
	get(t, ts.URL+"/index.json")

	assert.Contains(t, logs.String(), "GET /index.json")
	assert.Contains(t, logs.String(), `"component":"http"`)
}
