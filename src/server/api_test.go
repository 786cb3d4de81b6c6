package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lod-engine/src/engine"
	"lod-engine/src/logger"
	"lod-engine/src/metrics"
	"lod-engine/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) (*APIServer, *engine.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger.SetOutput(io.Discard)

	m := metrics.New()
	e, err := engine.New(models.MEngineConfig{PrefetchRatio: 0.2}, nil, m, logger.NewLogger(nil, "test"))
	if err != nil {
		t.Fatal(err)
	}
	e.DefineSeries("s", models.SeriesLine)
	bars := make([]models.MBar, 1000)
	for i := range bars {
		bars[i] = models.MBar{Time: int64(i) * 1000, Value: float64(i % 13)}
	}
	e.SetData("s", bars)
	e.AttachSeries("main", "s", 100)

	cfg := &models.MConfig{Name: "test", Host: "127.0.0.1", Port: 8000, LogLevel: "info"}
	s := NewAPIServer(cfg, e, m, logger.NewLogger(nil, "test"))
	return s, e
}

func do(s *APIServer, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthAndStats(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(s, "GET", "/api/health", "")
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(s, "GET", "/api/stats", "")
	var st models.MRenderStats
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.SeriesCount != 1 || st.TotalPoints != 1000 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestRenderSeries(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(s, "GET", "/api/series/s/render?pane=main", "")
	if rec.Code != 200 {
		t.Fatalf("render: %d %s", rec.Code, rec.Body.String())
	}
	var out models.MDecimatedSeries
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.SeriesID != "s" || out.Len() == 0 || out.Len() > out.MaxPoints {
		t.Fatalf("unexpected output: %d points, budget %d", out.Len(), out.MaxPoints)
	}

	if rec := do(s, "GET", "/api/series/missing/render", ""); rec.Code != 404 {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestNearest(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(s, "GET", "/api/series/s/nearest?t=12400", "")
	var bar models.MBar
	json.Unmarshal(rec.Body.Bytes(), &bar)
	if rec.Code != 200 || bar.Time != 12000 {
		t.Fatalf("nearest: %d %+v", rec.Code, bar)
	}
	if rec := do(s, "GET", "/api/series/s/nearest?t=abc", ""); rec.Code != 400 {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSetVisibleAndReplay(t *testing.T) {
	s, e := newTestServer(t)

	rec := do(s, "POST", "/api/panes/main/visible", `{"start": 100000, "end": 200000, "width_px": 400}`)
	if rec.Code != 200 {
		t.Fatalf("visible: %d %s", rec.Code, rec.Body.String())
	}
	st, _ := e.PaneState("main")
	if st.WidthPx != 400 || st.RenderWindow == nil || st.RenderWindow.Start != 80000 {
		t.Fatalf("unexpected pane state %+v", st)
	}

	if rec := do(s, "POST", "/api/panes/main/visible", `{"start": 5, "end": 1}`); rec.Code != 400 {
		t.Fatalf("expected 400 for an inverted range, got %d", rec.Code)
	}

	rec = do(s, "POST", "/api/replay", `{"cutoff": 150000}`)
	if rec.Code != 200 || e.ReplayCutoff() == nil || *e.ReplayCutoff() != 150000 {
		t.Fatalf("replay: %d %s", rec.Code, rec.Body.String())
	}
	do(s, "POST", "/api/replay", `{"cutoff": null}`)
	if e.ReplayCutoff() != nil {
		t.Fatal("null cutoff should disable replay")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	do(s, "GET", "/api/series/s/render", "")

	rec := do(s, "GET", "/metrics", "")
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), "lod_cache_misses_total 1") {
		t.Fatalf("metrics: %d %s", rec.Code, rec.Body.String())
	}
}

func TestWebSocket_SubscribeAndDiagnostics(t *testing.T) {
	s, _ := newTestServer(t)
	go s.handleWebsockets()
	defer s.Stop()

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	cmd, _ := json.Marshal(models.MSubscribeCommand{Command: "subscribe", Panes: []string{"main"}})
	if err := conn.WriteMessage(websocket.TextMessage, cmd); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame models.MRenderFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatal(err)
	}
	if frame.Type != "FRAME" || frame.PaneID != "main" || len(frame.Series) != 1 {
		t.Fatalf("unexpected frame %+v", frame)
	}

	s.Broadcast(models.MDiagnostic{Code: models.DiagDataWindowIncomplete, Severity: models.SeverityWarn, Timestamp: time.Now()})
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatal(err)
	}
	if frame.Type != "DIAGNOSTIC" || frame.Diagnostic == nil || frame.Diagnostic.Code != models.DiagDataWindowIncomplete {
		t.Fatalf("unexpected diagnostic frame %+v", frame)
	}
}

func TestBroadcast_RejectsUnknownPayload(t *testing.T) {
	s, _ := newTestServer(t)
	s.Broadcast(bytes.NewBufferString("nope"))
	if len(s.broadcast) != 0 {
		t.Fatal("unknown payloads must not be queued")
	}
	s.Broadcast(models.MRenderFrame{Type: "FRAME", PaneID: "main"})
	if len(s.broadcast) != 1 {
		t.Fatal("frame should be queued")
	}
}

func TestClientDrain_CoalescesFramesPerPane(t *testing.T) {
	c := &Client{send: make(chan interface{}, 8)}
	first := models.MRenderFrame{Type: "FRAME", PaneID: "a", Timestamp: 1}
	c.send <- models.MRenderFrame{Type: "DIAGNOSTIC", Timestamp: 2}
	c.send <- models.MRenderFrame{Type: "FRAME", PaneID: "b", Timestamp: 3}
	c.send <- models.MRenderFrame{Type: "FRAME", PaneID: "a", Timestamp: 4}

	batch, open := c.drain(first)
	if !open || len(batch) != 3 {
		t.Fatalf("expected 3 messages on an open channel, got %d (open=%v)", len(batch), open)
	}
	if f := batch[0].(models.MRenderFrame); f.PaneID != "a" || f.Timestamp != 4 {
		t.Fatalf("pane a should carry its newest frame, got %+v", f)
	}

	close(c.send)
	if _, open := c.drain(nil); open {
		t.Fatal("drain should report the closed channel")
	}
}

func TestRemoveSeries(t *testing.T) {
	s, e := newTestServer(t)

	rec := do(s, "DELETE", "/api/series/s", "")
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), `"panes":["main"]`) {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
	if _, ok := e.Snapshot("s"); ok {
		t.Fatal("series should be gone")
	}
	if rec := do(s, "DELETE", "/api/series/s", ""); rec.Code != 404 {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
	if rec := do(s, "GET", "/api/series/s/render", ""); rec.Code != 404 {
		t.Fatalf("expected 404 rendering a removed series, got %d", rec.Code)
	}
}
