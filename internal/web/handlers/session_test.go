package handlers

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/session"
)

func TestSessionHandler_StartStop(t *testing.T) {
	source := camera.NewDirSource(writeFrames(t, blue), true)
	env := newTestEnv(t, source)
	handler := NewSessionHandler(t.Context(), env.runner)

	recorder := httptest.NewRecorder()
	handler.Start(recorder, httptest.NewRequest("POST", "/api/v1/session/start", nil))
	assertStatusCode(t, recorder, http.StatusOK)

	var status session.Status
	parseJSONResponse(t, recorder, &status)
	if status.State != session.StateRunning || status.Message != session.MessageActive {
		t.Errorf("unexpected status after start: %+v", status)
	}

	recorder = httptest.NewRecorder()
	handler.Start(recorder, httptest.NewRequest("POST", "/api/v1/session/start", nil))
	assertStatusCode(t, recorder, http.StatusConflict)

	recorder = httptest.NewRecorder()
	handler.Stop(recorder, httptest.NewRequest("POST", "/api/v1/session/stop", nil))
	assertStatusCode(t, recorder, http.StatusOK)
	parseJSONResponse(t, recorder, &status)
	if status.State != session.StateStopped || status.Message != session.MessageStopped {
		t.Errorf("unexpected status after stop: %+v", status)
	}

	recorder = httptest.NewRecorder()
	handler.Stop(recorder, httptest.NewRequest("POST", "/api/v1/session/stop", nil))
	assertStatusCode(t, recorder, http.StatusConflict)
}

func TestSessionHandler_StartCameraFailure(t *testing.T) {
	source := camera.NewDirSource(t.TempDir(), false) // no frames
	env := newTestEnv(t, source)
	handler := NewSessionHandler(t.Context(), env.runner)

	recorder := httptest.NewRecorder()
	handler.Start(recorder, httptest.NewRequest("POST", "/api/v1/session/start", nil))
	assertStatusCode(t, recorder, http.StatusServiceUnavailable)

	recorder = httptest.NewRecorder()
	handler.Status(recorder, httptest.NewRequest("GET", "/api/v1/session", nil))
	var status session.Status
	parseJSONResponse(t, recorder, &status)
	if status.State != session.StateError || status.Message != session.MessageError {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestSessionHandler_StatusIdle(t *testing.T) {
	env := newTestEnv(t, nil)
	handler := NewSessionHandler(t.Context(), env.runner)

	recorder := httptest.NewRecorder()
	handler.Status(recorder, httptest.NewRequest("GET", "/api/v1/session", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var status session.Status
	parseJSONResponse(t, recorder, &status)
	if status.State != session.StateIdle {
		t.Errorf("expected idle, got %+v", status)
	}
}

func TestSessionHandler_Frame(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "Alice", red)
	handler := NewSessionHandler(t.Context(), env.runner)

	recorder := httptest.NewRecorder()
	handler.Frame(recorder, httptest.NewRequest("POST", "/api/v1/session/frame", bytes.NewReader(solidPNG(t, red))))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp struct {
		Labels []struct {
			Label string `json:"label"`
		} `json:"labels"`
		Identified []string `json:"identified"`
	}
	parseJSONResponse(t, recorder, &resp)
	if len(resp.Identified) != 1 || resp.Identified[0] != "Alice" {
		t.Errorf("expected Alice identified, got %+v", resp)
	}
	if got := env.ledger.Records(); len(got) != 1 || got[0] != (ledger.Record{Name: "Alice", Date: "2024-01-01", Time: "09:00:00"}) {
		t.Errorf("unexpected ledger: %+v", got)
	}

	// An unknown face is labeled but not recorded.
	recorder = httptest.NewRecorder()
	handler.Frame(recorder, httptest.NewRequest("POST", "/api/v1/session/frame", bytes.NewReader(solidPNG(t, blue))))
	assertStatusCode(t, recorder, http.StatusOK)
	parseJSONResponse(t, recorder, &resp)
	if len(resp.Labels) != 1 || resp.Labels[0].Label != "Unknown" {
		t.Errorf("expected one Unknown label, got %+v", resp.Labels)
	}
	if env.ledger.Count() != 1 {
		t.Errorf("expected ledger unchanged, got %d records", env.ledger.Count())
	}
}

func TestSessionHandler_FrameErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	handler := NewSessionHandler(t.Context(), env.runner)

	recorder := httptest.NewRecorder()
	handler.Frame(recorder, httptest.NewRequest("POST", "/api/v1/session/frame", nil))
	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "empty frame")

	recorder = httptest.NewRecorder()
	handler.Frame(recorder, httptest.NewRequest("POST", "/api/v1/session/frame", strings.NewReader("not an image")))
	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestSessionHandler_FrameMarkFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "Alice", red)
	env.store.SetAppendError(&ledger.IOError{Op: "append", Err: context.DeadlineExceeded})
	handler := NewSessionHandler(t.Context(), env.runner)

	recorder := httptest.NewRecorder()
	handler.Frame(recorder, httptest.NewRequest("POST", "/api/v1/session/frame", bytes.NewReader(solidPNG(t, red))))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp map[string]any
	parseJSONResponse(t, recorder, &resp)
	if resp["error"] == nil {
		t.Error("expected the mark failure to be reported")
	}
	if env.ledger.Count() != 0 {
		t.Errorf("expected no records, got %d", env.ledger.Count())
	}
}

func TestSessionHandler_Events(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "Alice", red)
	handler := NewSessionHandler(t.Context(), env.runner)

	server := httptest.NewServer(http.HandlerFunc(handler.Events))
	defer server.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", server.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %s", ct)
	}

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		t.Helper()
		var event, data string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("failed to read event: %v", err)
			}
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && event != "":
				return event, data
			}
		}
	}

	if event, _ := readEvent(); event != "status" {
		t.Fatalf("expected initial status event, got %s", event)
	}

	if _, err := env.runner.ProcessEncoded(context.Background(), solidPNG(t, red)); err != nil {
		t.Fatalf("failed to process frame: %v", err)
	}

	event, data := readEvent()
	if event != "recognized" {
		t.Fatalf("expected recognized event, got %s", event)
	}
	if !strings.Contains(data, `"names":["Alice"]`) {
		t.Errorf("expected Alice in event data, got %s", data)
	}
}
