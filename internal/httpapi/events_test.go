package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"lensd/pkg/types"
)

func TestEventsWebSocketStreamsStatus(t *testing.T) {
	svc := &mockService{status: types.StatusResponse{State: "ready", Model: "m1"}, events: make(chan types.StatusEvent, 4)}
	srv := httptest.NewServer(NewMux(svc))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v (resp=%v)", err, resp)
	}
	defer ws.Close()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first types.StatusEvent
	if err := ws.ReadJSON(&first); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if first.Type != "status" || first.Status.Model != "m1" {
		t.Fatalf("unexpected initial event %+v", first)
	}

	svc.events <- types.StatusEvent{Type: "flush", Status: types.StatusResponse{Translation: "Hel"}}
	var next types.StatusEvent
	if err := ws.ReadJSON(&next); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if next.Type != "flush" || next.Status.Translation != "Hel" {
		t.Fatalf("unexpected event %+v", next)
	}
}

func TestCheckOrigin(t *testing.T) {
	defer SetCORSOptions(false, nil, nil, nil)
	r := httptest.NewRequest(http.MethodGet, "http://127.0.0.1:8088/events", nil)
	if !checkOrigin(r) {
		t.Fatal("request without Origin should be accepted")
	}
	r.Header.Set("Origin", "http://127.0.0.1:8088")
	if !checkOrigin(r) {
		t.Fatal("same-host origin should be accepted")
	}
	r.Header.Set("Origin", "http://ui.local:3000")
	if checkOrigin(r) {
		t.Fatal("foreign origin should be rejected without CORS")
	}
	SetCORSOptions(true, []string{"http://ui.local:3000"}, nil, nil)
	if !checkOrigin(r) {
		t.Fatal("configured origin should be accepted")
	}
}
