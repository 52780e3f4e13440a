package httpapi

import (
	"bufio"
	"bytes"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"lensd/pkg/types"
)

func TestMetricsMiddlewareCountsByRoute(t *testing.T) {
	h := NewMux(&mockService{status: types.StatusResponse{State: "ready"}})
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/threads/{id}", http.MethodGet, "200"))
	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/threads/"+id, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status=%d", rec.Code)
		}
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/threads/{id}", http.MethodGet, "200"))
	if after-before != 2 {
		t.Fatalf("expected 2 requests under the route pattern, got %v", after-before)
	}

	mrr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(mrr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !bytes.Contains(mrr.Body.Bytes(), []byte("lensd_http_event_clients")) {
		t.Fatal("event client gauge not exported")
	}
}

func TestEventClientsGaugeFollowsSockets(t *testing.T) {
	svc := &mockService{status: types.StatusResponse{State: "ready"}}
	srv := httptest.NewServer(NewMux(svc))
	defer srv.Close()

	base := testutil.ToFloat64(eventClients)
	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/events", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first types.StatusEvent
	if err := ws.ReadJSON(&first); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if got := testutil.ToFloat64(eventClients); got != base+1 {
		t.Fatalf("gauge=%v while connected, want %v", got, base+1)
	}
	_ = ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(eventClients) != base {
		if time.Now().After(deadline) {
			t.Fatalf("gauge=%v after disconnect, want %v", testutil.ToFloat64(eventClients), base)
		}
		time.Sleep(5 * time.Millisecond)
	}

	// The upgrade is recorded as 101 under the route pattern once the handler returns.
	upgraded := httpRequestsTotal.WithLabelValues("/events", http.MethodGet, "101")
	for testutil.ToFloat64(upgraded) < 1 {
		if time.Now().After(deadline) {
			t.Fatal("expected a 101 sample for /events")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type flushRecorder struct {
	*httptest.ResponseRecorder
	flushes int
}

func (f *flushRecorder) Flush() { f.flushes++ }

func TestStatusRecorderForwardsFlush(t *testing.T) {
	inner := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}
	sr := &statusRecorder{ResponseWriter: inner, status: http.StatusOK}
	sr.Flush()
	sr.Flush()
	if inner.flushes != 2 {
		t.Fatalf("expected 2 forwarded flushes, got %d", inner.flushes)
	}
	// A writer without Flush is tolerated.
	(&statusRecorder{ResponseWriter: httptest.NewRecorder()}).Flush()
}

type hijackRecorder struct {
	*httptest.ResponseRecorder
	conn net.Conn
}

func (h *hijackRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return h.conn, bufio.NewReadWriter(bufio.NewReader(h.conn), bufio.NewWriter(h.conn)), nil
}

func TestStatusRecorderHijack(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sr := &statusRecorder{ResponseWriter: &hijackRecorder{ResponseRecorder: httptest.NewRecorder(), conn: server}, status: http.StatusOK}
	conn, _, err := sr.Hijack()
	if err != nil || conn != server {
		t.Fatalf("hijack: conn=%v err=%v", conn, err)
	}
	if sr.status != http.StatusSwitchingProtocols {
		t.Fatalf("status=%d, want 101", sr.status)
	}

	plain := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	if _, _, err := plain.Hijack(); err == nil {
		t.Fatal("expected an error from a writer that cannot hijack")
	}
	if plain.status != http.StatusOK {
		t.Fatalf("failed hijack must not change the status, got %d", plain.status)
	}
}
