package ingest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newTestHub starts a hub and an HTTP server exposing its upgrade handler.
func newTestHub(t *testing.T) (*WSHub, *httptest.Server) {
	t.Helper()
	hub := NewWSHub()
	go hub.Run()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

// waitForClients polls the hub until it reports n clients or times out.
func waitForClients(t *testing.T, hub *WSHub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d clients, got %d", n, hub.ClientCount())
}

func TestWSHub_BroadcastReachesClient(t *testing.T) {
	hub, srv := newTestHub(t)

	conn := dialHub(t, srv)
	defer conn.Close()
	waitForClients(t, hub, 1)

	hub.Broadcast(WSMessage{Type: "loss_scored", EventID: "evt-1", PainLevel: "SEVERE"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if msg.EventID != "evt-1" || msg.PainLevel != "SEVERE" {
		t.Errorf("unexpected message: %+v", msg)
	}
}

// A client that disappears mid-stream must be removed without
// disturbing concurrent broadcasts to the surviving clients.
func TestWSHub_DeadClientRemoved(t *testing.T) {
	hub, srv := newTestHub(t)

	alive := dialHub(t, srv)
	defer alive.Close()
	dead := dialHub(t, srv)
	waitForClients(t, hub, 2)

	dead.Close()

	// Broadcast from several goroutines while the hub notices the dead
	// connection; writes to it fail and it gets evicted.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				hub.Broadcast(WSMessage{Type: "loss_scored", EventID: "evt-x"})
				time.Sleep(5 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	waitForClients(t, hub, 1)

	// Surviving client still receives broadcasts.
	hub.Broadcast(WSMessage{Type: "loss_scored", EventID: "evt-final"})
	alive.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg WSMessage
		if err := alive.ReadJSON(&msg); err != nil {
			t.Fatalf("surviving client read failed: %v", err)
		}
		if msg.EventID == "evt-final" {
			return
		}
	}
}
