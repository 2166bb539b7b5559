package ws

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/syndb/syndb/rpc/common"
)

// echoServer upgrades every request and echoes binary frames back verbatim,
// so clients get their own payload correlated to their request ID.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		var writeMu sync.Mutex
		for {
			msgType, frame, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType != websocket.BinaryMessage {
				continue
			}
			writeMu.Lock()
			err = conn.WriteMessage(websocket.BinaryMessage, frame)
			writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}))
}

func TestWSClientConcurrentSends(t *testing.T) {
	ts := echoServer(t)
	defer ts.Close()

	transport := NewWSClientTransport()
	err := transport.Connect(common.ClientConfig{
		Endpoints:     []string{"ws" + strings.TrimPrefix(ts.URL, "http")},
		TimeoutSecond: 5,
	})
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer transport.Close()

	// Hammer one connection from many goroutines. Each Send sets the write
	// deadline and writes a frame; under the race detector this fails if the
	// deadline is not taken under the same lock as the write.
	const goroutines = 8
	const requestsPerGoroutine = 25

	var wg sync.WaitGroup
	errCh := make(chan error, goroutines*requestsPerGoroutine)

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < requestsPerGoroutine; i++ {
				payload := []byte(fmt.Sprintf("req-%d-%d", g, i))
				resp, err := transport.Send(100, payload)
				if err != nil {
					errCh <- fmt.Errorf("send %d/%d: %v", g, i, err)
					return
				}
				if string(resp) != string(payload) {
					errCh <- fmt.Errorf("send %d/%d: got %q, want %q", g, i, resp, payload)
					return
				}
			}
		}(g)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Error(err)
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "localhost:8080", want: "ws://localhost:8080/rpc"},
		{in: "ws://localhost:8080", want: "ws://localhost:8080/rpc"},
		{in: "wss://example.com/custom", want: "wss://example.com/custom"},
		{in: "http://localhost:8080", wantErr: true},
	}

	for _, tc := range tests {
		got, err := normalizeEndpoint(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("normalizeEndpoint(%q): expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("normalizeEndpoint(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("normalizeEndpoint(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
