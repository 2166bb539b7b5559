package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/syndb/syndb/rpc/common"
	"github.com/syndb/syndb/rpc/transport"
)

// rpcPath is the HTTP path WebSocket connections are upgraded on
const rpcPath = "/rpc"

// defaultWorkersPerConn bounds request concurrency when the server config
// does not specify a worker count
const defaultWorkersPerConn = 16

// NewWSServerTransport creates a new WebSocket server transport
func NewWSServerTransport() transport.IRPCServerTransport {
	return &wsServerTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
		},
	}
}

type wsServerTransport struct {
	handler  transport.ServerHandleFunc
	config   common.ServerConfig
	upgrader websocket.Upgrader
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *wsServerTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *wsServerTransport) Listen(config common.ServerConfig) error {
	t.config = config

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+rpcPath, t.handleUpgrade)

	Logger.Infof("Starting WebSocket server on %s%s", config.Endpoint, rpcPath)

	return http.ListenAndServe(config.Endpoint, mux)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleUpgrade upgrades an HTTP request to a WebSocket connection and serves
// RPC frames on it until the peer disconnects
func (t *wsServerTransport) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		Logger.Errorf("Failed to upgrade connection: %v", err)
		return
	}

	go t.handleConnection(conn)
}

// handleConnection handles incoming requests for one connection
func (t *wsServerTransport) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	// Timeout in seconds
	timeout := time.Duration(t.config.TimeoutSecond) * time.Second

	// Worker bound per connection
	workers := t.config.WorkersPerConn
	if workers <= 0 {
		workers = defaultWorkersPerConn
	}

	// The buffered channel acts as a counting semaphore
	workerSemaphore := make(chan struct{}, workers)

	// Create a wait group to wait for all workers to finish
	var wg sync.WaitGroup

	// WebSocket connections allow a single concurrent writer
	var writeMu sync.Mutex

	// Handler function that processes requests in worker goroutines
	handleResponse := func(databaseID, requestID uint64, data []byte) {
		// When done, release the semaphore and mark worker as done
		defer func() {
			<-workerSemaphore // Release semaphore slot
			wg.Done()         // Mark worker as done
		}()

		// Process the request
		start := time.Now()
		resp := t.handler(databaseID, data)
		Logger.Debugf("Processed request for database %d with requestID %d took %s", databaseID, requestID, time.Since(start))

		// Protect writes to the connection with a mutex
		writeMu.Lock()
		defer writeMu.Unlock()

		if timeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				Logger.Errorf("Failed to set write deadline: %v", err)
				return
			}
		}

		// Write the response with the same requestID
		if err := conn.WriteMessage(websocket.BinaryMessage, encodeFrame(databaseID, requestID, resp)); err != nil {
			Logger.Errorf("Failed to write response: %v", err)
		}
	}

	// Handle requests in a loop
	for {
		if timeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
				Logger.Errorf("Failed to set read deadline: %v", err)
				break
			}
		}

		msgType, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				Logger.Infof("Connection closed by client")
			} else {
				Logger.Errorf("Error handling request: %v", err)
			}
			break
		}
		if msgType != websocket.BinaryMessage {
			continue // Ignore non-binary messages
		}

		databaseID, requestID, data, err := decodeFrame(frame)
		if err != nil {
			Logger.Errorf("Invalid frame: %v", err)
			break
		}

		// Acquire a slot in the semaphore (blocks if the worker limit is reached)
		workerSemaphore <- struct{}{}

		// Increment the wait group counter
		wg.Add(1)

		// Process in a goroutine
		go handleResponse(databaseID, requestID, data)
	}

	// Wait for all workers to finish before closing the connection
	wg.Wait()
}
