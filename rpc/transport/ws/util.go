package ws

import (
	"encoding/binary"
	"fmt"
	"net/url"
	"strings"
)

// Each WebSocket binary message carries one frame:
// - 8 bytes: databaseID (uint64, big endian)
// - 8 bytes: requestID (uint64, big endian)
// - N bytes: data payload
//
// WebSocket preserves message boundaries, so no length prefix is needed.

const frameHeaderSize = 16

// encodeFrame builds a frame message from its parts
func encodeFrame(databaseID, requestID uint64, data []byte) []byte {
	frame := make([]byte, frameHeaderSize+len(data))
	binary.BigEndian.PutUint64(frame[:8], databaseID)
	binary.BigEndian.PutUint64(frame[8:16], requestID)
	copy(frame[frameHeaderSize:], data)
	return frame
}

// decodeFrame splits a frame message into its parts
func decodeFrame(frame []byte) (databaseID, requestID uint64, data []byte, err error) {
	if len(frame) < frameHeaderSize {
		return 0, 0, nil, fmt.Errorf("frame too short: %d bytes", len(frame))
	}
	databaseID = binary.BigEndian.Uint64(frame[:8])
	requestID = binary.BigEndian.Uint64(frame[8:16])
	data = frame[frameHeaderSize:]
	return databaseID, requestID, data, nil
}

// normalizeEndpoint turns a plain host:port endpoint into a full WebSocket
// URL. Endpoints that already carry a scheme are used as-is.
func normalizeEndpoint(endpoint string) (string, error) {
	if !strings.Contains(endpoint, "://") {
		endpoint = "ws://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %v", endpoint, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("invalid endpoint %q: scheme must be ws or wss", endpoint)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = rpcPath
	}
	return u.String(), nil
}
