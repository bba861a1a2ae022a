package httpx

import (
	"net/http"
	"strings"

	"github.com/splax/classscribe/pkg/crypto"
)

const (
	requestIDHeader    = "X-Request-ID"
	maxRequestIDLength = 128
)

// ensureRequestID keeps a caller supplied request id or mints one, and echoes
// it on the response.
func ensureRequestID(w http.ResponseWriter, req *http.Request) string {
	id := strings.TrimSpace(req.Header.Get(requestIDHeader))
	if len(id) > maxRequestIDLength {
		id = id[:maxRequestIDLength]
	}
	if id == "" {
		id = newRequestID()
		req.Header.Set(requestIDHeader, id)
	}
	w.Header().Set(requestIDHeader, id)
	return id
}

func newRequestID() string {
	id, err := crypto.RandomHex(16)
	if err != nil {
		return "unknown"
	}
	return id
}
