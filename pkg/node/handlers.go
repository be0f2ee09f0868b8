package node

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ryandielhenn/zephyrcore/pkg/executor"
)

// RetryAfter is sent with 503 responses when the executor refuses a task.
const RetryAfter = "1"

// Healthz returns 200 OK to indicate the Node is alive.
func (n *Node) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type infoResponse struct {
	ID       string         `json:"id,omitempty"`
	PID      int            `json:"pid"`
	Now      time.Time      `json:"now"`
	Items    int            `json:"items"`
	Bytes    int64          `json:"bytes"`
	Capacity int64          `json:"capacity"`
	Pool     executor.Stats `json:"pool"`
}

// Info writes a JSON payload with the process ID, current time, cache usage
// and pool state.
func (n *Node) Info(w http.ResponseWriter, _ *http.Request) {
	data, _ := json.Marshal(infoResponse{
		ID:       n.id,
		PID:      os.Getpid(),
		Now:      time.Now(),
		Items:    n.store.Len(),
		Bytes:    n.store.Size(),
		Capacity: n.store.Capacity(),
		Pool:     n.exec.Stats(),
	})
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// Put stores the request body under the key, replacing any old value.
func (n *Node) Put(w http.ResponseWriter, req *http.Request) {
	key, val, ok := n.readPair(w, req)
	if !ok {
		return
	}
	var stored bool
	if !n.dispatch(w, req, func() { stored = n.store.Put(key, val) }) {
		return
	}
	if !stored {
		http.Error(w, "value too large", http.StatusRequestEntityTooLarge)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PutIfAbsent stores the body only when the key is not present.
func (n *Node) PutIfAbsent(w http.ResponseWriter, req *http.Request) {
	key, val, ok := n.readPair(w, req)
	if !ok {
		return
	}
	var stored bool
	if !n.dispatch(w, req, func() { stored = n.store.PutIfAbsent(key, val) }) {
		return
	}
	if !stored {
		http.Error(w, "key exists", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// Set replaces the value of an existing key.
func (n *Node) Set(w http.ResponseWriter, req *http.Request) {
	key, val, ok := n.readPair(w, req)
	if !ok {
		return
	}
	var stored bool
	if !n.dispatch(w, req, func() { stored = n.store.Set(key, val) }) {
		return
	}
	if !stored {
		http.NotFound(w, req)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Get returns the value for a key.
func (n *Node) Get(w http.ResponseWriter, req *http.Request) {
	key, ok := keyParam(w, req)
	if !ok {
		return
	}
	var (
		val   []byte
		found bool
	)
	if !n.dispatch(w, req, func() { val, found = n.store.Get(key) }) {
		return
	}
	if !found {
		http.NotFound(w, req)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(val)
}

// Del removes a key.
func (n *Node) Del(w http.ResponseWriter, req *http.Request) {
	key, ok := keyParam(w, req)
	if !ok {
		return
	}
	var removed bool
	if !n.dispatch(w, req, func() { removed = n.store.Delete(key) }) {
		return
	}
	if !removed {
		http.NotFound(w, req)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func keyParam(w http.ResponseWriter, req *http.Request) (string, bool) {
	key := chi.URLParam(req, "*")
	if key == "" {
		http.Error(w, "missing key", http.StatusBadRequest)
		return "", false
	}
	return key, true
}

// readPair reads the key and the body, rejecting pairs that could never fit
// before any storage work is queued.
func (n *Node) readPair(w http.ResponseWriter, req *http.Request) (string, []byte, bool) {
	key, ok := keyParam(w, req)
	if !ok {
		return "", nil, false
	}
	limit := n.store.MaxPairSize() - int64(len(key))
	if limit < 0 {
		http.Error(w, "key too large", http.StatusRequestEntityTooLarge)
		return "", nil, false
	}
	val, err := io.ReadAll(io.LimitReader(req.Body, limit+1))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", nil, false
	}
	if int64(len(val)) > limit {
		http.Error(w, "value too large", http.StatusRequestEntityTooLarge)
		return "", nil, false
	}
	return key, val, true
}

// dispatch runs fn as an executor task and waits for it. It writes the error
// response itself and reports whether fn completed.
func (n *Node) dispatch(w http.ResponseWriter, req *http.Request, fn func()) bool {
	done := make(chan struct{})
	err := n.exec.Execute(func() {
		defer close(done)
		fn()
	})
	if err != nil {
		n.log.Debug("node.rejected", zap.String("path", req.URL.Path), zap.Error(err))
		if errors.Is(err, executor.ErrQueueFull) || errors.Is(err, executor.ErrNotRunning) {
			w.Header().Set("Retry-After", RetryAfter)
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return false
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return false
	}

	ctx, cancel := context.WithTimeout(req.Context(), n.timeout)
	defer cancel()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		n.log.Warn("node.task.timeout", zap.String("path", req.URL.Path), zap.Error(ctx.Err()))
		http.Error(w, "timed out waiting for storage", http.StatusGatewayTimeout)
		return false
	}
}
