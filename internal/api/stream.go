package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/talgya/selection-lab/internal/engine"
)

// heartbeatInterval keeps idle SSE connections open through proxies.
var heartbeatInterval = 15 * time.Second

// handleStream provides an SSE endpoint of engine snapshots.
// The current state is sent first, then one event per state change.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	// Connection limit.
	if s.sseConns.Add(1) > maxSSEConns {
		s.sseConns.Add(-1)
		http.Error(w, "too many SSE connections", http.StatusServiceUnavailable)
		return
	}
	defer s.sseConns.Add(-1)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	subID, ch := s.Engine.Subscribe()
	defer s.Engine.Unsubscribe(subID)

	writeSSESnapshot(w, s.Engine.Snapshot())
	flusher.Flush()

	slog.Info("SSE client connected", "sub_id", subID)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			writeSSESnapshot(w, snap)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			slog.Info("SSE client disconnected", "sub_id", subID)
			return
		}
	}
}

// writeSSESnapshot writes a single snapshot in SSE format.
func writeSSESnapshot(w http.ResponseWriter, snap engine.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data)
}
