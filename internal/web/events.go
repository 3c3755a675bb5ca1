package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/trainhub/internal/shared"
)

// heartbeat keeps idle event streams open through proxies.
const heartbeat = 25 * time.Second

// events streams changes visible to the current user as server-sent events.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	if s.broker == nil {
		http.Error(w, "Live updates are disabled", http.StatusServiceUnavailable)
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	if err := rc.Flush(); err != nil {
		s.logger.Warn("event stream cannot flush", "error", err)
		return
	}

	uid := userID(r)
	changes := s.broker.Subscribe(r.Context(), 16)
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
		case change, ok := <-changes:
			if !ok {
				return
			}
			if !change.VisibleTo(uid) {
				continue
			}
			data, err := shared.MarshalJSON(change, false)
			if err != nil {
				s.logger.Error("failed to encode change", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", data)
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
