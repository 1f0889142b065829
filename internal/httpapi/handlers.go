package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"towerdef/internal/registry"
)

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Stats reports registry counters as JSON: open rooms, connections, commands.
func Stats(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan registry.Stats, 1)
		reg.Inbox() <- registry.GetStats{Reply: reply}

		select {
		case stats := <-reply:
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(stats)
		case <-time.After(2 * time.Second):
			http.Error(w, "registry unavailable", http.StatusServiceUnavailable)
		}
	}
}
