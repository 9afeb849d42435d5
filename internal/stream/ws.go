package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Handler upgrades HTTP requests to WebSocket connections and relays broker
// events to each client as JSON text frames.
func Handler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Debug("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
			return
		}

		id, ch := broker.Subscribe()
		slog.Debug("capture event subscriber connected", "subscriber_id", id, "remote", r.RemoteAddr)

		go func() {
			defer func() {
				broker.Unsubscribe(id)
				_ = conn.Close()
			}()

			for evt := range ch {
				data, err := json.Marshal(evt)
				if err != nil {
					slog.Error("failed to marshal capture event", "error", err)
					continue
				}
				if err := wsutil.WriteServerText(conn, data); err != nil {
					slog.Debug("capture event subscriber gone", "subscriber_id", id, "error", err)
					return
				}
			}
		}()
	}
}
