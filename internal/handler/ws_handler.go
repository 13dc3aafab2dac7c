/*
Package handler provides the HTTP handler function for WebSocket connection upgrading.

HandleWebSocket upgrades the request, attaches the socket to the hub and runs
the client's pumps; the session stays anonymous until the client sends
user_login.
*/
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"lanshare/internal/pkg/limiter"
	"lanshare/internal/pkg/logx"
)

// HandleWebSocket creates an HTTP HandlerFunc serving the real-time event channel.
func HandleWebSocket(deps *AppDeps, upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket", "ip", ip)
			return
		}

		client := deps.Hub.Attach(conn, ip)
		connID := client.ID()
		deps.Gateway.OnConnect(connID)

		go client.WritePump()

		ctx := r.Context()
		client.ReadPump(func(event string, data json.RawMessage) {
			deps.Gateway.HandleEvent(ctx, connID, ip, event, data)
		})

		// Detach first so the departing socket is not sent the new user list.
		deps.Hub.Detach(connID)
		deps.Gateway.OnDisconnect(connID)
	}
}
