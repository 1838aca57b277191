package signal

import "time"

// handlePing answers application pings. Websocket control pings are the
// write pump's job.
func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	ctl.sendJSON(conn, struct {
		Type string    `json:"type"`
		At   time.Time `json:"at"`
	}{
		Type: "pong",
		At:   time.Now().UTC(),
	})
}
