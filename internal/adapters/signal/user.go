package signal

import (
	"github.com/dkeye/one-word-story/internal/core"
	"github.com/dkeye/one-word-story/internal/domain"
	"github.com/rs/zerolog/log"
)

// handleRename changes the display name. Rooms pick it up on the next join.
func (ctl *SignalWSController) handleRename(cid core.ConnID, identity domain.Identity, conn *WsSignalConn, data []byte) {
	var p struct {
		Name string `json:"name"`
	}
	if !ctl.decode(conn, data, &p) {
		return
	}
	if _, err := ctl.Orch.Registry.UpdateDisplayName(identity, p.Name); err != nil {
		ctl.sendError(conn, err)
		return
	}
	log.Info().Str("module", "signal").Str("cid", string(cid)).Str("name", p.Name).Msg("rename")
	ctl.handleWhoAmI(cid, conn)
}

func (ctl *SignalWSController) handleWhoAmI(cid core.ConnID, conn *WsSignalConn) {
	who, err := ctl.Orch.WhoAmI(cid)
	if err != nil {
		ctl.sendError(conn, err)
		return
	}
	ctl.sendJSON(conn, struct {
		Type          string               `json:"type"`
		Identity      domain.Identity      `json:"identity"`
		DisplayName   string               `json:"display_name"`
		RoomID        domain.RoomID        `json:"room_id,omitempty"`
		RoomName      domain.RoomName      `json:"room_name,omitempty"`
		ParticipantID domain.ParticipantID `json:"participant_id,omitempty"`
	}{
		Type:          "whoami",
		Identity:      who.Identity,
		DisplayName:   who.DisplayName,
		RoomID:        who.RoomID,
		RoomName:      who.RoomName,
		ParticipantID: who.ParticipantID,
	})
}
