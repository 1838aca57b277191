package signal

import (
	"context"

	"github.com/dkeye/one-word-story/internal/app/orch"
	"github.com/dkeye/one-word-story/internal/core"
	"github.com/dkeye/one-word-story/internal/domain"
	"github.com/rs/zerolog/log"
)

// handleJoin admits the connection. The room itself answers with joined,
// the replay and a roster snapshot.
func (ctl *SignalWSController) handleJoin(ctx context.Context, cid core.ConnID, conn *WsSignalConn, data []byte) {
	var p struct {
		RoomID      string `json:"room_id"`
		DisplayName string `json:"display_name,omitempty"`
		Since       uint64 `json:"since,omitempty"`
	}
	if !ctl.decode(conn, data, &p) {
		return
	}
	log.Info().Str("module", "signal").Str("cid", string(cid)).Str("room_id", p.RoomID).Msg("join")
	_, _, err := ctl.Orch.Join(ctx, cid, orch.JoinParams{
		RoomID:      domain.RoomID(p.RoomID),
		DisplayName: p.DisplayName,
		Since:       p.Since,
	})
	if err != nil {
		ctl.sendError(conn, err)
	}
}

// handleLeave leaves the current room, the connection stays open.
func (ctl *SignalWSController) handleLeave(ctx context.Context, cid core.ConnID, conn *WsSignalConn) {
	log.Info().Str("module", "signal").Str("cid", string(cid)).Msg("leave")
	if err := ctl.Orch.Leave(ctx, cid); err != nil {
		ctl.sendError(conn, err)
		return
	}
	ctl.sendJSON(conn, struct {
		Type string `json:"type"`
	}{Type: "left"})
}

func (ctl *SignalWSController) handleSubmit(ctx context.Context, cid core.ConnID, conn *WsSignalConn, data []byte) {
	var p struct {
		Word           string  `json:"word"`
		SequenceNumber *uint64 `json:"sequence_number,omitempty"`
	}
	if !ctl.decode(conn, data, &p) {
		return
	}
	res, err := ctl.Orch.Submit(ctx, cid, p.Word, p.SequenceNumber)
	if err != nil {
		ctl.sendError(conn, err)
		return
	}
	log.Debug().Str("module", "signal").Str("cid", string(cid)).Uint64("seq", res.Entry.Seq).Bool("duplicate", res.Duplicate).Msg("submit")
}

func (ctl *SignalWSController) handleCreateRoom(identity domain.Identity, conn *WsSignalConn, data []byte) {
	var p struct {
		Name string `json:"name"`
	}
	if !ctl.decode(conn, data, &p) {
		return
	}
	room := ctl.Orch.CreateRoom(identity, p.Name)
	ctl.sendJSON(conn, struct {
		Type   string          `json:"type"`
		RoomID domain.RoomID   `json:"room_id"`
		Name   domain.RoomName `json:"name"`
	}{
		Type:   "room_created",
		RoomID: room.Room().ID,
		Name:   room.Room().Name,
	})
}

func (ctl *SignalWSController) handleCloseRoom(ctx context.Context, cid core.ConnID, conn *WsSignalConn) {
	if err := ctl.Orch.CloseRoom(ctx, cid); err != nil {
		ctl.sendError(conn, err)
	}
}

func (ctl *SignalWSController) handleStory(cid core.ConnID, conn *WsSignalConn) {
	pages, err := ctl.Orch.StoryOf(cid)
	if err != nil {
		ctl.sendError(conn, err)
		return
	}
	ctl.sendJSON(conn, struct {
		Type  string           `json:"type"`
		Pages []orch.StoryPage `json:"pages"`
	}{
		Type:  "story",
		Pages: pages,
	})
}

func (ctl *SignalWSController) handleBan(ctx context.Context, cid core.ConnID, conn *WsSignalConn, data []byte, banned bool) {
	var p struct {
		Word string `json:"word"`
	}
	if !ctl.decode(conn, data, &p) {
		return
	}
	words, err := ctl.Orch.Ban(ctx, cid, p.Word, banned)
	if err != nil {
		ctl.sendError(conn, err)
		return
	}
	ctl.sendJSON(conn, struct {
		Type  string   `json:"type"`
		Words []string `json:"words"`
	}{
		Type:  "banned_words",
		Words: words,
	})
}
