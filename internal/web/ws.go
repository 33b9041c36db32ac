package web

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"weekplan/internal/dispatch"
	"weekplan/internal/drag"
	appLog "weekplan/internal/log"
	"weekplan/internal/model"
)

const writeTimeout = 5 * time.Second

// wsHost renders controller callbacks as outbound JSON messages.
type wsHost struct {
	ctx  context.Context
	conn *websocket.Conn

	mu   sync.Mutex
	last model.Snapshot
}

func (h *wsHost) send(msg outbound) {
	ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, h.conn, msg); err != nil && h.ctx.Err() == nil {
		appLog.Warn("websocket write failed", "type", msg.Type, "err", err.Error())
	}
}

func (h *wsHost) BeginDrag(mode model.Mode, ref model.EntryRef) {
	h.send(outbound{Type: outDrag, Active: boolPtr(true), Mode: mode.String(), Ref: refToMsg(ref)})
}

func (h *wsHost) EndDrag() {
	h.send(outbound{Type: outDrag, Active: boolPtr(false)})
}

func (h *wsHost) ShowIndicator(ind drag.Indicator) {
	h.send(outbound{Type: outIndicator, Indicator: &indicatorMsg{
		Visible:     ind.Visible,
		Day:         ind.Day,
		StartMinute: ind.StartMinute,
		Duration:    ind.Duration,
		Top:         ind.Top,
		Height:      ind.Height,
		Color:       ind.Color,
		Invalid:     ind.Invalid,
	}})
}

func (h *wsHost) PromptScope(p drag.ScopePrompt) {
	action := "move"
	if p.Action == drag.PromptDelete {
		action = "delete"
	}
	h.send(outbound{Type: outPrompt, Prompt: &promptMsg{Action: action, Ref: refToMsg(p.Ref), Message: p.Message}})
}

func (h *wsHost) Replace(s model.Snapshot) {
	h.mu.Lock()
	h.last = s
	h.mu.Unlock()
	h.send(outbound{Type: outSnapshot, Snapshot: snapshotToMsg(s)})
}

func (h *wsHost) Notify(n drag.Notice) {
	h.send(outbound{Type: outNotice, Notice: &noticeMsg{Kind: n.Kind.String(), Control: n.Control, Message: n.Message}})
}

func (h *wsHost) SetControlEnabled(control string, enabled bool) {
	h.send(outbound{Type: outControl, Control: control, Enabled: boolPtr(enabled)})
}

func (h *wsHost) OpenNote(ref model.EntryRef) {
	h.send(outbound{Type: outNote, Ref: refToMsg(ref)})
}

func (h *wsHost) palette(query string) []blockMsg {
	h.mu.Lock()
	blocks := h.last.Blocks
	h.mu.Unlock()
	return blocksToMsg(model.FilterBlocks(blocks, query))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		appLog.Warn("websocket accept failed", "remote", r.RemoteAddr, "err", err.Error())
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cfg := s.config()
	loc := resolveLocationOrLocal(cfg)
	host := &wsHost{ctx: ctx, conn: conn}
	host.send(outbound{Type: outConfig, Config: configToMsg(cfg)})

	week := model.WeekStart(time.Now().In(loc))
	snap, err := s.sender.Send(ctx, dispatch.FetchSchedule(week))
	if err != nil {
		appLog.Error("initial schedule fetch failed", err, "week", week.Format(model.DateLayout))
		host.Notify(drag.Notice{Kind: drag.NoticeError, Control: drag.ControlSchedule, Message: drag.MsgLoadFailed})
	} else {
		host.Replace(snap)
	}

	ctrl := drag.NewController(host, s.sender, snap, drag.Options{
		ClickSuppression: cfg.ClickSuppression,
		DefaultDuration:  cfg.DefaultDuration,
		QuickTaskMinutes: cfg.QuickTaskMinutes,
		RequestTimeout:   cfg.RequestTimeout,
		Location:         loc,
	})
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = ctrl.Run(ctx)
	}()

	var unsubscribe func()
	if s.refresher != nil {
		unsubscribe = s.refresher.Subscribe(func() { ctrl.Post(drag.RefreshRequested{}) })
	}
	s.mu.Lock()
	s.sessions[ctrl] = struct{}{}
	s.mu.Unlock()
	appLog.Info("websocket session opened", "remote", r.RemoteAddr)

	defer func() {
		if unsubscribe != nil {
			unsubscribe()
		}
		s.mu.Lock()
		delete(s.sessions, ctrl)
		s.mu.Unlock()
		cancel()
		<-runDone
		appLog.Info("websocket session closed", "remote", r.RemoteAddr)
	}()

	for {
		var msg inbound
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
				appLog.Debug("websocket read ended", "remote", r.RemoteAddr, "err", err.Error())
			}
			return
		}

		if msg.Type == msgSearch {
			host.send(outbound{Type: outPalette, Blocks: host.palette(msg.Query)})
			continue
		}
		ev, err := msg.event()
		if err != nil {
			appLog.Debug("bad websocket message", "type", msg.Type, "err", err.Error())
			host.Notify(drag.Notice{Kind: drag.NoticeInvalid, Control: msg.Type, Message: err.Error()})
			continue
		}
		if !ctrl.Post(ev) {
			return
		}
	}
}
