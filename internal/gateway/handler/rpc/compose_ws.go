package rpc

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"promptbuilder/internal/gateway/middleware"
	"promptbuilder/internal/prompt"
	"promptbuilder/internal/refine"
)

// ComposeSessions is what the live compose socket needs from service/prompt.
type ComposeSessions interface {
	OpenSession() (string, *prompt.Session)
	Session(id string) (*prompt.Session, error)
	SelectInSession(ctx context.Context, sessionID, category string, ids []string) (prompt.Result, error)
	Refine(ctx context.Context, text string) (refine.Result, error)
}

// ComposeHandler serves /ws/compose. Each inbound message mutates the
// session and is answered with the recomputed prompt.
type ComposeHandler struct {
	svc      ComposeSessions
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewComposeHandler accepts upgrades from the allowed browser origins, the
// same list CORS uses. Clients that send no Origin header are not browsers
// and are always accepted.
func NewComposeHandler(svc ComposeSessions, log *zap.Logger, allowedOrigins ...string) *ComposeHandler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &ComposeHandler{svc: svc, log: log}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || middleware.OriginAllowed(origin, allowedOrigins) {
				return true
			}
			h.log.Warn("compose ws: origin rejected", zap.String("origin", origin))
			return false
		},
	}
	return h
}

const (
	composeWSWriteWait = 10 * time.Second
	composeWSPongWait  = 60 * time.Second
	composeWSPingEvery = (composeWSPongWait * 9) / 10
)

type composeWSInbound struct {
	Type      string          `json:"type"`
	Category  string          `json:"category,omitempty"`
	IDs       []string        `json:"ids,omitempty"`
	Options   *prompt.Options `json:"options,omitempty"`
	SegmentID string          `json:"segment_id,omitempty"`
	Text      string          `json:"text,omitempty"`
}

type composeWSOutbound struct {
	Type      string           `json:"type"`
	SessionID string           `json:"session_id,omitempty"`
	Text      string           `json:"text"`
	Segments  []prompt.Segment `json:"segments,omitempty"`
	ModelUsed string           `json:"model_used,omitempty"`
	Advisory  string           `json:"advisory,omitempty"`
	Code      string           `json:"code,omitempty"`
	Message   string           `json:"message,omitempty"`
}

func promptOut(sessionID string, res prompt.Result) composeWSOutbound {
	return composeWSOutbound{Type: "prompt", SessionID: sessionID, Text: res.Text, Segments: res.Segments}
}

func errorOut(err error) composeWSOutbound {
	var ce *connect.Error
	if !errors.As(toConnectError(err), &ce) {
		return composeWSOutbound{Type: "error", Code: connect.CodeInternal.String(), Message: err.Error()}
	}
	return composeWSOutbound{Type: "error", Code: ce.Code().String(), Message: ce.Message()}
}

func (h *ComposeHandler) HandleComposeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	var sess *prompt.Session
	if sessionID != "" {
		existing, err := h.svc.Session(sessionID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		sess = existing
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if sess == nil {
		sessionID, sess = h.svc.OpenSession()
	}
	log := h.log.With(zap.String("session_id", sessionID))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(composeWSPongWait)); err != nil {
		log.Warn("compose ws: set read deadline failed", zap.Error(err))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(composeWSPongWait))
	})

	writeCh := make(chan composeWSOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(composeWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(composeWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(composeWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	hello := promptOut(sessionID, sess.Snapshot())
	hello.Type = "session"
	pushComposeWS(writeCh, hello)

	for {
		var in composeWSInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		out, err := h.apply(ctx, sessionID, sess, in)
		if err != nil {
			log.Debug("compose ws: rejected", zap.String("type", in.Type), zap.Error(err))
			pushComposeWS(writeCh, errorOut(err))
			continue
		}
		pushComposeWS(writeCh, out)
	}
}

func (h *ComposeHandler) apply(ctx context.Context, sessionID string, sess *prompt.Session, in composeWSInbound) (composeWSOutbound, error) {
	msgType := strings.ToLower(strings.TrimSpace(in.Type))
	var (
		res prompt.Result
		err error
	)
	switch msgType {
	case "ping":
		return composeWSOutbound{Type: "pong", SessionID: sessionID}, nil
	case "select":
		res, err = h.svc.SelectInSession(ctx, sessionID, in.Category, in.IDs)
	case "clear":
		res, err = sess.Clear(in.Category)
	case "remove":
		res, err = sess.Remove(in.Category)
	case "options":
		opts := prompt.DefaultOptions()
		if in.Options != nil {
			opts = *in.Options
		}
		res = sess.SetOptions(opts)
	case "edit":
		res, err = sess.EditSegment(in.SegmentID, in.Text)
	case "reset":
		res = sess.Reset()
	case "refined":
		res = sess.ApplyRefined(in.Text)
	case "refine":
		refined, rerr := h.svc.Refine(ctx, sess.Snapshot().Text)
		if rerr != nil {
			return composeWSOutbound{}, rerr
		}
		out := promptOut(sessionID, sess.ApplyRefined(refined.Text))
		out.ModelUsed, out.Advisory = refined.ModelUsed, refined.Advisory
		return out, nil
	case "":
		return composeWSOutbound{}, connect.NewError(connect.CodeInvalidArgument, errTypeRequired)
	default:
		return composeWSOutbound{}, connect.NewError(connect.CodeInvalidArgument, unsupportedType(msgType))
	}
	if err != nil {
		return composeWSOutbound{}, err
	}
	return promptOut(sessionID, res), nil
}

func pushComposeWS(writeCh chan composeWSOutbound, out composeWSOutbound) {
	if writeCh == nil {
		return
	}
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}
