package view

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/chazu/geoscene/pkg/dispatch"
	"github.com/chazu/geoscene/pkg/wire"
)

// ErrBroken is returned by every call after a send or an acknowledgement
// failed. The connection can no longer be trusted to pair acks with calls;
// dial a new one.
var ErrBroken = errors.New("view: connection broken, redial")

// Envelope is one engine call on the websocket.
type Envelope struct {
	Op             string          `json:"op"`
	Seq            uint64          `json:"seq"`
	Index          int             `json:"index"`
	ContainerIndex int             `json:"containerIndex"`
	Record         json.RawMessage `json:"record,omitempty"`
}

// Ack answers one Envelope.
type Ack struct {
	Seq   uint64 `json:"seq"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// SocketRenderer forwards engine calls to a remote engine over a websocket
// and waits for each acknowledgement. Calls are serialized on the
// connection.
type SocketRenderer struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	seq    uint64
	broken error
}

// Dial connects to the engine at url (ws:// or wss://).
func Dial(ctx context.Context, url string) (*SocketRenderer, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("view: dial %s: %w", url, err)
	}
	glog.Infof("[view] connected to %s", url)
	return &SocketRenderer{conn: conn}, nil
}

// UpdateComponent implements dispatch.Renderer.
func (r *SocketRenderer) UpdateComponent(ctx context.Context, index, containerIndex int, rec wire.Record) error {
	b, err := wire.Marshal(rec)
	if err != nil {
		return err
	}
	return r.roundTrip(ctx, Envelope{Op: dispatch.OpUpdate.String(), Index: index, ContainerIndex: containerIndex, Record: b})
}

// RemoveComponent implements dispatch.Renderer.
func (r *SocketRenderer) RemoveComponent(ctx context.Context, index, containerIndex int) error {
	return r.roundTrip(ctx, Envelope{Op: dispatch.OpRemove.String(), Index: index, ContainerIndex: containerIndex})
}

func (r *SocketRenderer) roundTrip(ctx context.Context, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.broken != nil {
		return fmt.Errorf("%w: %v", ErrBroken, r.broken)
	}

	r.seq++
	env.Seq = r.seq

	deadline, _ := ctx.Deadline()
	if err := r.conn.SetWriteDeadline(deadline); err != nil {
		return r.fail(fmt.Errorf("view: send #%d: %w", env.Seq, err))
	}
	if err := r.conn.SetReadDeadline(deadline); err != nil {
		return r.fail(fmt.Errorf("view: ack #%d: %w", env.Seq, err))
	}

	if err := r.conn.WriteJSON(env); err != nil {
		return r.fail(fmt.Errorf("view: send #%d: %w", env.Seq, err))
	}
	var ack Ack
	if err := r.conn.ReadJSON(&ack); err != nil {
		return r.fail(fmt.Errorf("view: ack #%d: %w", env.Seq, err))
	}
	if ack.Seq != env.Seq {
		return r.fail(fmt.Errorf("view: ack for #%d, want #%d", ack.Seq, env.Seq))
	}
	if !ack.OK {
		return fmt.Errorf("view: engine rejected %s #%d: %s", env.Op, env.Seq, ack.Error)
	}
	return nil
}

// fail marks the connection broken. A late ack would otherwise be read as
// the answer to the next call. r.mu must be held.
func (r *SocketRenderer) fail(err error) error {
	r.broken = err
	glog.Warningf("%v; connection marked broken", err)
	return err
}

// Close says goodbye to the engine and closes the connection.
func (r *SocketRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	werr := r.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return errors.Join(werr, r.conn.Close())
}

// Handler serves the engine side of the protocol, applying each envelope to
// target and acknowledging it.
func Handler(target dispatch.Renderer) http.Handler {
	upgrader := websocket.Upgrader{}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			glog.Warningf("[view] upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			var env Envelope
			if err := conn.ReadJSON(&env); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					glog.Warningf("[view] read: %v", err)
				}
				return
			}
			ack := Ack{Seq: env.Seq, OK: true}
			if err := apply(req.Context(), target, env); err != nil {
				ack.OK, ack.Error = false, err.Error()
			}
			if err := conn.WriteJSON(ack); err != nil {
				glog.Warningf("[view] write ack #%d: %v", env.Seq, err)
				return
			}
		}
	})
}

func apply(ctx context.Context, target dispatch.Renderer, env Envelope) error {
	switch env.Op {
	case dispatch.OpUpdate.String():
		rec, err := wire.Unmarshal(env.Record)
		if err != nil {
			return err
		}
		return target.UpdateComponent(ctx, env.Index, env.ContainerIndex, rec)
	case dispatch.OpRemove.String():
		return target.RemoveComponent(ctx, env.Index, env.ContainerIndex)
	default:
		return fmt.Errorf("view: unknown op %q", env.Op)
	}
}
