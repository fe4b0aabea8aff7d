// internal/app/features/start/username.go
package start

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/dalemusser/heard/internal/app/system/availability"
	"github.com/dalemusser/heard/internal/app/system/limits"
	"github.com/dalemusser/heard/internal/app/system/normalize"
	"github.com/dalemusser/heard/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// usernameResponse is the body of GET /start/username.
type usernameResponse struct {
	Username  string `json:"username"`
	Status    string `json:"status"`
	Available *bool  `json:"available"`
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /start/username?username=                                               |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeUsername answers a single availability question. A failed lookup is
// reported as unknown, never as an error.
func (h *Handler) ServeUsername(w http.ResponseWriter, r *http.Request) {
	username := normalize.Name(query.Get(r, "username"))

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	status, err := availability.Check(ctx, h.Lookup, username)
	if err != nil {
		h.Log.Warn("username availability lookup failed", zap.String("username", username), zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(usernameResponse{
		Username:  username,
		Status:    status.String(),
		Available: status.Available(),
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /start/username/live (websocket)                                        |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = (livePongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// liveIn is what the browser sends on every edit.
type liveIn struct {
	Username string `json:"username"`
}

// liveOut is pushed whenever the checker's status changes.
type liveOut struct {
	Username  string `json:"username"`
	Status    string `json:"status"`
	Available *bool  `json:"available"`
	Seq       uint64 `json:"seq"`
}

// latest holds the newest checker result for the writer goroutine.
// Intermediate results may be coalesced; the last one is always delivered.
type latest struct {
	mu     sync.Mutex
	res    availability.Result
	notify chan struct{}
}

func (l *latest) set(res availability.Result) {
	l.mu.Lock()
	l.res = res
	l.mu.Unlock()
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (l *latest) get() availability.Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.res
}

// ServeLive upgrades to a websocket and runs one debounced Checker for the
// lifetime of the connection.
func (h *Handler) ServeLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Debug("live username: upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	out := &latest{notify: make(chan struct{}, 1)}
	checker := availability.NewChecker(h.Lookup, out.set, availability.Options{
		QuietPeriod:   h.QuietPeriod,
		LookupTimeout: timeouts.Short(),
		Logger:        h.Log,
	})
	defer checker.Close()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.liveWriter(conn, out, done)
	}()

	conn.SetReadLimit(limits.MaxLiveMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})

	for {
		var msg liveIn
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.Log.Debug("live username: read failed", zap.Error(err))
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
		checker.Observe(msg.Username)
	}

	close(done)
	wg.Wait()
}

func (h *Handler) liveWriter(conn *websocket.Conn, out *latest, done <-chan struct{}) {
	ping := time.NewTicker(livePingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-out.notify:
			res := out.get()
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteJSON(liveOut{
				Username:  res.Username,
				Status:    res.Status.String(),
				Available: res.Status.Available(),
				Seq:       res.Seq,
			}); err != nil {
				h.Log.Debug("live username: write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
