package conn

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tobsdb/tdbadmin/pkg"
)

const (
	EventCreateRow   = "createRow"
	EventUpdateRow   = "updateRow"
	EventDeleteRow   = "deleteRow"
	EventCreateTable = "createTable"
	EventDropTable   = "dropTable"
)

// Event tells subscribers of a database that something changed.
type Event struct {
	Action string `json:"action"`
	Table  string `json:"table"`
	Pk     string `json:"pk,omitempty"`
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 16
)

type subscriber struct {
	conn *websocket.Conn
	send chan Event
}

// Hub fans change events out to the websocket subscribers of each database.
type Hub struct {
	locker   sync.RWMutex
	upgrader websocket.Upgrader
	// db id -> subscribers
	subs pkg.Map[string, map[*subscriber]struct{}]
}

func NewHub(check_origin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			WriteBufferSize: 1024 * 10,
			ReadBufferSize:  1024 * 10,
			CheckOrigin:     check_origin,
		},
		subs: pkg.Map[string, map[*subscriber]struct{}]{},
	}
}

func (h *Hub) GetLocker() *sync.RWMutex { return &h.locker }

// Subscribe upgrades the request and streams events for db_id until the
// client goes away.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, db_id string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		pkg.ErrorLog("websocket upgrade", err)
		return
	}

	s := &subscriber{conn: conn, send: make(chan Event, sendBuffer)}
	pkg.LockWrap(h, func() {
		if !h.subs.Has(db_id) {
			h.subs.Set(db_id, map[*subscriber]struct{}{})
		}
		h.subs.Get(db_id)[s] = struct{}{}
	})
	pkg.DebugLog("subscriber joined", db_id, conn.RemoteAddr())

	go s.writeLoop()

	// the client doesn't send anything; reading notices when it leaves
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(db_id, s)
	pkg.DebugLog("subscriber left", db_id, conn.RemoteAddr())
}

func (h *Hub) remove(db_id string, s *subscriber) {
	pkg.LockWrap(h, func() {
		subs := h.subs.Get(db_id)
		if _, ok := subs[s]; !ok {
			return
		}
		delete(subs, s)
		if len(subs) == 0 {
			h.subs.Delete(db_id)
		}
		close(s.send)
	})
}

func (s *subscriber) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(ev); err != nil {
				pkg.ErrorLog("websocket write", err)
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Publish sends ev to every subscriber of db_id. Subscribers that fall
// behind miss events rather than block the writer.
func (h *Hub) Publish(db_id string, ev Event) {
	pkg.RLockWrap(h, func() {
		for s := range h.subs.Get(db_id) {
			select {
			case s.send <- ev:
			default:
				pkg.WarnLog("dropping event for slow subscriber", s.conn.RemoteAddr())
			}
		}
	})
}

// Disconnect closes every subscriber of db_id.
func (h *Hub) Disconnect(db_id string) {
	pkg.LockWrap(h, func() {
		for s := range h.subs.Get(db_id) {
			close(s.send)
		}
		h.subs.Delete(db_id)
	})
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	pkg.LockWrap(h, func() {
		for db_id, subs := range h.subs {
			for s := range subs {
				close(s.send)
			}
			delete(h.subs, db_id)
		}
	})
}

// Subscribers counts the open subscriptions for db_id.
func (h *Hub) Subscribers(db_id string) int {
	h.locker.RLock()
	defer h.locker.RUnlock()
	return len(h.subs.Get(db_id))
}
