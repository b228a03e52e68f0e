package chat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stafflink/go-chat-core/internal/domain"
)

func TestNotifyMembersAdded(t *testing.T) {
	core := newTestCore(t, newFakeStore(), nil)
	online := newFakePusher("c-bob")
	core.registry.Connect("bob", "Bob", online)

	core.NotifyMembersAdded("g1", "Platform Team", []string{"bob", "offline-carol"})

	if !core.hub.Subscribed("g1", "c-bob") {
		t.Fatalf("online member not subscribed to the new room")
	}
	evs := online.snapshot()
	if len(evs) != 1 || evs[0].Event != EventGroupAdded {
		t.Fatalf("events = %+v; want one %s", evs, EventGroupAdded)
	}
	n := evs[0].Data.(GroupNotice)
	if n.GroupID != "g1" || n.Name != "Platform Team" {
		t.Fatalf("notice = %+v", n)
	}
}

func TestNotifyMemberRemoved(t *testing.T) {
	core := newTestCore(t, newFakeStore(), nil)
	online := newFakePusher("c-bob")
	core.registry.Connect("bob", "Bob", online)
	core.hub.Subscribe("g1", online)

	core.NotifyMemberRemoved("g1", "Platform Team", "bob")
	core.NotifyMemberRemoved("g1", "Platform Team", "offline-carol") // no-op

	if core.hub.Subscribed("g1", "c-bob") {
		t.Fatalf("removed member still subscribed")
	}
	if online.count(EventGroupRemoved) != 1 {
		t.Fatalf("removal notice missing")
	}
}

func TestSendPresenceSync(t *testing.T) {
	core := newTestCore(t, newFakeStore(), nil)
	core.registry.Connect("alice", "Alice", newFakePusher("c1"))
	core.registry.Connect("bob", "Bob", newFakePusher("c2"))

	fresh := newFakePusher("c3")
	core.sendPresenceSync(fresh)

	evs := fresh.snapshot()
	if len(evs) != 1 || evs[0].Event != EventPresenceSync {
		t.Fatalf("events = %+v", evs)
	}
	sync := evs[0].Data.(PresenceSync)
	if len(sync.OnlineUsers) != 2 {
		t.Fatalf("online set = %v; want 2 users", sync.OnlineUsers)
	}
}

func TestBroadcastPresence_SkipsCause(t *testing.T) {
	core := newTestCore(t, newFakeStore(), nil)
	self := newFakePusher("c1")
	other := newFakePusher("c2")
	core.registry.Connect("alice", "Alice", self)
	core.registry.Connect("bob", "Bob", other)

	core.broadcastPresence("c1", ident("alice"), StatusOnline)

	if self.count(EventPresenceUpdate) != 0 {
		t.Fatalf("cause connection received its own presence update")
	}
	if other.count(EventPresenceUpdate) != 1 {
		t.Fatalf("peer presence updates = %d; want 1", other.count(EventPresenceUpdate))
	}
	up := other.snapshot()[0].Data.(PresenceUpdate)
	if up.UserID != "alice" || up.Status != StatusOnline {
		t.Fatalf("presence update = %+v", up)
	}
}

func TestDecode(t *testing.T) {
	conn := newFakePusher("c1")
	var p GroupRef

	if decode(conn, nil, &p) {
		t.Fatalf("missing payload decoded")
	}
	if decode(conn, json.RawMessage(`{`), &p) {
		t.Fatalf("malformed payload decoded")
	}
	if !decode(conn, json.RawMessage(`{"groupId":"g1"}`), &p) || p.GroupID != "g1" {
		t.Fatalf("valid payload rejected: %+v", p)
	}
	if conn.count(EventError) != 2 {
		t.Fatalf("error events = %d; want 2", conn.count(EventError))
	}
}

// wsURL turns an httptest server URL into a ws:// endpoint for user.
func wsURL(srv *httptest.Server, user string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user_id=" + user
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv, user), nil)
	if err != nil {
		t.Fatalf("dial %s: %v", user, err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

// readFrame reads one envelope with a deadline so a missing frame fails the
// test instead of hanging it.
func readFrame(t *testing.T, ws *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := ws.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame.Event, frame.Data
}

func TestHandleWS_EndToEnd(t *testing.T) {
	store := newFakeStore()
	store.addGroup("g1", true, domain.GroupSettings{}, "alice", "bob")
	store.memberGroups["alice"] = []domain.Group{{ID: "g1"}}
	store.memberGroups["bob"] = []domain.Group{{ID: "g1"}}

	core := newTestCore(t, store, nil)
	core.Start()
	defer core.Shutdown()

	srv := httptest.NewServer(http.HandlerFunc(core.HandleWS))
	defer srv.Close()

	alice := dial(t, srv, "alice")

	// A fresh connection receives the current online set first.
	if ev, _ := readFrame(t, alice); ev != EventPresenceSync {
		t.Fatalf("first frame = %s; want %s", ev, EventPresenceSync)
	}

	bob := dial(t, srv, "bob")
	if ev, data := readFrame(t, bob); ev != EventPresenceSync {
		t.Fatalf("bob first frame = %s (%s)", ev, data)
	} else {
		var sync PresenceSync
		if err := json.Unmarshal(data, &sync); err != nil || len(sync.OnlineUsers) != 2 {
			t.Fatalf("bob presence sync = %s (err %v)", data, err)
		}
	}

	// Alice is told bob came online.
	if ev, data := readFrame(t, alice); ev != EventPresenceUpdate {
		t.Fatalf("alice frame = %s", ev)
	} else {
		var up PresenceUpdate
		if err := json.Unmarshal(data, &up); err != nil || up.UserID != "bob" || up.Status != StatusOnline {
			t.Fatalf("presence update = %s (err %v)", data, err)
		}
	}

	// Direct message alice -> bob: bob gets the copy, alice gets the echo.
	send := map[string]any{
		"event": EventMessage,
		"data":  map[string]any{"recipientId": "bob", "text": "hi bob"},
	}
	if err := alice.WriteJSON(send); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ev, data := readFrame(t, bob); ev != EventMessage {
		t.Fatalf("bob frame = %s", ev)
	} else {
		var out DirectMessageOut
		if err := json.Unmarshal(data, &out); err != nil || out.Text != "hi bob" || out.Own {
			t.Fatalf("bob message = %s (err %v)", data, err)
		}
	}
	if ev, data := readFrame(t, alice); ev != EventMessage {
		t.Fatalf("alice frame = %s", ev)
	} else {
		var out DirectMessageOut
		if err := json.Unmarshal(data, &out); err != nil || !out.Own {
			t.Fatalf("alice echo = %s (err %v)", data, err)
		}
	}

	// Group message fans out over the auto-subscribed room.
	groupSend := map[string]any{
		"event": EventGroupMessage,
		"data":  map[string]any{"groupId": "g1", "text": "hello room"},
	}
	if err := bob.WriteJSON(groupSend); err != nil {
		t.Fatalf("write group: %v", err)
	}
	for name, ws := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
		if ev, data := readFrame(t, ws); ev != EventGroupMessage {
			t.Fatalf("%s frame = %s (%s)", name, ev, data)
		}
	}
}

func TestHandleWS_RejectsMissingIdentity(t *testing.T) {
	core := newTestCore(t, newFakeStore(), nil)
	srv := httptest.NewServer(http.HandlerFunc(core.HandleWS))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d; want 401", resp.StatusCode)
	}
}

func TestHandleWS_SecondConnectionReplacesFirst(t *testing.T) {
	core := newTestCore(t, newFakeStore(), nil)
	srv := httptest.NewServer(http.HandlerFunc(core.HandleWS))
	defer srv.Close()

	first := dial(t, srv, "alice")
	if ev, _ := readFrame(t, first); ev != EventPresenceSync {
		t.Fatalf("first frame = %s", ev)
	}

	second := dial(t, srv, "alice")
	if ev, _ := readFrame(t, second); ev != EventPresenceSync {
		t.Fatalf("second conn first frame = %s", ev)
	}

	// The first connection is closed by the server.
	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}

	// The surviving connection still serves the user.
	if got := len(core.OnlineIDs()); got != 1 {
		t.Fatalf("online users = %d; want 1", got)
	}
}
