package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lanshare/internal/app/directory"
	"lanshare/internal/app/presence"
	"lanshare/internal/app/storage"
	"lanshare/internal/app/user"
)

type sentEvent struct {
	// To is the target connection, empty for a broadcast.
	To      string
	Event   string
	Payload any
}

type recorder struct {
	mu     sync.Mutex
	events []sentEvent
}

func (r *recorder) Broadcast(event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sentEvent{Event: event, Payload: payload})
}

func (r *recorder) SendTo(connID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sentEvent{To: connID, Event: event, Payload: payload})
}

// take returns the events recorded so far and resets the log.
func (r *recorder) take() []sentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

type stubFiles struct {
	files []storage.FileInfo
	err   error
}

func (s stubFiles) List(context.Context) ([]storage.FileInfo, error) {
	return s.files, s.err
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	gw    *Gateway
	dir   *directory.Directory
	reg   *presence.Registry
	out   *recorder
	clock *clock
}

func newFixture(t *testing.T, files FileLister) *fixture {
	t.Helper()

	if files == nil {
		files = stubFiles{files: []storage.FileInfo{{Filename: "a.txt", Size: 3, URL: "/download/a.txt"}}}
	}

	clk := &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)}
	dir := directory.New(directory.NewMemoryRepository(), directory.WithClock(clk.Now))
	reg := presence.NewRegistry(dir)
	out := &recorder{}

	return &fixture{
		gw:    NewGateway(dir, reg, out, files, WithClock(clk.Now)),
		dir:   dir,
		reg:   reg,
		out:   out,
		clock: clk,
	}
}

func onlineNames(t *testing.T, ev sentEvent) []string {
	t.Helper()

	require.Equal(t, EventUserListUpdate, ev.Event)
	require.Empty(t, ev.To)

	payload, ok := ev.Payload.(UserListPayload)
	require.True(t, ok, "payload %T", ev.Payload)

	names := make([]string, 0, len(payload.Users))
	for _, u := range payload.Users {
		names = append(names, u.Username)
	}
	return names
}

func TestLoginSendsPrivateEventsThenBroadcast(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	u := f.gw.OnLogin(ctx, "conn_1", "10.0.0.5", "phone")
	require.Equal(t, "User_1", u.Username)
	require.Equal(t, "10.0.0.5", u.Address)
	require.Equal(t, "phone", u.DeviceInfo)

	events := f.out.take()
	require.Len(t, events, 3)

	require.Equal(t, sentEvent{To: "conn_1", Event: EventLoginSuccess, Payload: u.Payload()}, events[0])

	require.Equal(t, "conn_1", events[1].To)
	require.Equal(t, EventFileListUpdate, events[1].Event)
	require.Equal(t, "a.txt", events[1].Payload.(FileListPayload).Files[0].Filename)

	require.Equal(t, []string{"User_1"}, onlineNames(t, events[2]))
}

func TestScenarioRepeatLoginFromSameAddress(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first := f.gw.OnLogin(ctx, "conn_1", "10.0.0.5", "phone")
	second := f.gw.OnLogin(ctx, "conn_2", "10.0.0.5", "laptop")

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "phone", second.DeviceInfo, "device info from a repeat login is not merged")
	require.Equal(t, 1, f.dir.Len())
	require.Len(t, f.reg.OnlineUsers(), 1)
	require.Equal(t, 2, f.reg.Count(first.ID))
}

func TestScenarioTwoSessionsOneUser(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	u := f.gw.OnLogin(ctx, "conn_1", "10.0.0.5", "phone")
	f.gw.OnLogin(ctx, "conn_2", "10.0.0.5", "phone")
	require.Len(t, f.reg.OnlineUsers(), 1)
	f.out.take()

	f.gw.OnDisconnect("conn_1")
	require.Len(t, f.reg.OnlineUsers(), 1)

	events := f.out.take()
	require.Len(t, events, 1)
	require.Equal(t, []string{"User_1"}, onlineNames(t, events[0]))

	f.gw.OnDisconnect("conn_2")
	require.Empty(t, f.reg.OnlineUsers())
	require.Zero(t, f.reg.Count(u.ID))
	require.Zero(t, f.gw.Sessions())

	events = f.out.take()
	require.Len(t, events, 1)
	require.Empty(t, onlineNames(t, events[0]))
}

func TestDisconnectRefreshesLastSeen(t *testing.T) {
	f := newFixture(t, nil)

	u := f.gw.OnLogin(context.Background(), "conn_1", "10.0.0.5", "phone")
	f.clock.Advance(time.Hour)
	f.gw.OnDisconnect("conn_1")

	stored, ok := f.dir.FindByID(u.ID)
	require.True(t, ok)
	require.Equal(t, u.LastSeen.Add(time.Hour), stored.LastSeen)
}

func TestScenarioEmptyUsernameRejected(t *testing.T) {
	f := newFixture(t, nil)

	u := f.gw.OnLogin(context.Background(), "conn_1", "10.0.0.5", "phone")
	f.out.take()

	for _, name := range []string{"", "   ", strings.Repeat("x", MaxUsernameLength+1)} {
		f.gw.OnUpdateUsername("conn_1", name)
	}

	require.Empty(t, f.out.take())
	stored, _ := f.dir.FindByID(u.ID)
	require.Equal(t, "User_1", stored.Username)
}

func TestUpdateUsername(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.gw.OnLogin(ctx, "conn_1", "10.0.0.5", "phone")
	f.gw.OnLogin(ctx, "conn_2", "10.0.0.6", "laptop")
	f.out.take()

	f.gw.OnUpdateUsername("conn_2", "  Alice ")

	events := f.out.take()
	require.Len(t, events, 2)
	require.Equal(t, []string{"User_1", "Alice"}, onlineNames(t, events[0]))

	require.Equal(t, "conn_2", events[1].To)
	require.Equal(t, EventUsernameUpdated, events[1].Event)
	require.Equal(t, "Alice", events[1].Payload.(user.Payload).Username)
}

func TestUpdateUsernameFromAnonymousConnection(t *testing.T) {
	f := newFixture(t, nil)

	f.gw.OnUpdateUsername("ghost", "Mallory")

	require.Empty(t, f.out.take())
	require.Zero(t, f.dir.Len())
}

func TestRenameUser(t *testing.T) {
	f := newFixture(t, nil)

	u := f.gw.OnLogin(context.Background(), "conn_1", "10.0.0.5", "phone")
	f.out.take()

	renamed, err := f.gw.RenameUser(u.ID, "Bob")
	require.NoError(t, err)
	require.Equal(t, "Bob", renamed.Username)

	events := f.out.take()
	require.Len(t, events, 1)
	require.Equal(t, []string{"Bob"}, onlineNames(t, events[0]))

	_, err = f.gw.RenameUser(u.ID, " ")
	require.ErrorIs(t, err, ErrInvalidUsername)

	_, err = f.gw.RenameUser("missing", "Bob")
	require.ErrorIs(t, err, ErrUserNotFound)

	require.Empty(t, f.out.take())
}

func TestScenarioMessageFromAnonymousConnectionDropped(t *testing.T) {
	f := newFixture(t, nil)

	f.gw.OnSendMessage("ghost", "hello", false)

	require.Empty(t, f.out.take())
}

func TestSendMessage(t *testing.T) {
	f := newFixture(t, nil)

	u := f.gw.OnLogin(context.Background(), "conn_1", "10.0.0.5", "phone")
	f.out.take()

	f.gw.OnSendMessage("conn_1", "", false)
	require.Empty(t, f.out.take())

	f.gw.OnSendMessage("conn_1", "data:image/png;base64,AAAA", true)

	events := f.out.take()
	require.Len(t, events, 1)
	require.Equal(t, sentEvent{
		Event: EventNewMessage,
		Payload: ChatMessage{
			UserID:    u.ID,
			Username:  "User_1",
			Message:   "data:image/png;base64,AAAA",
			IsImage:   true,
			Timestamp: "2024-05-01 12:00:00",
		},
	}, events[0])
}

func TestScenarioUnknownDisconnectIsNoop(t *testing.T) {
	f := newFixture(t, nil)

	f.gw.OnLogin(context.Background(), "conn_1", "10.0.0.5", "phone")
	f.out.take()
	sizeBefore := f.reg.Size()

	f.gw.OnDisconnect("never-logged-in")

	require.Empty(t, f.out.take())
	require.Equal(t, sizeBefore, f.reg.Size())
	require.Equal(t, 1, f.gw.Sessions())

	f.gw.OnDisconnect("conn_1")
	f.out.take()
	f.gw.OnDisconnect("conn_1")
	require.Empty(t, f.out.take())
	require.Zero(t, f.reg.Size())
}

func TestDisconnectReleasesPresenceMissingFromSessionTable(t *testing.T) {
	f := newFixture(t, nil)

	u := f.dir.CreateOrGet("10.0.0.5", "phone")
	f.reg.MarkConnected(u.ID, "orphan")

	f.gw.OnDisconnect("orphan")

	require.Zero(t, f.reg.Size())
	events := f.out.take()
	require.Len(t, events, 1)
	require.Empty(t, onlineNames(t, events[0]))
}

func TestRepeatLoginOnSameConnectionIgnored(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first := f.gw.OnLogin(ctx, "conn_1", "10.0.0.5", "phone")
	f.out.take()

	again := f.gw.OnLogin(ctx, "conn_1", "10.0.0.5", "phone")
	require.Equal(t, first.ID, again.ID)
	require.Empty(t, f.out.take())
	require.Equal(t, 1, f.reg.Count(first.ID))
	require.Equal(t, 1, f.gw.Sessions())
}

func TestConcurrentLoginsFromNewAddresses(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.gw.OnLogin(ctx, fmt.Sprintf("conn_%d", i), fmt.Sprintf("10.0.1.%d", i), "browser")
		}()
	}
	wg.Wait()

	require.Equal(t, n, f.gw.Sessions())
	require.Len(t, f.reg.OnlineUsers(), n)

	names := make(map[string]struct{}, n)
	for _, u := range f.dir.ListAll() {
		names[u.Username] = struct{}{}
	}
	for i := 1; i <= n; i++ {
		require.Contains(t, names, fmt.Sprintf("User_%d", i))
	}
}

func TestLoginWithFailingFileList(t *testing.T) {
	f := newFixture(t, stubFiles{err: errors.New("disk gone")})

	f.gw.OnLogin(context.Background(), "conn_1", "10.0.0.5", "phone")

	events := f.out.take()
	require.Len(t, events, 3)
	payload := events[1].Payload.(FileListPayload)
	require.NotNil(t, payload.Files)
	require.Empty(t, payload.Files)

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.JSONEq(t, `{"files":[]}`, string(raw))
}

func TestNotifyFilesChanged(t *testing.T) {
	f := newFixture(t, nil)

	f.gw.NotifyFilesChanged(context.Background())

	events := f.out.take()
	require.Len(t, events, 1)
	require.Empty(t, events[0].To)
	require.Equal(t, EventFileListUpdate, events[0].Event)
	require.Len(t, events[0].Payload.(FileListPayload).Files, 1)
}

func TestHandleEventDispatch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.gw.HandleEvent(ctx, "conn_1", "10.0.0.7", EventUserLogin, json.RawMessage(`{"device_info":"tablet"}`))
	u, ok := f.dir.FindByAddress("10.0.0.7")
	require.True(t, ok)
	require.Equal(t, "tablet", u.DeviceInfo)
	f.out.take()

	f.gw.HandleEvent(ctx, "conn_1", "10.0.0.7", EventSendMessage, json.RawMessage(`{"message":"hey"}`))
	events := f.out.take()
	require.Len(t, events, 1)
	require.Equal(t, "hey", events[0].Payload.(ChatMessage).Message)

	f.gw.HandleEvent(ctx, "conn_1", "10.0.0.7", EventUpdateUsername, json.RawMessage(`{"username":"Tab"}`))
	require.Len(t, f.out.take(), 2)

	f.gw.HandleEvent(ctx, "conn_1", "10.0.0.7", EventSendMessage, json.RawMessage(`{"message":3}`))
	f.gw.HandleEvent(ctx, "conn_1", "10.0.0.7", "typing", json.RawMessage(`{}`))
	require.Empty(t, f.out.take())
}

func TestHandleEventLoginWithoutData(t *testing.T) {
	f := newFixture(t, nil)

	f.gw.HandleEvent(context.Background(), "conn_1", "10.0.0.8", EventUserLogin, nil)

	u, ok := f.dir.FindByAddress("10.0.0.8")
	require.True(t, ok)
	require.Empty(t, u.DeviceInfo)
	require.Equal(t, 1, f.gw.Sessions())
}
