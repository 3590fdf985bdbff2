package broker_test

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/roombroker/internal/broker"
	"github.com/Tyrowin/roombroker/internal/mocks"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type routerFixture struct {
	broker     *broker.Broker
	identities map[broker.ConnectionID]broker.Identity
}

func newRouterFixture(t *testing.T, cfg broker.Config) *routerFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	gate := mocks.NewMockSessionGate(ctrl)

	f := &routerFixture{identities: make(map[broker.ConnectionID]broker.Identity)}
	gate.EXPECT().CurrentIdentity(gomock.Any()).DoAndReturn(
		func(id broker.ConnectionID) (broker.Identity, bool) {
			identity, ok := f.identities[id]
			return identity, ok
		}).AnyTimes()

	f.broker = broker.New(cfg, gate, slog.New(slog.DiscardHandler))
	t.Cleanup(f.broker.Stop)
	return f
}

// connect registers a connection; a non-empty username is made known to
// the session gate.
func (f *routerFixture) connect(username string) (broker.ConnectionID, *broker.RecordingTransport) {
	transport := &broker.RecordingTransport{}
	id := f.broker.Registry.Register(transport)
	if username != "" {
		f.identities[id] = broker.Identity{Username: username, AuthenticatedAt: time.Now()}
	}
	return id, transport
}

func (f *routerFixture) handle(id broker.ConnectionID, ev broker.Event) error {
	return f.broker.Router.HandleEvent(id, ev)
}

func TestRouter_LobbyScenario(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t, broker.Config{})
	a, aT := f.connect("alice")
	b, bT := f.connect("bob")

	// A joins an empty lobby
	req.NoError(f.handle(a, broker.JoinEvent("lobby")))
	hist := aT.OfKind(broker.FrameHistory)
	req.Len(hist, 1)
	req.Empty(hist[0].History)

	// B joins, A is told
	req.NoError(f.handle(b, broker.JoinEvent("lobby")))
	joined := aT.OfKind(broker.FrameJoined)
	req.Len(joined, 1)
	req.Equal("bob", joined[0].Username)
	bHist := bT.OfKind(broker.FrameHistory)
	req.Len(bHist, 1)
	req.Empty(bHist[0].History)

	// A says hi, both see it with seq 1
	req.NoError(f.handle(a, broker.SendEvent("hi")))
	for _, transport := range []*broker.RecordingTransport{aT, bT} {
		messages := transport.OfKind(broker.FrameMessage)
		req.Len(messages, 1)
		req.Equal("alice", messages[0].Message.Sender)
		req.Equal("hi", messages[0].Message.Text)
		req.Equal(uint64(1), messages[0].Message.Seq)
	}

	// B disconnects, A is told
	req.NoError(f.handle(b, broker.DisconnectEvent()))
	left := aT.OfKind(broker.FrameLeft)
	req.Len(left, 1)
	req.Equal("bob", left[0].Username)
	req.Equal([]broker.ConnectionID{a}, f.broker.Rooms.Members("lobby"))
}

func TestRouter_JoinAuthenticatesThroughGate(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t, broker.Config{})
	a, _ := f.connect("alice")

	req.NoError(f.handle(a, broker.JoinEvent("lobby")))

	conn, ok := f.broker.Registry.Lookup(a)
	req.True(ok)
	req.Equal("alice", conn.Identity.Username)
	req.Equal("lobby", conn.Room)
}

func TestRouter_JoinWithoutSessionFails(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t, broker.Config{})
	anon, anonT := f.connect("")
	a, aT := f.connect("alice")
	req.NoError(f.handle(a, broker.JoinEvent("lobby")))
	aT.Reset()

	err := f.handle(anon, broker.JoinEvent("lobby"))

	req.ErrorIs(err, broker.ErrNotAuthenticated)
	failures := anonT.OfKind(broker.FrameError)
	req.Len(failures, 1)
	req.Equal("not_authenticated", failures[0].Code)
	req.Empty(aT.Frames())
	req.Equal([]broker.ConnectionID{a}, f.broker.Rooms.Members("lobby"))
}

func TestRouter_SendBeforeJoinFails(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t, broker.Config{})
	a, aT := f.connect("alice")
	b, bT := f.connect("bob")
	req.NoError(f.handle(b, broker.JoinEvent("lobby")))
	bT.Reset()

	err := f.handle(a, broker.SendEvent("hello?"))

	req.ErrorIs(err, broker.ErrNotInRoom)
	req.Len(aT.OfKind(broker.FrameError), 1)
	req.Equal("not_in_room", aT.OfKind(broker.FrameError)[0].Code)
	req.Empty(aT.OfKind(broker.FrameMessage))
	req.Empty(bT.Frames())
}

func TestRouter_RepeatedJoinKeepsSingleMembership(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t, broker.Config{})
	a, aT := f.connect("alice")
	b, _ := f.connect("bob")
	req.NoError(f.handle(a, broker.JoinEvent("lobby")))
	req.NoError(f.handle(b, broker.JoinEvent("lobby")))

	req.NoError(f.handle(b, broker.JoinEvent("lobby")))
	req.NoError(f.handle(b, broker.JoinEvent(" lobby ")))

	req.Equal([]broker.ConnectionID{a, b}, f.broker.Rooms.Members("lobby"))
	req.Len(aT.OfKind(broker.FrameJoined), 1)
}

func TestRouter_LeaveThenDisconnectBroadcastsOnce(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t, broker.Config{})
	a, aT := f.connect("alice")
	b, _ := f.connect("bob")
	req.NoError(f.handle(a, broker.JoinEvent("lobby")))
	req.NoError(f.handle(b, broker.JoinEvent("lobby")))

	req.NoError(f.handle(b, broker.LeaveEvent()))
	req.NoError(f.handle(b, broker.DisconnectEvent()))

	req.Len(aT.OfKind(broker.FrameLeft), 1)
}

func TestRouter_LeaveOutsideRoomReportsNotInRoom(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t, broker.Config{})
	a, aT := f.connect("alice")

	err := f.handle(a, broker.LeaveEvent())

	req.ErrorIs(err, broker.ErrNotInRoom)
	req.Equal("not_in_room", aT.OfKind(broker.FrameError)[0].Code)
}

func TestRouter_InvalidEvents(t *testing.T) {
	tests := []struct {
		name  string
		event broker.Event
	}{
		{name: "unknown kind", event: broker.Event{Kind: broker.EventUnknown}},
		{name: "out of range kind", event: broker.Event{Kind: broker.EventKind(42)}},
		{name: "blank room", event: broker.JoinEvent("   ")},
		{name: "room name too long", event: broker.JoinEvent(strings.Repeat("r", broker.MaxRoomNameLength+1))},
		{name: "oversized text", event: broker.SendEvent(strings.Repeat("x", 11))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			f := newRouterFixture(t, broker.Config{MaxTextLength: 10})
			a, aT := f.connect("alice")
			req.NoError(f.handle(a, broker.JoinEvent("lobby")))
			aT.Reset()

			err := f.handle(a, tt.event)

			req.ErrorIs(err, broker.ErrInvalidEvent)
			failures := aT.OfKind(broker.FrameError)
			req.Len(failures, 1)
			req.Equal("invalid_event", failures[0].Code)
			req.Empty(f.broker.Rooms.History("lobby"))
		})
	}
}

func TestRouter_TextAtLimitIsAccepted(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t, broker.Config{MaxTextLength: 5})
	a, _ := f.connect("alice")
	req.NoError(f.handle(a, broker.JoinEvent("lobby")))

	req.NoError(f.handle(a, broker.SendEvent("héllo")))
	req.Len(f.broker.Rooms.History("lobby"), 1)
}

func TestRouter_BlankTextReportsEmptyMessage(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t, broker.Config{})
	a, aT := f.connect("alice")
	req.NoError(f.handle(a, broker.JoinEvent("lobby")))

	err := f.handle(a, broker.SendEvent("   "))

	req.ErrorIs(err, broker.ErrEmptyMessage)
	req.Equal("empty_message", aT.OfKind(broker.FrameError)[0].Code)
}

func TestRouter_FailedDeliverySwallowedDuringFanOut(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	f := newRouterFixture(t, broker.Config{})
	a, aT := f.connect("alice")

	flaky := mocks.NewMockTransport(ctrl)
	flaky.EXPECT().Deliver(gomock.Any()).Return(nil).Times(1) // history frame
	flaky.EXPECT().Deliver(gomock.Any()).Return(errors.New("send buffer full")).AnyTimes()
	b := f.broker.Registry.Register(flaky)
	f.identities[b] = broker.Identity{Username: "bob"}

	req.NoError(f.handle(a, broker.JoinEvent("lobby")))
	req.NoError(f.handle(b, broker.JoinEvent("lobby")))

	req.NoError(f.handle(a, broker.SendEvent("anyone?")))
	req.Len(aT.OfKind(broker.FrameMessage), 1)
}

func TestRouter_DisconnectOfUnknownConnectionIsSilent(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t, broker.Config{})
	a, aT := f.connect("alice")

	req.NoError(f.handle(a, broker.DisconnectEvent()))
	req.NoError(f.handle(a, broker.DisconnectEvent()))
	req.Empty(aT.Frames())
}

func TestErrorCode(t *testing.T) {
	req := require.New(t)
	req.Equal("not_in_room", broker.ErrorCode(broker.ErrNotInRoom))
	req.Equal("connection_gone", broker.ErrorCode(errors.Join(errors.New("boom"), broker.ErrConnectionGone)))
	req.Equal("internal", broker.ErrorCode(errors.New("boom")))
}

func TestRouter_GateFuncAsSessionGate(t *testing.T) {
	req := require.New(t)
	var admitted broker.ConnectionID
	gate := broker.GateFunc(func(id broker.ConnectionID) (broker.Identity, bool) {
		if id != admitted {
			return broker.Identity{}, false
		}
		return broker.Identity{Username: "alice"}, true
	})
	b := broker.New(broker.Config{}, gate, slog.New(slog.DiscardHandler))
	t.Cleanup(b.Stop)

	transport := &broker.RecordingTransport{}
	admitted = b.Registry.Register(transport)
	other := b.Registry.Register(&broker.RecordingTransport{})

	req.NoError(b.Router.HandleEvent(admitted, broker.JoinEvent("lobby")))
	req.ErrorIs(b.Router.HandleEvent(other, broker.JoinEvent("lobby")), broker.ErrNotAuthenticated)
	req.Equal([]broker.ConnectionID{admitted}, b.Rooms.Members("lobby"))
	req.Len(transport.OfKind(broker.FrameHistory), 1)
}
