package orch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Spotlight/internal/app"
	"github.com/dkeye/Spotlight/internal/app/reconcile"
	"github.com/dkeye/Spotlight/internal/app/spotlight"
	"github.com/dkeye/Spotlight/internal/core"
	"github.com/dkeye/Spotlight/internal/domain"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

type fakeSignal struct {
	mu     sync.Mutex
	frames []map[string]any
	full   bool
}

func (f *fakeSignal) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return core.ErrBackpressure
	}
	var m map[string]any
	if err := json.Unmarshal(fr, &m); err != nil {
		return err
	}
	f.frames = append(f.frames, m)
	return nil
}

func (f *fakeSignal) Close() {}

// last returns the latest frame of type typ.
func (f *fakeSignal) last(typ string) (map[string]any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.frames) - 1; i >= 0; i-- {
		if f.frames[i]["type"] == typ {
			return f.frames[i], true
		}
	}
	return nil, false
}

func (f *fakeSignal) hasNotice(msg string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fr := range f.frames {
		if fr["type"] == "notice" && fr["message"] == msg {
			return true
		}
	}
	return false
}

// latestStage returns "stage:<participant>" or "stage_clear" for the newest stage frame.
func (f *fakeSignal) latestStage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.frames) - 1; i >= 0; i-- {
		switch f.frames[i]["type"] {
		case "stage":
			return "stage:" + f.frames[i]["participant"].(string)
		case "stage_clear":
			return "stage_clear"
		}
	}
	return ""
}

type chanSource chan *rtp.Packet

func (c chanSource) ReadRTP() (*rtp.Packet, error) {
	p, ok := <-c
	if !ok {
		return nil, io.EOF
	}
	return p, nil
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestOrch(t *testing.T) *Orchestrator {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, app.NewRegistry(), app.NewRoomManager(), app.NewDropCountPolicy(3), nil,
		StageOptions{Retry: reconcile.DefaultPolicy()})
}

func connect(o *Orchestrator, sid core.SessionID, name string) *fakeSignal {
	sig := &fakeSignal{}
	p := o.Registry.GetOrCreateParticipant(sid)
	_ = p.SetName(name)
	sess := core.NewMemberSession(domain.NewMember(p)).UpdateSignal(sig)
	o.Registry.BindSignal(sid, sess, func() {})
	return sig
}

func TestStageFollowsRoomMedia(t *testing.T) {
	o := newTestOrch(t)
	sigA := connect(o, "a", "alice")
	sigB := connect(o, "b", "bob")

	if _, ok := o.Join("a", "main"); !ok {
		t.Fatal("join a failed")
	}
	if _, ok := o.Join("b", "main"); !ok {
		t.Fatal("join b failed")
	}
	eventually(t, "join notice", func() bool { return sigA.hasNotice("bob joined the call") })

	src := make(chanSource)
	cam, ok := o.Publish(context.Background(), "b", domain.TrackCamera, 0, src)
	if !ok {
		t.Fatal("publish failed")
	}
	eventually(t, "a sees bob", func() bool { return sigA.latestStage() == "stage:b" })
	eventually(t, "b sees itself", func() bool { return sigB.latestStage() == "stage:b" })

	frame, _ := sigA.last("stage")
	if frame["label"] != "bob's video" || frame["track"] != string(cam.ID) || frame["screen"] != false {
		t.Errorf("unexpected stage frame %v", frame)
	}

	snap, err := o.Snapshot(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Stage.Participant != "b" || snap.Rule != spotlight.RuleFallback {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	if err := o.Pin("a", "a"); err != nil {
		t.Fatal(err)
	}
	eventually(t, "pin on self clears stage", func() bool { return sigA.latestStage() == "stage_clear" })
	if err := o.ClearPin("a"); err != nil {
		t.Fatal(err)
	}
	eventually(t, "back to bob", func() bool { return sigA.latestStage() == "stage:b" })

	if _, ok := o.Leave("b"); !ok {
		t.Fatal("leave failed")
	}
	eventually(t, "stage cleared after bob left", func() bool { return sigA.latestStage() == "stage_clear" })
	eventually(t, "leave notice", func() bool { return sigA.hasNotice("bob left the call") })
	if o.Relays.HasRelay(cam.ID) {
		t.Error("leaving must stop the member's relays")
	}
	if err := o.Pin("b", "a"); !errors.Is(err, ErrNotInRoom) {
		t.Errorf("expected ErrNotInRoom, got %v", err)
	}
}

func TestSourceEndWithdrawsTrack(t *testing.T) {
	o := newTestOrch(t)
	sigA := connect(o, "a", "alice")
	connect(o, "b", "bob")
	o.Join("a", "main")
	o.Join("b", "main")

	src := make(chanSource)
	if _, ok := o.Publish(context.Background(), "b", domain.TrackScreen, 0, src); !ok {
		t.Fatal("publish failed")
	}
	eventually(t, "share on stage", func() bool {
		f, ok := sigA.last("stage")
		return ok && f["screen"] == true
	})
	close(src)
	eventually(t, "share withdrawn", func() bool { return sigA.latestStage() == "stage_clear" })
	eventually(t, "share end notice", func() bool { return sigA.hasNotice("bob stopped sharing their screen") })

	room, _ := o.Rooms.GetRoom("main")
	for _, m := range room.MembersSnapshot() {
		if m.Screen != "" {
			t.Errorf("screen still published for %s", m.ID)
		}
	}
}

func TestUnpublishAndSpeaking(t *testing.T) {
	o := newTestOrch(t)
	sigA := connect(o, "a", "alice")
	connect(o, "b", "bob")
	o.Join("a", "main")
	o.Join("b", "main")

	srcB, srcC := make(chanSource), make(chanSource)
	o.Publish(context.Background(), "a", domain.TrackCamera, 0, srcC)
	o.Publish(context.Background(), "b", domain.TrackCamera, 0, srcB)
	eventually(t, "fallback to alice", func() bool { return sigA.latestStage() == "stage:a" })

	if err := o.SetSpeaking("b", true); err != nil {
		t.Fatal(err)
	}
	eventually(t, "speaker on stage", func() bool { return sigA.latestStage() == "stage:b" })

	if !o.Unpublish("b", domain.TrackCamera) {
		t.Fatal("unpublish failed")
	}
	eventually(t, "falls back after unpublish", func() bool { return sigA.latestStage() == "stage:a" })
	if o.Unpublish("b", domain.TrackCamera) {
		t.Error("second unpublish must report false")
	}
	if err := o.SetSpeaking("nobody", true); !errors.Is(err, ErrNotInRoom) {
		t.Errorf("expected ErrNotInRoom, got %v", err)
	}
	close(srcB)
	close(srcC)
}

func TestSlowMemberIsKicked(t *testing.T) {
	o := newTestOrch(t)
	connect(o, "a", "alice")
	slow := connect(o, "c", "carol")
	o.Join("a", "main")
	o.Join("c", "main")

	slow.mu.Lock()
	slow.full = true
	slow.mu.Unlock()

	for range 3 {
		o.Broadcast("a", map[string]string{"type": "ping"})
	}
	eventually(t, "slow member removed", func() bool {
		_, _, ok := o.Registry.RoomOf("c")
		return !ok
	})
	room, ok := o.Rooms.GetRoom("main")
	if !ok || room.MemberCount() != 1 {
		t.Fatal("only alice should remain")
	}
}

func TestOnDisconnectIgnoresStaleSession(t *testing.T) {
	o := newTestOrch(t)
	connect(o, "a", "alice")
	stale, _ := o.Registry.GetSession("a")
	connect(o, "a", "alice")
	o.Join("a", "main")

	o.OnDisconnect("a", stale)
	if _, _, ok := o.Registry.RoomOf("a"); !ok {
		t.Fatal("stale disconnect must not remove the live session")
	}
	live, _ := o.Registry.GetSession("a")
	o.OnDisconnect("a", live)
	if _, ok := o.Registry.GetSession("a"); ok {
		t.Fatal("live disconnect should unbind")
	}
	if _, ok := o.Rooms.GetRoom("main"); ok {
		t.Error("empty room should be stopped")
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		stream, track string
		want          domain.TrackKind
	}{
		{"cam-stream", "video0", domain.TrackCamera},
		{"screen-1234", "v", domain.TrackScreen},
		{"s", "ScreenShare", domain.TrackScreen},
	}
	for _, tc := range cases {
		if got := KindOf(tc.stream, tc.track); got != tc.want {
			t.Errorf("KindOf(%q,%q) = %s", tc.stream, tc.track, got)
		}
	}
}

type fakeMedia struct {
	stage  *webrtc.TrackLocalStaticRTP
	closed bool
}

func newFakeMedia(t *testing.T) *fakeMedia {
	t.Helper()
	tr, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "stage", "spotlight-stage")
	if err != nil {
		t.Fatal(err)
	}
	return &fakeMedia{stage: tr}
}

func (m *fakeMedia) Start(context.Context) error                                             { return nil }
func (m *fakeMedia) Close()                                                                  { m.closed = true }
func (m *fakeMedia) IsClosed() bool                                                          { return m.closed }
func (m *fakeMedia) AddICECandidate(webrtc.ICECandidateInit) error                           { return nil }
func (m *fakeMedia) OnICECandidate(func(webrtc.ICECandidateInit))                            {}
func (m *fakeMedia) StageTrack() *webrtc.TrackLocalStaticRTP                                 { return m.stage }
func (m *fakeMedia) WriteRTCP([]rtcp.Packet) error                                           { return nil }
func (m *fakeMedia) OnClosed(func())                                                         {}
func (m *fakeMedia) OnTrack(func(context.Context, *webrtc.TrackRemote, *webrtc.RTPReceiver)) {}
func (m *fakeMedia) ApplyOfferAndCreateAnswer(webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	return &webrtc.SessionDescription{}, nil
}

func TestStageOutputSurvivesMediaChurn(t *testing.T) {
	o := newTestOrch(t)
	sigA := connect(o, "a", "alice")
	connect(o, "b", "bob")
	o.Join("a", "main")
	o.Join("b", "main")

	src := make(chanSource)
	defer close(src)
	cam, ok := o.Publish(context.Background(), "b", domain.TrackCamera, 0, src)
	if !ok {
		t.Fatal("publish failed")
	}
	// The selection is made before a has any media.
	eventually(t, "a sees bob", func() bool { return sigA.latestStage() == "stage:b" })

	sessA, _ := o.Registry.GetSession("a")
	mc := newFakeMedia(t)
	sessA.UpdateMedia(mc)
	b, ok := o.OnMediaReady("a")
	if !ok || b.Source != cam.ID || b.StreamID != "spotlight-stage" {
		t.Fatalf("unexpected binding %+v ok=%v", b, ok)
	}

	o.OnMediaDisconnect("a", mc)
	if !mc.closed {
		t.Error("media should be closed")
	}
	if _, ok := o.Relays.StageSource("a"); ok {
		t.Error("no stage source without media")
	}
	sessA.UpdateMedia(newFakeMedia(t))
	if b, ok := o.OnMediaReady("a"); !ok || b.Source != cam.ID {
		t.Fatalf("selection should survive reconnecting media, got %+v ok=%v", b, ok)
	}

	if o.Relays.Viewers() != 2 {
		t.Fatalf("expected 2 stage viewers, got %d", o.Relays.Viewers())
	}
	o.Leave("a")
	if o.Relays.Viewers() != 1 {
		t.Fatalf("expected 1 stage viewer after leave, got %d", o.Relays.Viewers())
	}
	// A render command from a's stopping loop arrives after teardown.
	(&mediaSink{sid: "a", relays: o.Relays}).ShowOnStage(cam, "bob's video", false)
	if o.Relays.Viewers() != 1 {
		t.Errorf("late stage command recreated a's entry, %d viewers", o.Relays.Viewers())
	}
}
