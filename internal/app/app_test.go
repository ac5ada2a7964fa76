package app

import (
	"errors"
	"testing"

	"github.com/dkeye/Spotlight/internal/app/spotlight"
	"github.com/dkeye/Spotlight/internal/core"
	"github.com/dkeye/Spotlight/internal/core/coretest"
	"github.com/dkeye/Spotlight/internal/domain"
	"github.com/rs/zerolog"
)

func newSession(reg *Registry, sid core.SessionID) core.MemberSession {
	return core.NewMemberSession(domain.NewMember(reg.GetOrCreateParticipant(sid)))
}

func TestRegistry_sessionLifecycle(t *testing.T) {
	reg := NewRegistry()
	sess := newSession(reg, "s1")
	cancelled := false
	reg.BindSignal("s1", sess, func() { cancelled = true })

	if _, _, ok := reg.RoomOf("s1"); ok {
		t.Fatal("fresh session must not be in a room")
	}
	if !reg.UpdateRoom("s1", "main") {
		t.Fatal("update room failed")
	}
	if name, got, ok := reg.RoomOf("s1"); !ok || name != "main" || got != sess {
		t.Fatalf("RoomOf = %q %v %v", name, got, ok)
	}
	if members := reg.MembersOfRoom("main"); len(members) != 1 || members[0].SID != "s1" {
		t.Fatalf("unexpected members %+v", members)
	}

	loop := spotlight.NewLoop(spotlight.Options{Local: "s1", Sink: &coretest.RecordingSink{}, Logger: zerolog.Nop()}, 1)
	if !reg.AttachStage("s1", loop) {
		t.Fatal("attach stage failed")
	}
	if got, ok := reg.StageOf("s1"); !ok || got != loop {
		t.Fatal("stage not found")
	}
	if got := reg.RemoveRoom("s1"); got != loop {
		t.Fatal("RemoveRoom should hand back the stage")
	}
	if _, ok := reg.StageOf("s1"); ok {
		t.Fatal("stage should be detached with the room")
	}

	if !reg.Cancel("s1") || !cancelled {
		t.Fatal("cancel not propagated")
	}
	if reg.Unbind("s1", newSession(reg, "s1")) {
		t.Fatal("unbind with a foreign session must be refused")
	}
	if !reg.Unbind("s1", sess) || reg.Len() != 0 {
		t.Fatal("unbind failed")
	}
}

func TestRegistry_rebindCancelsPrevious(t *testing.T) {
	reg := NewRegistry()
	first := false
	reg.BindSignal("s1", newSession(reg, "s1"), func() { first = true })
	reg.BindSignal("s1", newSession(reg, "s1"), func() {})
	if !first {
		t.Fatal("previous connection should be cancelled on rebind")
	}
}

func TestRegistry_participantIdentityIsSession(t *testing.T) {
	reg := NewRegistry()
	p := reg.GetOrCreateParticipant("abc")
	if p.ID != "abc" || p.Name != "guest" {
		t.Fatalf("unexpected participant %+v", p)
	}
	if reg.GetOrCreateParticipant("abc") != p {
		t.Fatal("participant must be reused")
	}
	if err := reg.UpdateName("abc", "alice"); err != nil || p.Name != "alice" {
		t.Fatalf("rename failed: %v", err)
	}
	if err := reg.UpdateName("abc", ""); !errors.Is(err, domain.ErrNameEmpty) {
		t.Fatalf("expected ErrNameEmpty, got %v", err)
	}
}

func TestDropCountPolicy(t *testing.T) {
	p := NewDropCountPolicy(3)
	if a := p.OnBackPressure(nil, "v"); a != MarkSlow {
		t.Fatalf("first drop: %s", a)
	}
	p.OnBackPressure(nil, "v")
	p.OnDelivered("v")
	if p.Drops("v") != 0 {
		t.Fatal("delivery should reset the count")
	}
	p.OnBackPressure(nil, "v")
	p.OnBackPressure(nil, "v")
	if a := p.OnBackPressure(nil, "v"); a != KickMember {
		t.Fatalf("third consecutive drop: %s", a)
	}
	if p.Drops("v") != 0 {
		t.Fatal("count should reset after kick")
	}
}

func TestRoomManager(t *testing.T) {
	m := NewRoomManager()
	if _, ok := m.GetRoom("b"); ok {
		t.Fatal("room should not exist yet")
	}
	b := m.GetOrCreate("b")
	if m.GetOrCreate("b") != b {
		t.Fatal("GetOrCreate must be idempotent")
	}
	m.GetOrCreate("a")
	b.AddMember("s1", core.NewMemberSession(domain.NewMember(domain.NewGuest())))

	list := m.List()
	if len(list) != 2 || list[0].Name != "a" || list[1].Name != "b" || list[1].MemberCount != 1 {
		t.Fatalf("unexpected list %+v", list)
	}
	m.StopRoom("b")
	if _, ok := m.GetRoom("b"); ok {
		t.Fatal("room should be gone")
	}
}
