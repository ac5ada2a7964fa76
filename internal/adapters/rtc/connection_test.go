package rtc

import (
	"errors"
	"strings"
	"testing"

	"github.com/dkeye/Spotlight/internal/core"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
)

func TestConnection_answerCarriesStageTrack(t *testing.T) {
	server, err := NewWebRTCConnection(webrtc.Configuration{}, "viewer")
	if err != nil {
		t.Fatal(err)
	}
	defer server.Close()
	if server.StageTrack() == nil || server.StageTrack().StreamID() != StageStreamID {
		t.Fatal("stage track missing")
	}

	client, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	if _, err := client.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo,
		webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}); err != nil {
		t.Fatal(err)
	}
	offer, err := client.CreateOffer(nil)
	if err != nil {
		t.Fatal(err)
	}
	gathered := webrtc.GatheringCompletePromise(client)
	if err := client.SetLocalDescription(offer); err != nil {
		t.Fatal(err)
	}
	<-gathered

	if err := server.Start(t.Context()); err != nil {
		t.Fatal(err)
	}
	answer, err := server.ApplyOfferAndCreateAnswer(*client.LocalDescription())
	if err != nil {
		t.Fatalf("apply offer: %v", err)
	}
	if !strings.Contains(answer.SDP, StageStreamID) {
		t.Error("answer should announce the stage stream")
	}
}

func TestConnection_closeIsIdempotent(t *testing.T) {
	c, err := NewWebRTCConnection(webrtc.Configuration{}, "viewer")
	if err != nil {
		t.Fatal(err)
	}
	calls := 0
	c.OnClosed(func() { calls++ })
	c.Close()
	c.Close()
	if !c.IsClosed() {
		t.Fatal("expected closed")
	}
	if calls != 1 {
		t.Errorf("OnClosed ran %d times", calls)
	}
	err = c.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: 1}})
	if !errors.Is(err, core.ErrConnClosed) {
		t.Errorf("expected ErrConnClosed, got %v", err)
	}
}
