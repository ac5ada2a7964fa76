package sfu

import (
	"sync"
	"sync/atomic"

	"github.com/dkeye/Spotlight/internal/domain"
	"github.com/pion/rtp"
)

type TrackState int32

const (
	TrackStateOk TrackState = iota
	TrackStateMuted
	TrackStateDelete
)

// frameGap is the timestamp advance inserted at a source switch (one frame at 30fps, 90kHz clock).
const frameGap = 3000

// RTPWriter is satisfied by *webrtc.TrackLocalStaticRTP.
type RTPWriter interface {
	WriteRTP(p *rtp.Packet) error
}

// OutTrack is the stage output of one viewer. It is fed by at most one
// relay at a time and rewrites sequence numbers and timestamps so the
// viewer sees a single continuous stream across source switches.
type OutTrack struct {
	Writer RTPWriter
	state  atomic.Int32

	mu        sync.Mutex
	src       domain.TrackID
	rebase    bool
	started   bool
	lastSeq   uint16
	lastTS    uint32
	seqOffset uint16
	tsOffset  uint32
}

func NewOutTrack(w RTPWriter) *OutTrack {
	return &OutTrack{Writer: w}
}

func (ot *OutTrack) GetState() TrackState {
	return TrackState(ot.state.Load())
}

func (ot *OutTrack) MarkOk() {
	ot.state.Store(int32(TrackStateOk))
}

func (ot *OutTrack) MarkMuted() {
	ot.state.Store(int32(TrackStateMuted))
}

func (ot *OutTrack) MarkDelete() {
	ot.state.Store(int32(TrackStateDelete))
}

// Switch makes src the only accepted source from now on.
func (ot *OutTrack) Switch(src domain.TrackID) {
	ot.mu.Lock()
	ot.src = src
	ot.rebase = true
	ot.mu.Unlock()
	ot.MarkOk()
}

func (ot *OutTrack) Source() domain.TrackID {
	ot.mu.Lock()
	defer ot.mu.Unlock()
	return ot.src
}

// Write forwards pkt if it comes from the current source. Packets from a
// previous source still in flight are dropped silently.
func (ot *OutTrack) Write(src domain.TrackID, pkt *rtp.Packet) error {
	ot.mu.Lock()
	defer ot.mu.Unlock()
	if src != ot.src {
		return nil
	}
	if ot.rebase {
		ot.seqOffset, ot.tsOffset = 0, 0
		if ot.started {
			ot.seqOffset = ot.lastSeq + 1 - pkt.SequenceNumber
			ot.tsOffset = ot.lastTS + frameGap - pkt.Timestamp
		}
		ot.rebase = false
	}
	// pkt is shared between subscribers; only the header scalars change.
	out := *pkt
	out.SequenceNumber = pkt.SequenceNumber + ot.seqOffset
	out.Timestamp = pkt.Timestamp + ot.tsOffset
	if err := ot.Writer.WriteRTP(&out); err != nil {
		return err
	}
	ot.started = true
	ot.lastSeq = out.SequenceNumber
	ot.lastTS = out.Timestamp
	return nil
}
