package sfu

import (
	"context"
	"maps"
	"sync"

	"github.com/dkeye/Spotlight/internal/core"
	"github.com/dkeye/Spotlight/internal/domain"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// Source yields RTP packets of one published track.
type Source interface {
	ReadRTP() (*rtp.Packet, error)
}

type remoteSource struct {
	track *webrtc.TrackRemote
}

func (s remoteSource) ReadRTP() (*rtp.Packet, error) {
	pkt, _, err := s.track.ReadRTP()
	return pkt, err
}

// FromRemote adapts a pion remote track.
func FromRemote(t *webrtc.TrackRemote) Source { return remoteSource{track: t} }

// Relay copies one published track to the stage outputs showing it.
type Relay struct {
	Track *domain.Track
	SSRC  uint32
	src   Source

	mu        sync.RWMutex
	outTracks map[core.SessionID]*OutTrack

	cancel context.CancelFunc
	done   chan struct{}
}

func NewRelay(track *domain.Track, ssrc uint32, src Source, cancel context.CancelFunc) *Relay {
	return &Relay{
		Track:     track,
		SSRC:      ssrc,
		src:       src,
		outTracks: make(map[core.SessionID]*OutTrack),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Done is closed when the relay loop has exited.
func (r *Relay) Done() <-chan struct{} { return r.done }

// loop reads RTP packets from the source track and forwards them to all OutTracks.
func (r *Relay) loop(ctx context.Context, logger *zerolog.Logger) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("relay ctx done, detaching out tracks")
			r.detachAll()
			return
		default:
		}
		pkt, err := r.src.ReadRTP()
		if err != nil {
			logger.Info().Err(err).Msg("relay source ended")
			r.detachAll()
			return
		}
		r.forward(pkt, logger)
	}
}

func (r *Relay) forward(pkt *rtp.Packet, logger *zerolog.Logger) {
	r.mu.RLock()
	snapshot := maps.Clone(r.outTracks)
	r.mu.RUnlock()

	dirty := make([]core.SessionID, 0, len(snapshot))
	for dstSID, ot := range snapshot {
		switch ot.GetState() {
		case TrackStateDelete:
			dirty = append(dirty, dstSID)
		case TrackStateMuted:
		case TrackStateOk:
			if err := ot.Write(r.Track.ID, pkt); err != nil {
				logger.Error().
					Err(err).
					Str("dst_sid", string(dstSID)).
					Msg("relay write RTP error, marking outtrack as delete")
				ot.MarkDelete()
				dirty = append(dirty, dstSID)
			}
		}
	}

	// Cleanup is done outside the RLock.
	if len(dirty) > 0 {
		r.cleanupDeleted(dirty)
	}
}

func (r *Relay) cleanupDeleted(dirty []core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sid := range dirty {
		delete(r.outTracks, sid)
	}
}

// detachAll drops every subscriber without touching the out tracks, which
// belong to their viewers and outlive any single relay.
func (r *Relay) detachAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.outTracks)
}

func (r *Relay) AddOutTrack(dst core.SessionID, ot *OutTrack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outTracks[dst] = ot
}

func (r *Relay) RemoveOutTrack(dst core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.outTracks, dst)
}

func (r *Relay) Subscribers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.outTracks)
}
