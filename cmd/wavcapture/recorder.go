// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package main

import (
	"sync"

	"github.com/broadcastwav/wavcapture"
	"github.com/broadcastwav/wavcapture/media"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// First stream seen is app audio, second is mic audio
var captureChannels = []wavcapture.ChannelID{wavcapture.ChannelApp, wavcapture.ChannelMic}

// recorder maps RTP streams to session channels
type recorder struct {
	session *wavcapture.Session
	metrics *Metrics
	log     zerolog.Logger

	mu        sync.Mutex
	ssrcs     map[uint32]wavcapture.ChannelID
	lastBytes map[wavcapture.ChannelID]uint64
}

func newRecorder(s *wavcapture.Session, m *Metrics) *recorder {
	return &recorder{
		session:   s,
		metrics:   m,
		ssrcs:     make(map[uint32]wavcapture.ChannelID),
		lastBytes: make(map[wavcapture.ChannelID]uint64),
		log:       log.With().Str("caller", "recorder").Logger(),
	}
}

func (r *recorder) channelFor(ssrc uint32) (wavcapture.ChannelID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.ssrcs[ssrc]; exists {
		return id, true
	}
	if len(r.ssrcs) >= len(captureChannels) {
		return 0, false
	}
	id := captureChannels[len(r.ssrcs)]
	r.ssrcs[ssrc] = id
	r.log.Info().Uint32("ssrc", ssrc).Str("channel", id.String()).Msg("New stream")
	return id, true
}

func (r *recorder) handleFrame(f media.Frame) error {
	id, ok := r.channelFor(f.SSRC)
	if !ok {
		r.log.Debug().Uint32("ssrc", f.SSRC).Msg("No free channel for stream, ignoring")
		return nil
	}

	if ch := r.session.Channel(id); ch != nil && ch.State() == wavcapture.ChannelFinalized {
		// Stream already said goodbye, late packets are ignored
		return nil
	}

	label := id.String()
	r.metrics.BurstsReceived.WithLabelValues(label).Inc()
	err := r.session.HandleBurst(wavcapture.Burst{
		Channel:    id,
		SampleRate: f.Codec.SampleRate,
		ByteOrder:  f.Codec.ByteOrder(),
		Encoding:   f.Codec.Encoding,
		Raw:        f.Payload,
	})
	if err != nil {
		r.metrics.BurstsDropped.WithLabelValues(label).Inc()
		return err
	}

	if ch := r.session.Channel(id); ch != nil {
		written := ch.Stats().BytesWritten
		r.mu.Lock()
		delta := written - r.lastBytes[id]
		r.lastBytes[id] = written
		r.mu.Unlock()
		r.metrics.BytesWritten.WithLabelValues(label).Add(float64(delta))
	}
	return nil
}

// handleGoodbye ends channel of stream normally
func (r *recorder) handleGoodbye(ssrc uint32) error {
	r.mu.Lock()
	id, exists := r.ssrcs[ssrc]
	r.mu.Unlock()
	if !exists {
		return nil
	}

	ch := r.session.Channel(id)
	if ch == nil || ch.State() == wavcapture.ChannelFinalized {
		return nil
	}
	r.log.Info().Uint32("ssrc", ssrc).Str("channel", id.String()).Msg("Stream said goodbye")
	r.metrics.ChannelsClosed.WithLabelValues("bye").Inc()
	return wavcapture.CloseChannel(ch)
}

// countClosing counts every channel still open before session ends
func (r *recorder) countClosing(reason string) {
	for _, id := range captureChannels {
		ch := r.session.Channel(id)
		if ch == nil || ch.State() == wavcapture.ChannelFinalized {
			continue
		}
		r.metrics.ChannelsClosed.WithLabelValues(reason).Inc()
	}
}
