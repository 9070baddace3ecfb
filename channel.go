// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package wavcapture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/broadcastwav/wavcapture/audio"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrChannelFinalized = errors.New("channel is finalized")
)

type ChannelState int

const (
	ChannelIdle ChannelState = iota
	ChannelActive
	ChannelFinalized
)

func (s ChannelState) String() string {
	switch s {
	case ChannelIdle:
		return "idle"
	case ChannelActive:
		return "active"
	case ChannelFinalized:
		return "finalized"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ChannelStats are counters of processed bursts
type ChannelStats struct {
	Bursts        uint64
	DroppedBursts uint64
	SilentBursts  uint64
	InputSamples  uint64
	OutputSamples uint64
	BytesWritten  uint64
}

type channelConfig struct {
	log              zerolog.Logger
	inFlight         int
	maxBurstSamples  int
	silenceThreshold float64
}

type ChannelOption func(c *channelConfig)

func WithChannelLogger(l zerolog.Logger) ChannelOption {
	return func(c *channelConfig) {
		c.log = l
	}
}

// WithInFlightBuffers sets resampler output buffer pool size
func WithInFlightBuffers(k int) ChannelOption {
	return func(c *channelConfig) {
		c.inFlight = k
	}
}

// WithMaxBurstSamples limits resampler buffer growth. Zero is unlimited
func WithMaxBurstSamples(n int) ChannelOption {
	return func(c *channelConfig) {
		c.maxBurstSamples = n
	}
}

// WithSilenceThreshold sets RMS under which burst is counted as silent
func WithSilenceThreshold(rms float64) ChannelOption {
	return func(c *channelConfig) {
		c.silenceThreshold = rms
	}
}

// Channel pairs one Resampler and one WAV file writer.
// State moves Idle -> Active (first burst) -> Finalized. File is created on
// first burst, since rate may be known only then.
// Submits are serialized, so channel can be fed from any goroutine, but bursts
// must be submitted in order.
type Channel struct {
	mu sync.Mutex

	path       string
	targetRate uint32
	state      ChannelState

	resampler *audio.Resampler
	writer    *audio.WavFile

	samples []int16
	pcm     []byte

	stats            ChannelStats
	silenceThreshold float64
	log              zerolog.Logger
}

// OpenChannel creates channel handle writing to path at targetSampleRate.
// With targetSampleRate zero, rate of first burst is used.
// No file is created until first burst.
func OpenChannel(path string, targetSampleRate uint32, opts ...ChannelOption) (*Channel, error) {
	conf := channelConfig{
		log:      log.With().Str("caller", "channel").Logger(),
		inFlight: 1,
	}
	for _, o := range opts {
		o(&conf)
	}

	resampler, err := audio.NewResampler(
		audio.WithInFlightBuffers(conf.inFlight),
		audio.WithMaxSamples(conf.maxBurstSamples),
	)
	if err != nil {
		return nil, err
	}

	c := &Channel{
		path:             path,
		targetRate:       targetSampleRate,
		resampler:        resampler,
		silenceThreshold: conf.silenceThreshold,
		log:              conf.log.With().Str("path", path).Logger(),
	}
	return c, nil
}

// SubmitBurst resamples burst and appends it to channel file
func SubmitBurst(c *Channel, b Burst) error {
	return c.Submit(b)
}

// CloseChannel finalizes channel file and releases it
func CloseChannel(c *Channel) error {
	return c.Close()
}

func (c *Channel) Path() string {
	return c.path
}

func (c *Channel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// TargetSampleRate is rate written to file. Zero until known
func (c *Channel) TargetSampleRate() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.targetRate
}

func (c *Channel) Stats() ChannelStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Submit processes one burst to completion. On error burst is dropped and
// channel stays usable, caller decides to continue or abandon.
func (c *Channel) Submit(b Burst) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == ChannelFinalized {
		return ErrChannelFinalized
	}

	c.stats.Bursts++
	if err := c.submit(b); err != nil {
		c.stats.DroppedBursts++
		return err
	}
	return nil
}

func (c *Channel) submit(b Burst) error {
	samples := b.Samples
	order := b.ByteOrder
	if samples == nil {
		var err error
		c.samples, err = audio.DecodeBurst(b.Encoding, b.Raw, c.samples)
		if err != nil {
			return fmt.Errorf("decode burst: %w", err)
		}
		samples = c.samples
		if b.Encoding != audio.EncodingLinear16 {
			// Companded payload is expanded to little endian
			order = audio.LittleEndian
		}
	}

	target := c.targetRate
	if target == 0 {
		target = b.SampleRate
	}

	out, err := c.resampler.Resample(samples, b.SampleRate, order, target)
	if err != nil {
		return fmt.Errorf("resample burst: %w", err)
	}

	if c.state == ChannelIdle {
		w, err := audio.OpenWavFile(c.path, target)
		if err != nil {
			return err
		}
		c.writer = w
		c.targetRate = target
		c.state = ChannelActive
		c.log.Debug().Uint32("source_rate", b.SampleRate).Uint32("target_rate", target).Msg("Channel active")
	}

	c.stats.InputSamples += uint64(len(samples))
	if c.silenceThreshold > 0 && audio.SilenceDetectRMS(out, c.silenceThreshold) {
		c.stats.SilentBursts++
	}
	if len(out) == 0 {
		return nil
	}

	// Output buffer is consumed here, before next Resample call
	c.pcm = audio.Int16sToBytes(c.pcm, out)
	if err := c.writer.Append(c.pcm); err != nil {
		return err
	}
	c.stats.OutputSamples += uint64(len(out))
	c.stats.BytesWritten += uint64(len(c.pcm))
	return nil
}

// Close finalizes header and releases file. Channel that never got a burst
// has no file and is just marked finalized.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case ChannelFinalized:
		return nil
	case ChannelIdle:
		c.state = ChannelFinalized
		c.log.Debug().Msg("Channel closed without audio")
		return nil
	}

	c.state = ChannelFinalized
	errFin := c.writer.Finalize()
	errClose := c.writer.Close()
	if err := errors.Join(errFin, errClose); err != nil {
		c.log.Error().Err(err).Msg("Failed to finalize channel")
		return err
	}

	c.log.Debug().
		Int64("data_size", c.writer.DataSize()).
		Uint64("bursts", c.stats.Bursts).
		Uint64("dropped", c.stats.DroppedBursts).
		Msg("Channel finalized")
	return nil
}

// Abandon releases file without finalizing. File keeps placeholder header.
func (c *Channel) Abandon() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.state
	c.state = ChannelFinalized
	if prev != ChannelActive {
		return nil
	}

	c.log.Warn().Int64("data_size", c.writer.DataSize()).Msg("Channel abandoned, header not finalized")
	return c.writer.Close()
}
