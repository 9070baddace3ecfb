// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package wavcapture

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/broadcastwav/wavcapture/audio"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrSessionNotStarted = errors.New("session is not started")
	ErrSessionFinished   = errors.New("session is finished")
)

// SessionDirLayout names per session directory under base dir
const SessionDirLayout = "20060102_150405"

type SessionOption func(s *Session)

func WithSessionLogger(l zerolog.Logger) SessionOption {
	return func(s *Session) {
		s.log = l
	}
}

// WithTargetSampleRate sets rate all channels are resampled to.
// Zero keeps rate of first burst per channel.
func WithTargetSampleRate(rate uint32) SessionOption {
	return func(s *Session) {
		s.targetRate = rate
	}
}

// WithChannelOptions are applied to every channel session opens
func WithChannelOptions(opts ...ChannelOption) SessionOption {
	return func(s *Session) {
		s.channelOpts = append(s.channelOpts, opts...)
	}
}

// WithActiveNotify is called with true on Start and false when session ends.
// Useful for refreshing listing of recordings.
func WithActiveNotify(f func(active bool)) SessionOption {
	return func(s *Session) {
		s.onActive = f
	}
}

func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

type sessionState int

const (
	sessionIdle sessionState = iota
	sessionStarted
	sessionFinished
)

// Session consumes capture lifecycle signals and bursts.
// Every channel gets own file, resampler and writer under
// <dir>/<start time>/<channel>.wav. Channels share no state, so bursts of
// different channels can be handled from different goroutines.
type Session struct {
	ID string

	baseDir    string
	dir        string
	targetRate uint32

	mu       sync.Mutex
	state    sessionState
	channels map[ChannelID]*Channel
	paused   atomic.Bool

	channelOpts []ChannelOption
	onActive    func(active bool)
	now         func() time.Time
	log         zerolog.Logger
}

func NewSession(dir string, opts ...SessionOption) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		baseDir:  dir,
		channels: make(map[ChannelID]*Channel),
		now:      time.Now,
		log:      log.With().Str("caller", "session").Logger(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With().Str("session", s.ID).Logger()
	return s
}

// Dir is directory of this session recordings. Empty before Start
func (s *Session) Dir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir
}

func (s *Session) Paused() bool {
	return s.paused.Load()
}

// Channel returns opened channel or nil
func (s *Session) Channel(id ChannelID) *Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channels[id]
}

// Start handles stream started signal. Session directory is created here;
// when another session already took the same second, session ID is appended.
func (s *Session) Start() error {
	s.mu.Lock()
	switch s.state {
	case sessionStarted:
		s.mu.Unlock()
		return nil
	case sessionFinished:
		s.mu.Unlock()
		return ErrSessionFinished
	}

	dir, err := s.makeDir()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = sessionStarted
	s.dir = dir
	s.mu.Unlock()

	s.log.Info().Str("dir", dir).Msg("Capture started")
	s.notify(true)
	return nil
}

func (s *Session) makeDir() (string, error) {
	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return "", &audio.IOError{Op: "mkdir", Path: s.baseDir, Err: err}
	}

	stamp := s.now().Format(SessionDirLayout)
	dir := filepath.Join(s.baseDir, stamp)
	err := os.Mkdir(dir, 0755)
	if errors.Is(err, fs.ErrExist) {
		dir = filepath.Join(s.baseDir, stamp+"_"+s.ID)
		err = os.Mkdir(dir, 0755)
	}
	if err != nil {
		return "", &audio.IOError{Op: "mkdir", Path: dir, Err: err}
	}
	return dir, nil
}

// Pause only marks session paused. Bursts that still arrive are written.
func (s *Session) Pause() {
	s.paused.Store(true)
	s.log.Info().Msg("Capture paused")
}

func (s *Session) Resume() {
	s.paused.Store(false)
	s.log.Info().Msg("Capture resumed")
}

// HandleBurst routes burst to its channel, opening channel on first burst.
// Error is returned for the burst only, channel stays open.
func (s *Session) HandleBurst(b Burst) error {
	ch, err := s.channel(b.Channel)
	if err != nil {
		return err
	}

	if err := ch.Submit(b); err != nil {
		s.log.Error().Err(err).Str("channel", b.Channel.String()).Msg("Dropping burst")
		return err
	}
	return nil
}

func (s *Session) channel(id ChannelID) (*Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case sessionIdle:
		return nil, ErrSessionNotStarted
	case sessionFinished:
		return nil, ErrSessionFinished
	}

	if ch, exists := s.channels[id]; exists {
		return ch, nil
	}

	path := filepath.Join(s.dir, id.String()+".wav")
	opts := append([]ChannelOption{WithChannelLogger(s.log.With().Str("channel", id.String()).Logger())}, s.channelOpts...)
	ch, err := OpenChannel(path, s.targetRate, opts...)
	if err != nil {
		return nil, err
	}
	s.channels[id] = ch
	return ch, nil
}

// Finish handles normal stream end. Every channel is finalized independently,
// failure of one does not stop others.
func (s *Session) Finish() error {
	channels, wasStarted, err := s.end()
	if err != nil {
		return err
	}

	var errs []error
	for id, ch := range channels {
		if err := ch.Close(); err != nil {
			errs = append(errs, err)
			continue
		}
		s.log.Info().Str("channel", id.String()).Str("path", ch.Path()).Msg("Recording saved")
	}
	if wasStarted {
		s.notify(false)
	}
	return errors.Join(errs...)
}

// FinishWithError handles stream ending with error. Files are released
// without finalizing and keep placeholder header.
func (s *Session) FinishWithError(cause error) error {
	channels, wasStarted, err := s.end()
	if err != nil {
		return err
	}

	s.log.Error().Err(cause).Msg("Capture finished with error")
	var errs []error
	for _, ch := range channels {
		errs = append(errs, ch.Abandon())
	}
	if wasStarted {
		s.notify(false)
	}
	return errors.Join(errs...)
}

// end marks session finished and reports whether it was started
func (s *Session) end() (map[ChannelID]*Channel, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == sessionFinished {
		return nil, false, ErrSessionFinished
	}
	wasStarted := s.state == sessionStarted
	s.state = sessionFinished
	return s.channels, wasStarted, nil
}

func (s *Session) notify(active bool) {
	if s.onActive != nil {
		s.onActive(active)
	}
}
