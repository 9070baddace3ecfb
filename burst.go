// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package wavcapture

import (
	"fmt"

	"github.com/broadcastwav/wavcapture/audio"
)

// ChannelID identifies independent logical audio stream
type ChannelID int

const (
	ChannelApp ChannelID = iota
	ChannelMic
)

func (id ChannelID) String() string {
	switch id {
	case ChannelApp:
		return "app"
	case ChannelMic:
		return "mic"
	}
	return fmt.Sprintf("channel%d", int(id))
}

// Burst is one delivery of contiguous mono samples from capture source
type Burst struct {
	Channel    ChannelID
	SampleRate uint32
	ByteOrder  audio.ByteOrder
	Encoding   audio.Encoding

	// Raw is payload as delivered. Ignored when Samples is set.
	Raw []byte
	// Samples are 16 bit samples as they lay in source memory.
	// Big endian samples are normalized in place, so slice is modified.
	Samples []int16
}

func (b Burst) SampleCount() int {
	if b.Samples != nil {
		return len(b.Samples)
	}
	return b.Encoding.SampleCount(len(b.Raw))
}

func (b Burst) String() string {
	return fmt.Sprintf("channel=%s rate=%d order=%s enc=%s samples=%d",
		b.Channel, b.SampleRate, b.ByteOrder, b.Encoding, b.SampleCount())
}
