// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package media

import (
	"errors"
	"fmt"
	"sync"

	"github.com/broadcastwav/wavcapture/audio"
	"github.com/rs/zerolog/log"
)

var (
	// Static payload types from RFC 3551 that are mono
	CodecAudioUlaw    = Codec{PayloadType: 0, SampleRate: 8000, Encoding: audio.EncodingULaw}
	CodecAudioAlaw    = Codec{PayloadType: 8, SampleRate: 8000, Encoding: audio.EncodingALaw}
	CodecAudioL16Mono = Codec{PayloadType: 11, SampleRate: 44100, Encoding: audio.EncodingLinear16}

	ErrUnsupportedPayloadType = errors.New("unsupported payload type")

	dynamicCodecs   = map[uint8]Codec{}
	dynamicCodecsMu sync.RWMutex
)

type Codec struct {
	PayloadType uint8
	SampleRate  uint32
	Encoding    audio.Encoding
}

func (c *Codec) String() string {
	return fmt.Sprintf("pt=%d rate=%d enc=%s", c.PayloadType, c.SampleRate, c.Encoding)
}

// ByteOrder of payload on wire. L16 is network order
func (c *Codec) ByteOrder() audio.ByteOrder {
	if c.Encoding == audio.EncodingLinear16 {
		return audio.BigEndian
	}
	return audio.LittleEndian
}

// RegisterCodec maps dynamic payload type (96-127), for example L16/16000
func RegisterCodec(c Codec) error {
	if c.PayloadType < 96 || c.PayloadType > 127 {
		return fmt.Errorf("payload type %d is not dynamic", c.PayloadType)
	}
	if c.SampleRate == 0 {
		return fmt.Errorf("payload type %d has no sample rate", c.PayloadType)
	}
	dynamicCodecsMu.Lock()
	dynamicCodecs[c.PayloadType] = c
	dynamicCodecsMu.Unlock()
	return nil
}

func CodecFromPayloadType(payloadType uint8) (Codec, error) {
	switch payloadType {
	case CodecAudioUlaw.PayloadType:
		return CodecAudioUlaw, nil
	case CodecAudioAlaw.PayloadType:
		return CodecAudioAlaw, nil
	case CodecAudioL16Mono.PayloadType:
		return CodecAudioL16Mono, nil
	}

	dynamicCodecsMu.RLock()
	c, exists := dynamicCodecs[payloadType]
	dynamicCodecsMu.RUnlock()
	if exists {
		return c, nil
	}

	log.Warn().Uint8("pt", payloadType).Msg("Unsupported payload type")
	return Codec{}, fmt.Errorf("%w: %d", ErrUnsupportedPayloadType, payloadType)
}
