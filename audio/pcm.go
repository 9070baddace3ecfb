// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package audio

import (
	"fmt"

	"github.com/zaf/g711"
)

// Encoding of burst payload as delivered by source
type Encoding int

const (
	// EncodingLinear16 is signed 16 bit linear PCM, byte order given separately
	EncodingLinear16 Encoding = iota
	EncodingULaw
	EncodingALaw
)

func (e Encoding) String() string {
	switch e {
	case EncodingLinear16:
		return "L16"
	case EncodingULaw:
		return "PCMU"
	case EncodingALaw:
		return "PCMA"
	}
	return fmt.Sprintf("encoding(%d)", int(e))
}

// DecodeBurst converts payload to 16 bit samples reusing dst.
// G.711 payloads are expanded to little endian LPCM, so they are always
// little endian after decoding regardless of what source reported.
func DecodeBurst(enc Encoding, payload []byte, dst []int16) ([]int16, error) {
	switch enc {
	case EncodingLinear16:
		return Int16sFromBytes(dst, payload), nil
	case EncodingULaw:
		// This creates allocation
		return Int16sFromBytes(dst, g711.DecodeUlaw(payload)), nil
	case EncodingALaw:
		return Int16sFromBytes(dst, g711.DecodeAlaw(payload)), nil
	}
	return dst[:0], fmt.Errorf("not supported encoding %d", enc)
}

// SampleCount is number of samples payload holds once decoded
func (e Encoding) SampleCount(payloadLen int) int {
	if e == EncodingLinear16 {
		return payloadLen / 2
	}
	return payloadLen
}
