// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package audio

import (
	"encoding/binary"
	"math"
)

// ByteOrder of samples as delivered by source
type ByteOrder int

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

func (o ByteOrder) String() string {
	if o == BigEndian {
		return "big"
	}
	return "little"
}

// SwapInt16 swaps bytes of every sample in place
func SwapInt16(samples []int16) {
	for i, s := range samples {
		u := uint16(s)
		samples[i] = int16(u<<8 | u>>8)
	}
}

// Int16sFromBytes binds raw burst bytes to samples as they lay in memory
// (little endian host layout). Big endian sources come out swapped and must be
// normalized with SwapInt16, which Resampler does.
// dst is reused when it has capacity. Odd trailing byte is ignored.
func Int16sFromBytes(dst []int16, raw []byte) []int16 {
	n := len(raw) / 2
	if cap(dst) < n {
		dst = make([]int16, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return dst
}

// Int16sToBytes serializes samples as little endian PCM, as WAV expects.
// dst is reused when it has capacity.
func Int16sToBytes(dst []byte, samples []int16) []byte {
	n := len(samples) * 2
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[2*i:], uint16(s))
	}
	return dst
}

// SilenceDetectRMS reports whether RMS energy of samples is under threshold
func SilenceDetectRMS(samples []int16, threshold float64) bool {
	if len(samples) == 0 {
		return true
	}
	var sumSquares float64
	for _, sample := range samples {
		s := float64(sample)
		sumSquares += s * s
	}
	rms := math.Sqrt(sumSquares / float64(len(samples)))
	return rms < threshold
}
