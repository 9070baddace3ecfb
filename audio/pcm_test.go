// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zaf/g711"
)

func TestSwapInt16(t *testing.T) {
	s := []int16{0x0102, -2, 0}
	SwapInt16(s)
	assert.Equal(t, []int16{0x0201, int16(-257), 0}, s) // 0xfffe -> 0xfeff
	SwapInt16(s)
	assert.Equal(t, []int16{0x0102, -2, 0}, s)
}

func TestInt16sBytes(t *testing.T) {
	raw := []byte{0x01, 0x02, 0xff, 0xff, 0x00, 0x80, 0x99}
	s := Int16sFromBytes(nil, raw)
	assert.Equal(t, []int16{0x0201, -1, -32768}, s)

	back := Int16sToBytes(nil, s)
	assert.Equal(t, raw[:6], back)

	// Buffers with capacity are reused
	dst := make([]int16, 0, 8)
	s2 := Int16sFromBytes(dst, raw)
	assert.Same(t, &dst[:1][0], &s2[0])
}

func TestDecodeBurst(t *testing.T) {
	lpcm := Int16sToBytes(nil, []int16{0, 1000, -1000, 8000})

	tests := []struct {
		name    string
		enc     Encoding
		payload []byte
	}{
		{"L16", EncodingLinear16, lpcm},
		{"PCMU", EncodingULaw, g711.EncodeUlaw(lpcm)},
		{"PCMA", EncodingALaw, g711.EncodeAlaw(lpcm)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			samples, err := DecodeBurst(tc.enc, tc.payload, nil)
			require.NoError(t, err)
			require.Len(t, samples, 4)
			assert.Equal(t, 4, tc.enc.SampleCount(len(tc.payload)))
			// Companding is lossy, compare roughly
			for i, expected := range []int16{0, 1000, -1000, 8000} {
				assert.InDelta(t, expected, samples[i], 300)
			}
		})
	}

	_, err := DecodeBurst(Encoding(42), lpcm, nil)
	assert.Error(t, err)
}

func TestSilenceDetectRMS(t *testing.T) {
	assert.True(t, SilenceDetectRMS(make([]int16, 160), 10))
	assert.True(t, SilenceDetectRMS(nil, 10))
	assert.False(t, SilenceDetectRMS(testSine(160, 8000), 10))
}
