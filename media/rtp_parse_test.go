// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package media

import (
	"io"
	"testing"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRTPUnmarshalReusesPayload(t *testing.T) {
	writePkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    11,
			SequenceNumber: 7,
			SSRC:           1234,
		},
		Payload: []byte{1, 2, 3, 4},
	}
	data, err := writePkt.Marshal()
	require.NoError(t, err)

	payloadBuf := make([]byte, 0, 100)
	pkt := rtp.Packet{Payload: payloadBuf}
	require.NoError(t, RTPUnmarshal(data, &pkt))
	assert.Equal(t, writePkt.Payload, pkt.Payload)
	assert.Same(t, &payloadBuf[:1][0], &pkt.Payload[0])

	// buf can be reused without touching parsed payload
	data[len(data)-1] = 99
	assert.Equal(t, byte(4), pkt.Payload[3])

	err = RTPUnmarshal(data[:5], &pkt)
	assert.Error(t, err)
}

func TestRTCPUnmarshalGoodbye(t *testing.T) {
	data, err := rtcp.Marshal([]rtcp.Packet{
		&rtcp.ReceiverReport{SSRC: 1},
		&rtcp.Goodbye{Sources: []uint32{1234, 5678}},
	})
	require.NoError(t, err)

	pkts := make([]rtcp.Packet, 5)
	n, err := RTCPUnmarshal(data, pkts)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	assert.Equal(t, []uint32{1234, 5678}, GoodbyeSources(pkts[:n]))

	_, err = RTCPUnmarshal([]byte{0x80, 0xcb, 0x00, 0x10}, pkts)
	assert.ErrorIs(t, err, errRTCPFailedToUnmarshal)
}

func BenchmarkRTCPUnmarshal(b *testing.B) {
	reader, writer := io.Pipe()
	go func() {
		for {
			sr := rtcp.SenderReport{}
			data, err := sr.Marshal()
			if err != nil {
				return
			}

			writer.Write(data)
		}
	}()

	b.Run("pionRTCP", func(b *testing.B) {
		buf := make([]byte, 1500)
		for i := 0; i < b.N; i++ {
			n, err := reader.Read(buf)
			if err != nil {
				b.Fatal(err)
			}
			pkts, err := rtcp.Unmarshal(buf[:n])
			if err != nil {
				b.Fatal(err)
			}
			if len(pkts) == 0 {
				b.Fatal("no packet read")
			}
		}
	})

	b.Run("RTCPImproved", func(b *testing.B) {
		buf := make([]byte, 1500)
		pkts := make([]rtcp.Packet, 5)
		for i := 0; i < b.N; i++ {
			n, err := reader.Read(buf)
			if err != nil {
				b.Fatal(err)
			}
			n, err = RTCPUnmarshal(buf[:n], pkts)
			if err != nil {
				b.Fatal(err)
			}
			if n < 0 {
				b.Fatal("no read RTCP")
			}
		}
	})
}
