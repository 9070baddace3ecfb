// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package media

import (
	"io"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Frame is payload of one RTP packet with codec resolved
type Frame struct {
	SSRC           uint32
	SequenceNumber uint16
	Timestamp      uint32
	Codec          Codec
	// Payload is valid until next ReadFrame
	Payload []byte
}

// RTPBurstReader reads RTP packets from datagram reader (like *net.UDPConn)
// and returns their payloads as frames. Packets with unknown payload type are
// skipped. It has no jitter buffer, frames come in arrival order.
type RTPBurstReader struct {
	reader io.Reader
	log    zerolog.Logger

	buf    []byte
	packet rtp.Packet

	lastSeq map[uint32]uint16
	lost    uint64
}

func NewRTPBurstReader(r io.Reader) *RTPBurstReader {
	return &RTPBurstReader{
		reader:  r,
		buf:     make([]byte, RTPBufSize),
		packet:  rtp.Packet{Payload: make([]byte, 0, RTPBufSize)},
		lastSeq: make(map[uint32]uint16),
		log:     log.With().Str("caller", "media").Logger(),
	}
}

// Lost is number of packets detected missing by sequence gaps
func (r *RTPBurstReader) Lost() uint64 {
	return r.lost
}

func (r *RTPBurstReader) ReadFrame() (Frame, error) {
	for {
		n, err := r.reader.Read(r.buf)
		if err != nil {
			return Frame{}, err
		}

		pkt := &r.packet
		if err := RTPUnmarshal(r.buf[:n], pkt); err != nil {
			r.log.Debug().Err(err).Int("size", n).Msg("Skipping invalid RTP packet")
			continue
		}

		codec, err := CodecFromPayloadType(pkt.PayloadType)
		if err != nil {
			continue
		}

		r.trackSequence(pkt.SSRC, pkt.SequenceNumber)
		return Frame{
			SSRC:           pkt.SSRC,
			SequenceNumber: pkt.SequenceNumber,
			Timestamp:      pkt.Timestamp,
			Codec:          codec,
			Payload:        pkt.Payload,
		}, nil
	}
}

func (r *RTPBurstReader) trackSequence(ssrc uint32, seq uint16) {
	last, exists := r.lastSeq[ssrc]
	r.lastSeq[ssrc] = seq
	if !exists {
		return
	}

	gap := seq - last // wraps around
	if gap > 1 && gap < 1<<15 {
		r.lost += uint64(gap - 1)
		r.log.Debug().Uint32("ssrc", ssrc).Uint16("seq", seq).Uint16("gap", gap-1).Msg("RTP packets lost")
	}
}

// RTCPReader reads RTCP datagrams and reports BYE sources
type RTCPReader struct {
	reader io.Reader
	buf    []byte
	pkts   []rtcp.Packet
}

func NewRTCPReader(r io.Reader) *RTCPReader {
	return &RTCPReader{
		reader: r,
		buf:    make([]byte, RTPBufSize),
		pkts:   make([]rtcp.Packet, 5),
	}
}

// ReadGoodbye reads one compound packet and returns SSRCs that sent BYE.
// Result is empty for packets without BYE.
func (r *RTCPReader) ReadGoodbye() ([]uint32, error) {
	n, err := r.reader.Read(r.buf)
	if err != nil {
		return nil, err
	}

	k, err := RTCPUnmarshal(r.buf[:n], r.pkts)
	if err != nil {
		// Malformed packets are not fatal for the stream
		log.Debug().Str("caller", "media").Err(err).Msg("Skipping invalid RTCP packet")
		return nil, nil
	}
	return GoodbyeSources(r.pkts[:k]), nil
}
