// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package media

import (
	"errors"
	"fmt"
	"io"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

const (
	RTPBufSize = 1500
)

var (
	errRTCPFailedToUnmarshal = errors.New("rtcp: failed to unmarshal")
)

// RTPUnmarshal parses packet without keeping reference on buf, so buf can be
// reused for next read. Payload buffer of p is reused when large enough.
func RTPUnmarshal(buf []byte, p *rtp.Packet) error {
	n, err := p.Header.Unmarshal(buf)
	if err != nil {
		return err
	}
	if p.Header.Extension {
		// Extensions reference buf, we do not need them
		p.Header.Extensions = nil
		p.Header.Extension = false
	}

	end := len(buf)
	if p.Header.Padding {
		p.PaddingSize = buf[end-1]
		end -= int(p.PaddingSize)
	}
	if end < n {
		return io.ErrShortBuffer
	}

	payload := buf[n:end]
	if cap(p.Payload) >= len(payload) {
		p.Payload = p.Payload[:len(payload)]
		copy(p.Payload, payload)
		return nil
	}

	// This creates allocation
	p.Payload = make([]byte, len(payload))
	copy(p.Payload, payload)
	return nil
}

// RTCPUnmarshal parses compound packet into caller provided slice.
// NOTE: data is still referenced in packets
func RTCPUnmarshal(data []byte, packets []rtcp.Packet) (n int, err error) {
	for i := 0; i < len(packets) && len(data) != 0; i++ {
		var h rtcp.Header

		err = h.Unmarshal(data)
		if err != nil {
			return 0, errors.Join(err, errRTCPFailedToUnmarshal)
		}

		pktLen := int(h.Length+1) * 4
		if pktLen > len(data) {
			return 0, fmt.Errorf("packet too short: %w", errRTCPFailedToUnmarshal)
		}
		inPacket := data[:pktLen]

		packet := rtcpTypedPacket(h.Type)
		err = packet.Unmarshal(inPacket)
		if err != nil {
			return 0, err
		}

		packets[i] = packet

		data = data[pktLen:]
		n++
	}

	return n, nil
}

// GoodbyeSources returns SSRCs leaving the session
func GoodbyeSources(packets []rtcp.Packet) []uint32 {
	var ssrcs []uint32
	for _, p := range packets {
		if bye, ok := p.(*rtcp.Goodbye); ok {
			ssrcs = append(ssrcs, bye.Sources...)
		}
	}
	return ssrcs
}

func rtcpTypedPacket(htype rtcp.PacketType) rtcp.Packet {
	switch htype {
	case rtcp.TypeSenderReport:
		return new(rtcp.SenderReport)

	case rtcp.TypeReceiverReport:
		return new(rtcp.ReceiverReport)

	case rtcp.TypeSourceDescription:
		return new(rtcp.SourceDescription)

	case rtcp.TypeGoodbye:
		return new(rtcp.Goodbye)

	default:
		return new(rtcp.RawPacket)
	}
}
