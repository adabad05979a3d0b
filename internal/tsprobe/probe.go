// Package tsprobe inspects MPEG-TS segments: packet alignment and the video
// codec declared in the program map.
package tsprobe

import (
	"github.com/rs/zerolog/log"
)

const (
	PacketSize = 188
	syncByte   = 0x47
	maxPackets = 2000
	maxProbed  = 4

	streamTypeAVC  = 0x1B
	streamTypeHEVC = 0x24
)

type Codec int

const (
	CodecUnknown Codec = iota
	CodecAVC
	CodecHEVC
)

func (c Codec) String() string {
	switch c {
	case CodecAVC:
		return "avc"
	case CodecHEVC:
		return "hevc"
	}
	return "unknown"
}

// Result describes one probed segment. SyncOffset is -1 when no three
// consecutive packets line up; PMTPID is 0 when no PAT entry was found.
// FromScan is set when the codec came from a bitstream scan instead of
// the PMT.
type Result struct {
	SyncOK      bool
	SyncOffset  int
	PMTPID      uint16
	StreamTypes []byte
	VideoCodec  Codec
	FromScan    bool
}

// SyncOffset returns the first offset k < min(188, len-3*188) with sync
// bytes at k, k+188 and k+376, or -1.
func SyncOffset(seg []byte) int {
	limit := min(PacketSize, max(0, len(seg)-3*PacketSize))
	for k := 0; k < limit; k++ {
		if seg[k] == syncByte && seg[k+PacketSize] == syncByte && seg[k+2*PacketSize] == syncByte {
			return k
		}
	}
	return -1
}

// Probe aligns seg and reads PAT and PMT to find the declared video codec.
// When the PMT is missing or names neither AVC nor HEVC the elementary
// stream bytes are scanned for parameter-set NAL units.
func Probe(seg []byte) Result {
	r := Result{SyncOffset: SyncOffset(seg)}
	if r.SyncOffset < 0 {
		return r
	}
	r.SyncOK = true

	var pat, pmt section
	pmtPID := -1
	for n, p := 0, r.SyncOffset; n < maxPackets && p+PacketSize <= len(seg); n, p = n+1, p+PacketSize {
		pkt := seg[p : p+PacketSize]
		if pkt[0] != syncByte {
			continue
		}
		pusi := pkt[1]&0x40 != 0
		pid := int(pkt[1]&0x1f)<<8 | int(pkt[2])
		afc := (pkt[3] & 0x30) >> 4
		if afc == 0 || afc == 2 {
			continue
		}
		start := 4
		if afc == 3 {
			start += 1 + int(pkt[4])
			if start >= PacketSize {
				continue
			}
		}
		payload := pkt[start:]

		switch {
		case pid == 0 && pmtPID < 0:
			if sec := pat.push(payload, pusi); sec != nil {
				pmtPID = parsePAT(sec)
				pat.reset()
			}
		case pmtPID >= 0 && pid == pmtPID:
			if sec := pmt.push(payload, pusi); sec != nil {
				types, ok := parsePMT(sec)
				pmt.reset()
				if !ok {
					continue
				}
				r.PMTPID = uint16(pmtPID)
				r.StreamTypes = types
				r.VideoCodec = codecOf(types)
				if r.VideoCodec != CodecUnknown {
					return r
				}
				return scanFallback(r, seg[r.SyncOffset:])
			}
		}
	}
	if pmtPID >= 0 {
		r.PMTPID = uint16(pmtPID)
	}
	return scanFallback(r, seg[r.SyncOffset:])
}

func scanFallback(r Result, seg []byte) Result {
	switch {
	case ContainsHEVC(seg):
		r.VideoCodec = CodecHEVC
		r.FromScan = true
	case ContainsAVC(seg):
		r.VideoCodec = CodecAVC
		r.FromScan = true
	}
	if r.FromScan {
		log.Debug().Str("op", "tsprobe/probe").Msgf("codec %s found by bitstream scan", r.VideoCodec)
	}
	return r
}

// ProbeSegments probes the first few non-empty segments and returns the
// first result that either fails sync or identifies a codec, otherwise the
// last result seen.
func ProbeSegments(segs [][]byte) Result {
	last := Result{SyncOffset: -1}
	probed := 0
	for _, seg := range segs {
		if len(seg) == 0 {
			continue
		}
		last = Probe(seg)
		if !last.SyncOK || last.VideoCodec != CodecUnknown {
			return last
		}
		probed++
		if probed == maxProbed {
			break
		}
	}
	return last
}

func codecOf(types []byte) Codec {
	codec := CodecUnknown
	for _, t := range types {
		switch t {
		case streamTypeHEVC:
			return CodecHEVC
		case streamTypeAVC:
			codec = CodecAVC
		}
	}
	return codec
}
