package tsprobe

import (
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"
)

const scanWindow = 4096

// nalHeaders calls fn with the bytes following every 00 00 01 start code in
// the first scanWindow bytes of data. fn returns true to stop.
func nalHeaders(data []byte, fn func(h0, h1 byte) bool) bool {
	n := min(len(data), scanWindow)
	for i := 0; i+4 < n; i++ {
		if data[i] != 0 || data[i+1] != 0 || data[i+2] != 1 {
			continue
		}
		if fn(data[i+3], data[i+4]) {
			return true
		}
	}
	return false
}

// ContainsHEVC reports whether an HEVC VPS, SPS or PPS NAL unit appears
// near the start of data. The two-byte HEVC header must have layer 0 and a
// non-zero temporal id so AVC slices are not mistaken for parameter sets.
func ContainsHEVC(data []byte) bool {
	return nalHeaders(data, func(h0, h1 byte) bool {
		if h0&0x81 != 0 || h1&0x07 == 0 || h1&0xf8 != 0 {
			return false
		}
		switch h265.NALUType((h0 >> 1) & 0x3f) {
		case h265.NALUType_VPS_NUT, h265.NALUType_SPS_NUT, h265.NALUType_PPS_NUT:
			return true
		}
		return false
	})
}

// ContainsAVC reports whether an AVC SPS or IDR slice appears near the
// start of data.
func ContainsAVC(data []byte) bool {
	return nalHeaders(data, func(h0, _ byte) bool {
		if h0&0x80 != 0 || h0&0x60 == 0 {
			return false
		}
		switch h264.NALUType(h0 & 0x1f) {
		case h264.NALUTypeSPS, h264.NALUTypeIDR:
			return true
		}
		return false
	})
}
