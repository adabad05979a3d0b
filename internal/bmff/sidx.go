package bmff

import "math"

// SidxDurationSeconds sums the subsegment durations of the first top-level
// sidx box, rounded to milliseconds. It returns 0 when there is no sidx or
// the box is truncated.
func SidxDurationSeconds(buf []byte) float64 {
	sidx, ok := First(Parse(buf, 0, len(buf)), TypeSidx)
	if !ok {
		return 0
	}
	p := sidx.PayloadStart
	end := sidx.PayloadEnd
	if p+12 > end {
		return 0
	}
	version := buf[p]
	timescale := U32(buf, p+8)
	if timescale == 0 {
		return 0
	}
	p += 12
	if version == 0 {
		p += 8
	} else {
		p += 16
	}
	if p+4 > end {
		return 0
	}
	count := int(buf[p+2])<<8 | int(buf[p+3])
	p += 4

	var total uint64
	for i := 0; i < count; i++ {
		ref := p + i*12
		if ref+12 > end {
			break
		}
		total += uint64(U32(buf, ref+4))
	}
	return math.Round(float64(total)/float64(timescale)*1000) / 1000
}
