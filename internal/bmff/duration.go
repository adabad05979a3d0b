package bmff

import (
	"bytes"
	"math"
)

// headerTimescale reads the timescale of an mvhd or mdhd box.
func headerTimescale(buf []byte, b Box) (uint32, bool) {
	p := b.PayloadStart
	if p >= b.PayloadEnd {
		return 0, false
	}
	off := p + 12
	if buf[p] == 1 {
		off = p + 20
	}
	if off+4 > b.PayloadEnd {
		return 0, false
	}
	return U32(buf, off), true
}

// writeHeaderDuration patches the duration of an mvhd or mdhd box.
func writeHeaderDuration(buf []byte, b Box, ticks uint64) {
	p := b.PayloadStart
	if p >= b.PayloadEnd {
		return
	}
	if buf[p] == 1 {
		if p+24+8 <= b.PayloadEnd {
			PutU64(buf, p+24, ticks)
		}
		return
	}
	if p+16+4 <= b.PayloadEnd {
		PutU32(buf, p+16, clampU32(ticks))
	}
}

func writeTkhdDuration(buf []byte, b Box, ticks uint64) {
	p := b.PayloadStart
	if p >= b.PayloadEnd {
		return
	}
	if buf[p] == 1 {
		if p+28+8 <= b.PayloadEnd {
			PutU64(buf, p+28, ticks)
		}
		return
	}
	if p+20+4 <= b.PayloadEnd {
		PutU32(buf, p+20, clampU32(ticks))
	}
}

func toTicks(seconds float64, timescale uint32) uint64 {
	return uint64(math.Round(seconds * float64(timescale)))
}

func clampU32(v uint64) uint32 {
	if v > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}

// PatchDuration returns a copy of init whose mvhd, tkhd and mdhd durations
// all describe seconds. tkhd is expressed in the movie timescale, mdhd in
// its own. Input without a usable moov/mvhd, or a non-positive duration,
// comes back unmodified.
func PatchDuration(init []byte, seconds float64) []byte {
	if !(seconds > 0) || math.IsInf(seconds, 0) {
		return init
	}
	moov, ok := Find(init, 0, len(init), TypeMoov)
	if !ok {
		return init
	}
	mvhd, ok := Find(init, moov.PayloadStart, moov.PayloadEnd, TypeMvhd)
	if !ok {
		return init
	}
	movieTS, ok := headerTimescale(init, mvhd)
	if !ok || movieTS == 0 {
		return init
	}

	out := bytes.Clone(init)
	movieTicks := toTicks(seconds, movieTS)
	writeHeaderDuration(out, mvhd, movieTicks)
	Walk(out, moov.PayloadStart, moov.PayloadEnd, func(b Box) {
		switch b.Type {
		case TypeTkhd:
			writeTkhdDuration(out, b, movieTicks)
		case TypeMdhd:
			// a zero media timescale leaves that track's mdhd alone
			if ts, ok := headerTimescale(out, b); ok && ts != 0 {
				writeHeaderDuration(out, b, toTicks(seconds, ts))
			}
		}
	})
	return out
}
