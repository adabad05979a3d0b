package bmff

import (
	"fmt"
	"math"

	"github.com/tanq16/mediastitch/internal/utils"
)

// Stream is an fMP4 file split into its init boxes and fragments. All
// slices alias the buffer passed to Split.
type Stream struct {
	Ftyp      []byte
	Moov      []byte
	Fragments [][]byte
}

// Split separates an fMP4 file into ftyp, moov and fragments. A fragment
// starts at a top-level moof and runs through the next mdat, keeping any
// boxes in between.
func Split(buf []byte) (Stream, error) {
	top := Parse(buf, 0, len(buf))
	var s Stream
	ftyp, ok := First(top, TypeFtyp)
	if !ok {
		return Stream{}, fmt.Errorf("%w: no ftyp box", utils.ErrMalformedContainer)
	}
	s.Ftyp = ftyp.Bytes(buf)
	moov, ok := First(top, TypeMoov)
	if !ok {
		return Stream{}, fmt.Errorf("%w: no moov box", utils.ErrMalformedContainer)
	}
	s.Moov = moov.Bytes(buf)

	for i := 0; i < len(top); i++ {
		if top[i].Type != TypeMoof {
			continue
		}
		end := top[i].End()
		for j := i + 1; j < len(top); j++ {
			if top[j].Type == TypeMoof {
				break
			}
			end = top[j].End()
			if top[j].Type == TypeMdat {
				break
			}
		}
		s.Fragments = append(s.Fragments, buf[top[i].Offset:end:end])
	}
	return s, nil
}

// FragmentInfo holds the fields of a fragment that a merge rewrites, plus
// their offsets inside the fragment. MfhdOffset is -1 when there is no mfhd.
type FragmentInfo struct {
	TrackID        uint32
	DecodeTime     uint64
	TfdtVersion    uint8
	SequenceNumber uint32

	MfhdOffset int
	TfhdOffset int
	TfdtOffset int
}

// ReadFragment locates the mfhd, first traf's tfhd and tfdt of frag.
func ReadFragment(frag []byte) (FragmentInfo, error) {
	moof, ok := First(Parse(frag, 0, len(frag)), TypeMoof)
	if !ok {
		return FragmentInfo{}, fmt.Errorf("%w: fragment has no moof", utils.ErrMalformedContainer)
	}
	kids := Children(frag, moof)
	info := FragmentInfo{MfhdOffset: -1}
	if mfhd, ok := First(kids, TypeMfhd); ok && mfhd.PayloadStart+8 <= mfhd.PayloadEnd {
		info.MfhdOffset = mfhd.PayloadStart + 4
		info.SequenceNumber = U32(frag, info.MfhdOffset)
	}

	traf, ok := First(kids, TypeTraf)
	if !ok {
		return FragmentInfo{}, fmt.Errorf("%w: fragment has no traf", utils.ErrMalformedContainer)
	}
	trafKids := Children(frag, traf)
	tfhd, ok := First(trafKids, TypeTfhd)
	if !ok || tfhd.PayloadStart+8 > tfhd.PayloadEnd {
		return FragmentInfo{}, fmt.Errorf("%w: fragment has no tfhd", utils.ErrMalformedContainer)
	}
	info.TfhdOffset = tfhd.PayloadStart + 4
	info.TrackID = U32(frag, info.TfhdOffset)

	tfdt, ok := First(trafKids, TypeTfdt)
	if !ok || tfdt.PayloadStart+8 > tfdt.PayloadEnd {
		return FragmentInfo{}, fmt.Errorf("%w: fragment has no tfdt", utils.ErrMalformedContainer)
	}
	info.TfdtVersion = frag[tfdt.PayloadStart]
	info.TfdtOffset = tfdt.PayloadStart + 4
	if info.TfdtVersion == 1 {
		if tfdt.PayloadStart+12 > tfdt.PayloadEnd {
			return FragmentInfo{}, fmt.Errorf("%w: truncated tfdt", utils.ErrMalformedContainer)
		}
		info.DecodeTime = U64(frag, info.TfdtOffset)
	} else {
		info.DecodeTime = uint64(U32(frag, info.TfdtOffset))
	}
	return info, nil
}

// PatchFragment rewrites the sequence number, track id and base decode time
// of frag in place. The mfhd is left alone when the fragment has none.
func PatchFragment(frag []byte, info FragmentInfo, seq, trackID uint32, decodeTime uint64) error {
	if info.TfdtVersion != 1 && decodeTime > math.MaxUint32 {
		return fmt.Errorf("%w: decode time %d does not fit a version 0 tfdt", utils.ErrMalformedContainer, decodeTime)
	}
	if info.MfhdOffset >= 0 {
		PutU32(frag, info.MfhdOffset, seq)
	}
	PutU32(frag, info.TfhdOffset, trackID)
	if info.TfdtVersion == 1 {
		PutU64(frag, info.TfdtOffset, decodeTime)
	} else {
		PutU32(frag, info.TfdtOffset, uint32(decodeTime))
	}
	return nil
}

func tkhdTrackIDOffset(buf []byte, tkhd Box) (int, bool) {
	p := tkhd.PayloadStart
	if p >= tkhd.PayloadEnd {
		return 0, false
	}
	off := p + 12
	if buf[p] == 1 {
		off = p + 20
	}
	if off+4 > tkhd.PayloadEnd {
		return 0, false
	}
	return off, true
}

// TrackID returns the track id of the first trak in a moov box.
func TrackID(moov []byte) (uint32, error) {
	trak, ok := Find(moov, 0, len(moov), TypeTrak)
	if !ok {
		return 0, fmt.Errorf("%w: moov has no trak", utils.ErrMalformedContainer)
	}
	tkhd, ok := First(Children(moov, trak), TypeTkhd)
	if !ok {
		return 0, fmt.Errorf("%w: trak has no tkhd", utils.ErrMalformedContainer)
	}
	off, ok := tkhdTrackIDOffset(moov, tkhd)
	if !ok {
		return 0, fmt.Errorf("%w: truncated tkhd", utils.ErrMalformedContainer)
	}
	return U32(moov, off), nil
}

// TrackTimescales maps every trak's id to its mdhd timescale.
func TrackTimescales(moov []byte) map[uint32]uint32 {
	out := make(map[uint32]uint32)
	top, ok := First(Parse(moov, 0, len(moov)), TypeMoov)
	if !ok {
		return out
	}
	for _, trak := range OfType(Children(moov, top), TypeTrak) {
		tkhd, ok := First(Children(moov, trak), TypeTkhd)
		if !ok {
			continue
		}
		off, ok := tkhdTrackIDOffset(moov, tkhd)
		if !ok {
			continue
		}
		mdhd, ok := Find(moov, trak.PayloadStart, trak.PayloadEnd, TypeMdhd)
		if !ok {
			continue
		}
		if ts, ok := headerTimescale(moov, mdhd); ok {
			out[U32(moov, off)] = ts
		}
	}
	return out
}

// setTrakTrackID rewrites the tkhd track id inside a standalone trak box.
func setTrakTrackID(trak []byte, id uint32) error {
	tkhd, ok := Find(trak, 0, len(trak), TypeTkhd)
	if !ok {
		return fmt.Errorf("%w: trak has no tkhd", utils.ErrMalformedContainer)
	}
	off, ok := tkhdTrackIDOffset(trak, tkhd)
	if !ok {
		return fmt.Errorf("%w: truncated tkhd", utils.ErrMalformedContainer)
	}
	PutU32(trak, off, id)
	return nil
}

// setTrexTrackID rewrites the track id inside a standalone trex box.
func setTrexTrackID(trex []byte, id uint32) error {
	boxes := Parse(trex, 0, len(trex))
	if len(boxes) == 0 || boxes[0].PayloadStart+8 > boxes[0].PayloadEnd {
		return fmt.Errorf("%w: truncated trex", utils.ErrMalformedContainer)
	}
	PutU32(trex, boxes[0].PayloadStart+4, id)
	return nil
}
