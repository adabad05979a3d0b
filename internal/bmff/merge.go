package bmff

import (
	"bytes"
	"cmp"
	"fmt"
	"math/bits"
	"slices"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/mediastitch/internal/utils"
)

const microsPerSecond = 1_000_000

type mergeEntry struct {
	frag    []byte
	info    FragmentInfo
	video   bool
	trackID uint32
	timeUs  uint64
}

// MergeDASH interleaves a video-only and an audio-only fMP4 stream into one
// playable fMP4 file. The returned parts are the merged init segment
// followed by every fragment in presentation order; concatenated they form
// the output. seconds > 0 is written into the init's duration fields.
func MergeDASH(video, audio []byte, seconds float64) ([][]byte, error) {
	v, err := Split(bytes.Clone(video))
	if err != nil {
		return nil, fmt.Errorf("error splitting video stream: %w", err)
	}
	a, err := Split(bytes.Clone(audio))
	if err != nil {
		return nil, fmt.Errorf("error splitting audio stream: %w", err)
	}
	videoID, err := TrackID(v.Moov)
	if err != nil {
		return nil, fmt.Errorf("error reading video track id: %w", err)
	}
	audioID, err := TrackID(a.Moov)
	if err != nil {
		return nil, fmt.Errorf("error reading audio track id: %w", err)
	}
	newAudioID := audioID
	if audioID == videoID {
		newAudioID = audioID + 1
		log.Debug().Str("op", "bmff/merge").Msgf("track id collision on %d, audio renumbered to %d", audioID, newAudioID)
	}

	traks, trexes, err := audioTrackBoxes(a.Moov, newAudioID)
	if err != nil {
		return nil, err
	}
	moov, err := spliceMoov(v.Moov, traks, trexes)
	if err != nil {
		return nil, err
	}
	init := utils.Concat([][]byte{v.Ftyp, moov})
	if seconds > 0 {
		init = PatchDuration(init, seconds)
	}

	timescales := TrackTimescales(moov)
	var entries []mergeEntry
	collect := func(frags [][]byte, video bool) error {
		for _, frag := range frags {
			info, err := ReadFragment(frag)
			if err != nil {
				return err
			}
			id := info.TrackID
			if !video && id == audioID {
				id = newAudioID
			}
			ts := timescales[id]
			if ts == 0 {
				return fmt.Errorf("%w: no timescale for track %d", utils.ErrMalformedContainer, id)
			}
			entries = append(entries, mergeEntry{
				frag:    frag,
				info:    info,
				video:   video,
				trackID: id,
				timeUs:  scale(info.DecodeTime, microsPerSecond, uint64(ts)),
			})
		}
		return nil
	}
	if err := collect(v.Fragments, true); err != nil {
		return nil, fmt.Errorf("error reading video fragment: %w", err)
	}
	if err := collect(a.Fragments, false); err != nil {
		return nil, fmt.Errorf("error reading audio fragment: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no fragments to merge", utils.ErrMalformedContainer)
	}

	base := entries[0].timeUs
	for _, e := range entries {
		base = min(base, e.timeUs)
	}
	slices.SortStableFunc(entries, func(x, y mergeEntry) int {
		if c := cmp.Compare(x.timeUs, y.timeUs); c != 0 {
			return c
		}
		switch {
		case x.video && !y.video:
			return -1
		case !x.video && y.video:
			return 1
		}
		return 0
	})

	parts := make([][]byte, 0, len(entries)+1)
	parts = append(parts, init)
	for i, e := range entries {
		decode := scale(e.timeUs-base, uint64(timescales[e.trackID]), microsPerSecond)
		if err := PatchFragment(e.frag, e.info, uint32(i+1), e.trackID, decode); err != nil {
			return nil, err
		}
		parts = append(parts, e.frag)
	}
	log.Debug().Str("op", "bmff/merge").Msgf("merged %d video and %d audio fragments", len(v.Fragments), len(a.Fragments))
	return parts, nil
}

// audioTrackBoxes copies every trak and trex of the audio moov, renumbered
// to id.
func audioTrackBoxes(moovBuf []byte, id uint32) ([][]byte, [][]byte, error) {
	moov, ok := First(Parse(moovBuf, 0, len(moovBuf)), TypeMoov)
	if !ok {
		return nil, nil, fmt.Errorf("%w: audio stream has no moov", utils.ErrMalformedContainer)
	}
	kids := Children(moovBuf, moov)
	var traks, trexes [][]byte
	for _, t := range OfType(kids, TypeTrak) {
		trak := bytes.Clone(t.Bytes(moovBuf))
		if err := setTrakTrackID(trak, id); err != nil {
			return nil, nil, err
		}
		traks = append(traks, trak)
	}
	if len(traks) == 0 {
		return nil, nil, fmt.Errorf("%w: audio stream has no trak", utils.ErrMalformedContainer)
	}
	if mvex, ok := First(kids, TypeMvex); ok {
		for _, t := range OfType(Children(moovBuf, mvex), TypeTrex) {
			trex := bytes.Clone(t.Bytes(moovBuf))
			if err := setTrexTrackID(trex, id); err != nil {
				return nil, nil, err
			}
			trexes = append(trexes, trex)
		}
	}
	if len(trexes) == 0 {
		return nil, nil, fmt.Errorf("%w: audio stream has no trex", utils.ErrMalformedContainer)
	}
	return traks, trexes, nil
}

// spliceMoov rebuilds the video moov with the audio traks inserted before a
// new mvex that carries both the video and audio trex boxes.
func spliceMoov(moovBuf []byte, traks, trexes [][]byte) ([]byte, error) {
	moov, ok := First(Parse(moovBuf, 0, len(moovBuf)), TypeMoov)
	if !ok {
		return nil, fmt.Errorf("%w: video stream has no moov", utils.ErrMalformedContainer)
	}
	kids := Children(moovBuf, moov)
	mvexAt := slices.IndexFunc(kids, func(b Box) bool { return b.Type == TypeMvex })
	if mvexAt < 0 {
		return nil, fmt.Errorf("%w: video stream has no mvex", utils.ErrMalformedContainer)
	}

	var mvexPayload [][]byte
	for _, b := range Children(moovBuf, kids[mvexAt]) {
		mvexPayload = append(mvexPayload, b.Bytes(moovBuf))
	}
	mvexPayload = append(mvexPayload, trexes...)

	var payload [][]byte
	for _, b := range kids[:mvexAt] {
		payload = append(payload, b.Bytes(moovBuf))
	}
	payload = append(payload, traks...)
	payload = append(payload, MakeBox(TypeMvex, mvexPayload...))
	for _, b := range kids[mvexAt+1:] {
		payload = append(payload, b.Bytes(moovBuf))
	}
	return MakeBox(TypeMoov, payload...), nil
}

// ConcatFragments prepares same-track fMP4 segments (HLS with EXT-X-MAP)
// for concatenation: the init gets its duration patched and every fragment
// must open with a moof, styp, sidx or emsg and carry a moof.
func ConcatFragments(init []byte, frags [][]byte, seconds float64) ([][]byte, error) {
	if _, ok := First(Parse(init, 0, len(init)), TypeMoov); !ok {
		return nil, fmt.Errorf("%w: init segment has no moov", utils.ErrMalformedContainer)
	}
	parts := make([][]byte, 0, len(frags)+1)
	parts = append(parts, PatchDuration(init, seconds))
	for i, f := range frags {
		boxes := Parse(f, 0, len(f))
		if len(boxes) == 0 || !fragmentLead(boxes[0].Type) {
			return nil, fmt.Errorf("%w: segment %d does not start a fragment", utils.ErrMalformedContainer, i)
		}
		if _, ok := First(boxes, TypeMoof); !ok {
			return nil, fmt.Errorf("%w: segment %d has no moof", utils.ErrMalformedContainer, i)
		}
		parts = append(parts, f)
	}
	return parts, nil
}

func fragmentLead(t Type) bool {
	switch t {
	case TypeMoof, TypeStyp, TypeSidx, TypeEmsg:
		return true
	}
	return false
}

// scale computes v*num/den without intermediate overflow, saturating when
// the quotient does not fit.
func scale(v, num, den uint64) uint64 {
	hi, lo := bits.Mul64(v, num)
	if hi >= den {
		return ^uint64(0)
	}
	q, _ := bits.Div64(hi, lo, den)
	return q
}
