package bmff

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/mediastitch/internal/utils"
)

func TestSplit(t *testing.T) {
	buf := stream(1, 1000, 0, 1000)
	buf = append(buf, rawBox("free", zeros(4))...)
	s, err := Split(buf)
	require.NoError(t, err)
	assert.NotEmpty(t, s.Ftyp)
	assert.NotEmpty(t, s.Moov)
	require.Len(t, s.Fragments, 2)
	// trailing free box after the last mdat is not part of a fragment
	assert.Equal(t, fragment(2, 1, 1000, 1), s.Fragments[1])

	_, err = Split(ftyp())
	assert.True(t, errors.Is(err, utils.ErrMalformedContainer))
}

func TestReadAndPatchFragment(t *testing.T) {
	frag := fragment(9, 3, 4500, 0)
	info, err := ReadFragment(frag)
	require.NoError(t, err)
	assert.EqualValues(t, 3, info.TrackID)
	assert.EqualValues(t, 4500, info.DecodeTime)
	assert.EqualValues(t, 9, info.SequenceNumber)

	require.NoError(t, PatchFragment(frag, info, 1, 2, 100))
	info, err = ReadFragment(frag)
	require.NoError(t, err)
	assert.EqualValues(t, 2, info.TrackID)
	assert.EqualValues(t, 100, info.DecodeTime)
	assert.EqualValues(t, 1, info.SequenceNumber)

	assert.Error(t, PatchFragment(frag, info, 1, 2, 1<<33))
}

func TestReadFragmentRejectsMissingBoxes(t *testing.T) {
	noTfdt := append(rawBox("moof", fullBox("mfhd", 0, u32(1)), rawBox("traf", fullBox("tfhd", 0, u32(1)))), rawBox("mdat")...)
	_, err := ReadFragment(noTfdt)
	assert.ErrorIs(t, err, utils.ErrMalformedContainer)

	_, err = ReadFragment(rawBox("mdat"))
	assert.ErrorIs(t, err, utils.ErrMalformedContainer)
}

func TestMergeDASHOrdering(t *testing.T) {
	video := stream(1, 1000, 0, 1000, 2000)
	audio := stream(1, 500, 0, 500, 1000, 1500)

	parts, err := MergeDASH(video, audio, 3)
	require.NoError(t, err)
	require.Len(t, parts, 8)

	type got struct {
		track uint32
		seq   uint32
		time  uint64
	}
	var frags []got
	for _, p := range parts[1:] {
		info, err := ReadFragment(p)
		require.NoError(t, err)
		frags = append(frags, got{info.TrackID, info.SequenceNumber, info.DecodeTime})
	}
	assert.Equal(t, []got{
		{1, 1, 0},
		{2, 2, 0},
		{1, 3, 1000},
		{2, 4, 500},
		{1, 5, 2000},
		{2, 6, 1000},
		{2, 7, 1500},
	}, frags)
}

func TestMergeDASHInitLayout(t *testing.T) {
	parts, err := MergeDASH(stream(1, 90000, 0), stream(1, 48000, 0), 10)
	require.NoError(t, err)
	init := parts[0]

	top := Parse(init, 0, len(init))
	require.Len(t, top, 2)
	assert.Equal(t, TypeFtyp, top[0].Type)
	moov := top[1]
	var kinds []Type
	for _, b := range Children(init, moov) {
		kinds = append(kinds, b.Type)
	}
	assert.Equal(t, []Type{TypeMvhd, TypeTrak, TypeTrak, TypeMvex}, kinds)

	timescales := TrackTimescales(moov.Bytes(init))
	assert.Equal(t, map[uint32]uint32{1: 90000, 2: 48000}, timescales)

	mvex, ok := Find(init, 0, len(init), TypeMvex)
	require.True(t, ok)
	trexes := OfType(Children(init, mvex), TypeTrex)
	require.Len(t, trexes, 2)
	assert.EqualValues(t, 1, U32(init, trexes[0].PayloadStart+4))
	assert.EqualValues(t, 2, U32(init, trexes[1].PayloadStart+4))

	mv, _, _ := readDurations(t, init)
	assert.EqualValues(t, 10000, mv)
}

func TestMergeDASHDistinctTracks(t *testing.T) {
	parts, err := MergeDASH(stream(1, 1000, 5000), stream(2, 1000, 5000), 0)
	require.NoError(t, err)
	require.Len(t, parts, 3)
	for i, want := range []uint32{1, 2} {
		info, err := ReadFragment(parts[i+1])
		require.NoError(t, err)
		assert.Equal(t, want, info.TrackID)
		// both start at the shared base and are normalized to zero
		assert.Zero(t, info.DecodeTime)
	}
}

func TestMergeDASHLeavesInputsAlone(t *testing.T) {
	video := stream(1, 1000, 10)
	audio := stream(1, 1000, 10)
	v0 := append([]byte(nil), video...)
	a0 := append([]byte(nil), audio...)
	_, err := MergeDASH(video, audio, 1)
	require.NoError(t, err)
	assert.Equal(t, v0, video)
	assert.Equal(t, a0, audio)
}

func TestMergeDASHErrors(t *testing.T) {
	good := stream(1, 1000, 0)
	noMvex := append(ftyp(), rawBox("moov", header("mvhd", 0, 1000, 0), trak(1, 1000))...)
	noFrags := initSegment(1, 1000)
	noMdhd := append(ftyp(), rawBox("moov",
		header("mvhd", 0, 1000, 0),
		rawBox("trak", tkhd(0, 1, 0), rawBox("mdia")),
		rawBox("mvex", trex(1)),
	)...)
	noMdhd = append(noMdhd, fragment(1, 1, 0, 1)...)
	noMdhd = append(noMdhd, fragment(2, 1, 48000, 1)...)

	tests := []struct {
		name         string
		video, audio []byte
	}{
		{"video without moov", ftyp(), good},
		{"audio without moov", good, ftyp()},
		{"video without mvex", noMvex, good},
		{"audio without trex", good, noMvex},
		{"no fragments", noFrags, noFrags},
		{"audio track without timescale", stream(1, 90000, 0, 90000), noMdhd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts, err := MergeDASH(tt.video, tt.audio, 1)
			assert.ErrorIs(t, err, utils.ErrMalformedContainer)
			assert.Nil(t, parts)
		})
	}
}

func TestConcatFragments(t *testing.T) {
	init := initSegment(1, 1000)
	frags := [][]byte{fragment(1, 1, 0, 0), fragment(2, 1, 1000, 0)}
	parts, err := ConcatFragments(init, frags, 2)
	require.NoError(t, err)
	require.Len(t, parts, 3)
	mv, _, _ := readDurations(t, parts[0])
	assert.EqualValues(t, 2000, mv)

	_, err = ConcatFragments(ftyp(), frags, 2)
	assert.ErrorIs(t, err, utils.ErrMalformedContainer)
	_, err = ConcatFragments(init, [][]byte{rawBox("mdat")}, 2)
	assert.ErrorIs(t, err, utils.ErrMalformedContainer)
}

func TestScale(t *testing.T) {
	assert.EqualValues(t, 1_000_000, scale(1000, 1_000_000, 1000))
	assert.EqualValues(t, 3_000_000, scale(1500, 1_000_000, 500))
	assert.EqualValues(t, uint64(1)<<60, scale(uint64(1)<<60, 1_000_000, 1_000_000))
}
