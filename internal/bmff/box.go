// Package bmff reads, patches and synthesizes ISO-BMFF (MP4) boxes over
// plain byte slices. Parsing never allocates box payloads; every Box is a
// view of offsets into the buffer it was parsed from.
package bmff

import (
	"encoding/binary"
)

// Type is the closed set of box types this package understands. Anything
// else parses as TypeUnknown and keeps its raw tag in Box.Tag.
type Type uint8

const (
	TypeUnknown Type = iota
	TypeFtyp
	TypeStyp
	TypeMoov
	TypeMvhd
	TypeTrak
	TypeTkhd
	TypeMdia
	TypeMdhd
	TypeMinf
	TypeStbl
	TypeMvex
	TypeTrex
	TypeMoof
	TypeMfhd
	TypeTraf
	TypeTfhd
	TypeTfdt
	TypeMdat
	TypeSidx
	TypeEmsg
	TypeFree
)

var typeTags = [...]string{
	TypeUnknown: "????",
	TypeFtyp:    "ftyp",
	TypeStyp:    "styp",
	TypeMoov:    "moov",
	TypeMvhd:    "mvhd",
	TypeTrak:    "trak",
	TypeTkhd:    "tkhd",
	TypeMdia:    "mdia",
	TypeMdhd:    "mdhd",
	TypeMinf:    "minf",
	TypeStbl:    "stbl",
	TypeMvex:    "mvex",
	TypeTrex:    "trex",
	TypeMoof:    "moof",
	TypeMfhd:    "mfhd",
	TypeTraf:    "traf",
	TypeTfhd:    "tfhd",
	TypeTfdt:    "tfdt",
	TypeMdat:    "mdat",
	TypeSidx:    "sidx",
	TypeEmsg:    "emsg",
	TypeFree:    "free",
}

var tagTypes = func() map[[4]byte]Type {
	m := make(map[[4]byte]Type, len(typeTags))
	for t, s := range typeTags {
		if Type(t) == TypeUnknown {
			continue
		}
		m[[4]byte{s[0], s[1], s[2], s[3]}] = Type(t)
	}
	return m
}()

func (t Type) String() string {
	if int(t) < len(typeTags) {
		return typeTags[t]
	}
	return typeTags[TypeUnknown]
}

// Tag returns the four ASCII bytes written for t.
func (t Type) Tag() [4]byte {
	s := t.String()
	return [4]byte{s[0], s[1], s[2], s[3]}
}

// IsContainer reports whether Find and Walk descend into boxes of type t.
func (t Type) IsContainer() bool {
	switch t {
	case TypeMoov, TypeTrak, TypeMdia, TypeMinf, TypeStbl, TypeMvex, TypeTraf:
		return true
	}
	return false
}

// TypeOf maps a raw tag onto the closed set.
func TypeOf(tag [4]byte) Type {
	if t, ok := tagTypes[tag]; ok {
		return t
	}
	return TypeUnknown
}

// Box locates one box inside a buffer.
type Box struct {
	Tag          [4]byte
	Type         Type
	Offset       int
	Size         int
	HeaderSize   int
	PayloadStart int
	PayloadEnd   int
}

func (b Box) End() int {
	return b.Offset + b.Size
}

// Bytes returns the whole box, header included, as a subslice of buf.
func (b Box) Bytes(buf []byte) []byte {
	return buf[b.Offset:b.End():b.End()]
}

// Payload returns the box body as a subslice of buf.
func (b Box) Payload(buf []byte) []byte {
	return buf[b.PayloadStart:b.PayloadEnd:b.PayloadEnd]
}

func (b Box) String() string {
	return string(b.Tag[:])
}

// Parse lists the top-level boxes in buf[start:end] without descending.
// A size field smaller than its header or running past end stops the walk;
// the boxes read before that point are still returned.
func Parse(buf []byte, start, end int) []Box {
	start, end = clampRange(buf, start, end)
	var out []Box
	offset := start
	for offset+8 <= end {
		size := uint64(U32(buf, offset))
		header := 8
		switch size {
		case 1:
			if offset+16 > end {
				return out
			}
			size = U64(buf, offset+8)
			header = 16
		case 0:
			size = uint64(end - offset)
		}
		if size < uint64(header) || size > uint64(end-offset) {
			return out
		}
		var tag [4]byte
		copy(tag[:], buf[offset+4:offset+8])
		out = append(out, Box{
			Tag:          tag,
			Type:         TypeOf(tag),
			Offset:       offset,
			Size:         int(size),
			HeaderSize:   header,
			PayloadStart: offset + header,
			PayloadEnd:   offset + int(size),
		})
		offset += int(size)
	}
	return out
}

// Children lists the boxes directly inside parent.
func Children(buf []byte, parent Box) []Box {
	return Parse(buf, parent.PayloadStart, parent.PayloadEnd)
}

// Find returns the first box of type t in buf[start:end], descending
// through container types in document order.
func Find(buf []byte, start, end int, t Type) (Box, bool) {
	for _, b := range Parse(buf, start, end) {
		if b.Type == t {
			return b, true
		}
		if b.Type.IsContainer() {
			if found, ok := Find(buf, b.PayloadStart, b.PayloadEnd, t); ok {
				return found, true
			}
		}
	}
	return Box{}, false
}

// Walk calls fn for every box in buf[start:end], parents before children.
func Walk(buf []byte, start, end int, fn func(Box)) {
	for _, b := range Parse(buf, start, end) {
		fn(b)
		if b.Type.IsContainer() {
			Walk(buf, b.PayloadStart, b.PayloadEnd, fn)
		}
	}
}

// First returns the first box of type t in boxes.
func First(boxes []Box, t Type) (Box, bool) {
	for _, b := range boxes {
		if b.Type == t {
			return b, true
		}
	}
	return Box{}, false
}

// OfType keeps the boxes of type t, in order.
func OfType(boxes []Box, t Type) []Box {
	var out []Box
	for _, b := range boxes {
		if b.Type == t {
			out = append(out, b)
		}
	}
	return out
}

// MakeBox builds a new box of type t whose payload is the concatenation of
// payloads. Only used to synthesize merged moov/mvex boxes.
func MakeBox(t Type, payloads ...[]byte) []byte {
	n := 0
	for _, p := range payloads {
		n += len(p)
	}
	out := make([]byte, 8, 8+n)
	PutU32(out, 0, uint32(8+n))
	tag := t.Tag()
	copy(out[4:8], tag[:])
	for _, p := range payloads {
		out = append(out, p...)
	}
	return out
}

func U32(buf []byte, off int) uint32 {
	return binary.BigEndian.Uint32(buf[off : off+4])
}

func U64(buf []byte, off int) uint64 {
	return binary.BigEndian.Uint64(buf[off : off+8])
}

func PutU32(buf []byte, off int, v uint32) {
	binary.BigEndian.PutUint32(buf[off:off+4], v)
}

func PutU64(buf []byte, off int, v uint64) {
	binary.BigEndian.PutUint64(buf[off:off+8], v)
}

func clampRange(buf []byte, start, end int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > len(buf) {
		end = len(buf)
	}
	if end < start {
		end = start
	}
	return start, end
}
