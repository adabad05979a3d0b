package bmff

import "encoding/binary"

func u32(v uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, v)
}

func u64(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

func zeros(n int) []byte {
	return make([]byte, n)
}

func rawBox(tag string, payload ...[]byte) []byte {
	n := 8
	for _, p := range payload {
		n += len(p)
	}
	out := append(u32(uint32(n)), tag...)
	for _, p := range payload {
		out = append(out, p...)
	}
	return out
}

func fullBox(tag string, version byte, payload ...[]byte) []byte {
	return rawBox(tag, append([][]byte{{version, 0, 0, 0}}, payload...)...)
}

// header builds an mvhd or mdhd with the given timescale and duration.
func header(tag string, version byte, timescale uint32, duration uint64) []byte {
	if version == 1 {
		return fullBox(tag, 1, u64(0), u64(0), u32(timescale), u64(duration), zeros(8))
	}
	return fullBox(tag, 0, u32(0), u32(0), u32(timescale), u32(uint32(duration)), zeros(8))
}

func tkhd(version byte, id uint32, duration uint64) []byte {
	if version == 1 {
		return fullBox("tkhd", 1, u64(0), u64(0), u32(id), u32(0), u64(duration), zeros(60))
	}
	return fullBox("tkhd", 0, u32(0), u32(0), u32(id), u32(0), u32(uint32(duration)), zeros(60))
}

func trak(id, timescale uint32) []byte {
	return rawBox("trak", tkhd(0, id, 0), rawBox("mdia", header("mdhd", 0, timescale, 0)))
}

func trex(id uint32) []byte {
	return fullBox("trex", 0, u32(id), zeros(16))
}

func ftyp() []byte {
	return rawBox("ftyp", []byte("isom"), u32(0x200), []byte("isomiso6"))
}

func initSegment(id, timescale uint32) []byte {
	moov := rawBox("moov",
		header("mvhd", 0, 1000, 0),
		trak(id, timescale),
		rawBox("mvex", trex(id)),
	)
	return append(ftyp(), moov...)
}

func fragment(seq, id uint32, decode uint64, tfdtVersion byte) []byte {
	var tfdt []byte
	if tfdtVersion == 1 {
		tfdt = fullBox("tfdt", 1, u64(decode))
	} else {
		tfdt = fullBox("tfdt", 0, u32(uint32(decode)))
	}
	moof := rawBox("moof",
		fullBox("mfhd", 0, u32(seq)),
		rawBox("traf", fullBox("tfhd", 0, u32(id)), tfdt),
	)
	return append(moof, rawBox("mdat", []byte{0xde, 0xad, 0xbe, 0xef})...)
}

func stream(id, timescale uint32, decodes ...uint64) []byte {
	out := initSegment(id, timescale)
	for i, d := range decodes {
		out = append(out, fragment(uint32(i+1), id, d, 1)...)
	}
	return out
}
