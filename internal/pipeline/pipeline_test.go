package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/mediastitch/internal/bmff"
	"github.com/tanq16/mediastitch/internal/fetch"
	"github.com/tanq16/mediastitch/internal/job"
	"github.com/tanq16/mediastitch/internal/media"
	"github.com/tanq16/mediastitch/internal/remux"
	"github.com/tanq16/mediastitch/internal/utils"
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)

// --- transport stream fixtures ---

func tsPacket(pid int, pusi bool, payload []byte) []byte {
	pkt := make([]byte, 188)
	pkt[0] = 0x47
	pkt[1] = byte(pid>>8) & 0x1f
	if pusi {
		pkt[1] |= 0x40
	}
	pkt[2] = byte(pid)
	pkt[3] = 0x10
	n := copy(pkt[4:], payload)
	for i := 4 + n; i < 188; i++ {
		pkt[i] = 0xff
	}
	return pkt
}

func tsSegment(streamType, marker byte) []byte {
	pat := []byte{0x00, 0x00, 0xb0, 0x11, 0x00, 0x01, 0xc1, 0x00, 0x00,
		0x00, 0x00, 0xe0, 0x10, 0x00, 0x01, 0xf0, 0x00, 0, 0, 0, 0}
	pmt := []byte{0x00, 0x02, 0xb0, 0x12, 0x00, 0x01, 0xc1, 0x00, 0x00, 0xe1, 0x00, 0xf0, 0x00,
		streamType, 0xe1, 0x00, 0xf0, 0x00, 0, 0, 0, 0}
	var out []byte
	out = append(out, tsPacket(0, true, pat)...)
	out = append(out, tsPacket(0x1000, true, pmt)...)
	for range 3 {
		out = append(out, tsPacket(0x100, false, []byte{marker})...)
	}
	return out
}

const (
	avc  = 0x1b
	hevc = 0x24
)

// --- fMP4 fixtures ---

func fullBox(t bmff.Type, version byte, payload ...[]byte) []byte {
	return bmff.MakeBox(t, append([][]byte{{version, 0, 0, 0}}, payload...)...)
}

func be32(v uint32) []byte { return binary.BigEndian.AppendUint32(nil, v) }
func be64(v uint64) []byte { return binary.BigEndian.AppendUint64(nil, v) }

func initSegment(id, timescale uint32) []byte {
	mvhd := fullBox(bmff.TypeMvhd, 0, be32(0), be32(0), be32(1000), be32(0), make([]byte, 80))
	tkhd := fullBox(bmff.TypeTkhd, 0, be32(0), be32(0), be32(id), be32(0), be32(0), make([]byte, 60))
	mdhd := fullBox(bmff.TypeMdhd, 0, be32(0), be32(0), be32(timescale), be32(0), make([]byte, 4))
	trak := bmff.MakeBox(bmff.TypeTrak, tkhd, bmff.MakeBox(bmff.TypeMdia, mdhd))
	mvex := bmff.MakeBox(bmff.TypeMvex, fullBox(bmff.TypeTrex, 0, be32(id), make([]byte, 16)))
	ftyp := bmff.MakeBox(bmff.TypeFtyp, []byte("isom"), be32(0x200), []byte("isomiso6"))
	return append(ftyp, bmff.MakeBox(bmff.TypeMoov, mvhd, trak, mvex)...)
}

func fragment(seq, id uint32, decode uint64, marker byte) []byte {
	moof := bmff.MakeBox(bmff.TypeMoof,
		fullBox(bmff.TypeMfhd, 0, be32(seq)),
		bmff.MakeBox(bmff.TypeTraf, fullBox(bmff.TypeTfhd, 0, be32(id)), fullBox(bmff.TypeTfdt, 1, be64(decode))),
	)
	return append(moof, bmff.MakeBox(bmff.TypeMdat, []byte{marker, marker})...)
}

func types(buf []byte) []bmff.Type {
	var out []bmff.Type
	for _, b := range bmff.Parse(buf, 0, len(buf)) {
		out = append(out, b.Type)
	}
	return out
}

// --- test site ---

type site struct {
	mu      sync.Mutex
	files   map[string][]byte
	held    map[string]bool
	gates   map[string]chan struct{}
	release chan struct{}
	hits    atomic.Int32
	started chan string
	srv     *httptest.Server
}

func newSite(t *testing.T) *site {
	s := &site{files: map[string][]byte{}, held: map[string]bool{}, gates: map[string]chan struct{}{}, release: make(chan struct{}), started: make(chan string, 64)}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		s.mu.Lock()
		body, ok := s.files[r.URL.Path]
		held := s.held[r.URL.Path]
		gate := s.gates[r.URL.Path]
		s.mu.Unlock()
		if gate != nil {
			select {
			case <-r.Context().Done():
				return
			case <-gate:
			}
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		if held {
			s.started <- r.URL.Path
			select {
			case <-r.Context().Done():
			case <-s.release:
			}
			return
		}
		switch {
		case strings.HasSuffix(r.URL.Path, ".m3u8"):
			w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		case strings.HasSuffix(r.URL.Path, ".ts"):
			w.Header().Set("Content-Type", "video/mp2t")
		default:
			w.Header().Set("Content-Type", "video/mp4")
		}
		http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(body))
	}))
	t.Cleanup(func() {
		close(s.release)
		s.srv.Close()
	})
	return s
}

func (s *site) put(path string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = body
}

func (s *site) hold(path string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held[path] = on
}

// gate delays the response for path until the returned channel is closed.
func (s *site) gate(path string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.gates[path] = ch
	return ch
}

func (s *site) remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
}

func (s *site) url(path string) string {
	return s.srv.URL + path
}

// mediaPlaylist serves n TS segments under dir built by seg(i).
func (s *site) mediaPlaylist(dir string, n int, seg func(i int) []byte) {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:4\n")
	for i := range n {
		fmt.Fprintf(&b, "#EXTINF:4.0,\nseg%d.ts\n", i)
		s.put(fmt.Sprintf("%s/seg%d.ts", dir, i), seg(i))
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	s.put(dir+"/index.m3u8", []byte(b.String()))
}

// --- fake ffmpeg ---

type echoRunner struct {
	mu     sync.Mutex
	inputs [][]byte
	fail   int
}

func (r *echoRunner) Run(ctx context.Context, input []byte, ext remux.Input, args []string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs = append(r.inputs, append([]byte(nil), input...))
	if len(r.inputs) <= r.fail {
		return nil, errors.New("ffmpeg exited with status 1")
	}
	out := make([]byte, 1024)
	copy(out[4:], "ftyp")
	return append(out, input...), nil
}

func (r *echoRunner) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inputs)
}

func (r *echoRunner) last() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inputs[len(r.inputs)-1]
}

func newManager(client *http.Client, r remux.Runner, opts fetch.Options) *Manager {
	return NewManager(Deps{
		Client:     client,
		Transcoder: remux.New(remux.Config{}, r),
		Fetch:      opts,
		Now:        func() time.Time { return fixedNow },
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 5*time.Millisecond)
}

// --- tests ---

func TestRunHLSTransportStream(t *testing.T) {
	s := newSite(t)
	segs := [][]byte{tsSegment(avc, 0), tsSegment(avc, 1), tsSegment(avc, 2)}
	s.mediaPlaylist("/v720", 3, func(i int) []byte {
		if i == 1 {
			return append([]byte("ID3\x04\x00\x00\x00\x00\x00\x00"), segs[i]...)
		}
		return segs[i]
	})
	s.put("/master.m3u8", []byte("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=2500000,RESOLUTION=1280x720\nv720/index.m3u8\n"))

	r := &echoRunner{}
	m := newManager(s.srv.Client(), r, fetch.Options{Concurrency: 2})
	res, err := m.Run(context.Background(), Request{URL: s.url("/master.m3u8"), Title: "My Show"})
	require.NoError(t, err)

	assert.Equal(t, "videos/My_Show_720p_2024-03-09T14-05-06.mp4", res.Filename)
	assert.Equal(t, "video/mp4", res.ContentType)
	assert.Equal(t, utils.Concat(segs), r.last())
	j, ok := m.Jobs().Get(s.url("/master.m3u8"))
	require.True(t, ok)
	assert.Equal(t, job.Succeeded, j.State())
	assert.Same(t, res, j.Result())
	assert.Equal(t, media.KindM3U8, j.Kind)
}

func TestRunHLSRejectsNonTSSegments(t *testing.T) {
	s := newSite(t)
	s.mediaPlaylist("/v", 2, func(i int) []byte { return bytes.Repeat([]byte{0x01}, 800) })
	m := newManager(s.srv.Client(), &echoRunner{}, fetch.Options{})
	_, err := m.Run(context.Background(), Request{URL: s.url("/v/index.m3u8")})
	assert.ErrorIs(t, err, utils.ErrMalformedTS)
}

func TestRunHLSFragmentedMP4(t *testing.T) {
	s := newSite(t)
	s.put("/f/init.mp4", initSegment(1, 90000))
	s.put("/f/a.m4s", fragment(1, 1, 0, 0xa))
	s.put("/f/b.m4s", fragment(2, 1, 360000, 0xb))
	s.put("/f/index.m3u8", []byte("#EXTM3U\n#EXT-X-VERSION:7\n#EXT-X-TARGETDURATION:5\n#EXT-X-MAP:URI=\"init.mp4\"\n#EXTINF:4.0,\na.m4s\n#EXTINF:4.5,\nb.m4s\n#EXT-X-ENDLIST\n"))

	r := &echoRunner{}
	m := newManager(s.srv.Client(), r, fetch.Options{})
	res, err := m.Run(context.Background(), Request{URL: s.url("/f/index.m3u8"), Title: "clip", Quality: "1080p"})
	require.NoError(t, err)
	assert.Zero(t, r.calls())
	assert.Equal(t, []bmff.Type{bmff.TypeFtyp, bmff.TypeMoov, bmff.TypeMoof, bmff.TypeMdat, bmff.TypeMoof, bmff.TypeMdat}, types(res.Data))

	mvhd, ok := bmff.Find(res.Data, 0, len(res.Data), bmff.TypeMvhd)
	require.True(t, ok)
	assert.EqualValues(t, 8500, bmff.U32(mvhd.Payload(res.Data), 16))
	assert.Contains(t, res.Filename, "clip_1080p_")
}

func fallbackSite(t *testing.T, codec720, codec480 byte) *site {
	s := newSite(t)
	s.put("/master.m3u8", []byte("#EXTM3U\n"+
		"#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=854x480\nv480/index.m3u8\n"+
		"#EXT-X-STREAM-INF:BANDWIDTH=5000000,RESOLUTION=1920x1080\nv1080/index.m3u8\n"+
		"#EXT-X-STREAM-INF:BANDWIDTH=2500000,RESOLUTION=1280x720\nv720/index.m3u8\n"))
	s.mediaPlaylist("/v1080", 2, func(i int) []byte { return tsSegment(hevc, 10+byte(i)) })
	s.mediaPlaylist("/v720", 2, func(i int) []byte { return tsSegment(codec720, 20+byte(i)) })
	s.mediaPlaylist("/v480", 2, func(i int) []byte { return tsSegment(codec480, 30+byte(i)) })
	return s
}

func TestVariantFallbackPicksPlayableVariant(t *testing.T) {
	s := fallbackSite(t, avc, avc)
	r := &echoRunner{fail: 2}
	m := newManager(s.srv.Client(), r, fetch.Options{Concurrency: 2})

	res, err := m.Run(context.Background(), Request{URL: s.url("/master.m3u8"), Title: "show"})
	require.NoError(t, err)
	assert.Contains(t, res.Filename, "show_720p_")
	assert.Equal(t, 3, r.calls())
	assert.Equal(t, utils.Concat([][]byte{tsSegment(avc, 20), tsSegment(avc, 21)}), r.last())
}

func TestVariantFallbackSkipsHEVCCandidates(t *testing.T) {
	s := fallbackSite(t, hevc, avc)
	r := &echoRunner{fail: 2}
	m := newManager(s.srv.Client(), r, fetch.Options{})

	res, err := m.Run(context.Background(), Request{URL: s.url("/master.m3u8")})
	require.NoError(t, err)
	assert.Contains(t, res.Filename, "_480p_")
}

func TestVariantFallbackNoCandidate(t *testing.T) {
	s := fallbackSite(t, hevc, hevc)
	r := &echoRunner{fail: 100}
	m := newManager(s.srv.Client(), r, fetch.Options{})

	_, err := m.Run(context.Background(), Request{URL: s.url("/master.m3u8")})
	assert.ErrorIs(t, err, utils.ErrRemux)
	assert.Contains(t, err.Error(), "hevc")
	assert.Equal(t, 2, r.calls())

	j, _ := m.Jobs().Get(s.url("/master.m3u8"))
	assert.Equal(t, job.Idle, j.State())
	assert.ErrorIs(t, j.Err(), utils.ErrRemux)
}

func TestVariantFallbackHappensOnce(t *testing.T) {
	s := fallbackSite(t, avc, avc)
	r := &echoRunner{fail: 100}
	m := newManager(s.srv.Client(), r, fetch.Options{})

	_, err := m.Run(context.Background(), Request{URL: s.url("/master.m3u8")})
	assert.ErrorIs(t, err, utils.ErrRemux)
	// two tiers on the first variant, two on the single fallback
	assert.Equal(t, 4, r.calls())
}

func TestSavePartialUsesContiguousPrefix(t *testing.T) {
	s := newSite(t)
	segs := make([][]byte, 10)
	for i := range segs {
		segs[i] = tsSegment(avc, byte(i))
	}
	s.mediaPlaylist("/live", 10, func(i int) []byte { return segs[i] })
	for _, i := range []int{3, 4, 6, 7, 8, 9} {
		s.hold(fmt.Sprintf("/live/seg%d.ts", i), true)
	}

	r := &echoRunner{}
	m := newManager(s.srv.Client(), r, fetch.Options{Concurrency: 3})
	url := s.url("/live/index.m3u8")
	errCh := make(chan error, 1)
	go func() {
		_, err := m.Run(context.Background(), Request{URL: url, Title: "live", Quality: "720p"})
		errCh <- err
	}()

	waitFor(t, func() bool {
		j, ok := m.Jobs().Get(url)
		if !ok {
			return false
		}
		p := j.Progress()
		return p != nil && p.Parts.Done() == 4
	})
	j, _ := m.Jobs().Get(url)
	assert.Equal(t, 3, j.Progress().Parts.ContiguousCount())

	res, err := m.SavePartial(context.Background(), url)
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Equal(t, "videos/live_part_720p_2024-03-09T14-05-06.mp4", res.Filename)
	assert.Equal(t, utils.Concat(segs[:3]), r.last())

	require.NoError(t, m.Stop(url))
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, utils.ErrCancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("job did not stop")
	}
	assert.Equal(t, job.Idle, j.State())
	assert.Nil(t, j.Result())
}

func TestSavePartialAfterSegmentFailure(t *testing.T) {
	s := newSite(t)
	segs := make([][]byte, 6)
	for i := range segs {
		segs[i] = tsSegment(avc, byte(i))
	}
	s.mediaPlaylist("/vod", 6, func(i int) []byte { return segs[i] })
	s.remove("/vod/seg4.ts")
	gate := s.gate("/vod/seg4.ts")

	r := &echoRunner{}
	m := newManager(s.srv.Client(), r, fetch.Options{Concurrency: 1})
	url := s.url("/vod/index.m3u8")
	errCh := make(chan error, 1)
	go func() {
		_, err := m.Run(context.Background(), Request{URL: url, Title: "vod", Quality: "480p"})
		errCh <- err
	}()
	waitFor(t, func() bool {
		j, ok := m.Jobs().Get(url)
		if !ok {
			return false
		}
		p := j.Progress()
		return p != nil && p.Parts.ContiguousCount() == 4
	})
	close(gate)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, utils.ErrNetwork)
		assert.Contains(t, err.Error(), "segment 4")
	case <-time.After(5 * time.Second):
		t.Fatal("job did not fail")
	}
	j, _ := m.Jobs().Get(url)
	assert.Equal(t, job.Idle, j.State())
	assert.Zero(t, r.calls())

	res, err := m.SavePartial(context.Background(), url)
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Equal(t, "videos/vod_part_480p_2024-03-09T14-05-06.mp4", res.Filename)
	assert.Equal(t, utils.Concat(segs[:4]), r.last())
}

func TestSavePartialWithoutProgress(t *testing.T) {
	s := newSite(t)
	m := newManager(s.srv.Client(), &echoRunner{}, fetch.Options{})
	_, err := m.SavePartial(context.Background(), "missing")
	assert.Error(t, err)

	m.Jobs().Ensure("idle", "u")
	_, err = m.SavePartial(context.Background(), "idle")
	assert.ErrorIs(t, err, ErrNoProgress)
}

func TestStopWhileRangeChunksInFlight(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 6)
	var blocking atomic.Bool
	blocking.Store(true)
	started := make(chan struct{}, 16)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if blocking.Load() && r.Header.Get("Range") != "bytes=0-0" {
			started <- struct{}{}
			select {
			case <-r.Context().Done():
			case <-release:
			}
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(data))
	}))
	defer srv.Close()
	defer close(release)

	m := newManager(srv.Client(), &echoRunner{}, fetch.Options{Concurrency: 2, ChunkSize: 10})
	url := srv.URL + "/movie.mp4"
	errCh := make(chan error, 1)
	go func() {
		_, err := m.Run(context.Background(), Request{URL: url})
		errCh <- err
	}()
	<-started
	<-started
	require.NoError(t, m.Stop(url))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, utils.ErrCancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("job did not stop")
	}
	j, _ := m.Jobs().Get(url)
	assert.Equal(t, job.Idle, j.State())
	assert.Nil(t, j.Result())
	assert.NoError(t, j.Err())

	// the same job runs to completion once the server behaves
	blocking.Store(false)
	res, err := m.Run(context.Background(), Request{URL: url, Title: "movie"})
	require.NoError(t, err)
	assert.Equal(t, data, res.Data)
	assert.Equal(t, "videos/movie_unknown_2024-03-09T14-05-06.mp4", res.Filename)
	assert.Equal(t, job.Succeeded, j.State())
}

func TestPauseHoldsRequests(t *testing.T) {
	s := newSite(t)
	s.mediaPlaylist("/p", 2, func(i int) []byte { return tsSegment(avc, byte(i)) })
	url := s.url("/p/index.m3u8")
	m := newManager(s.srv.Client(), &echoRunner{}, fetch.Options{})
	m.Jobs().Ensure(url, url)
	require.NoError(t, m.Pause(url))

	errCh := make(chan error, 1)
	go func() {
		_, err := m.Run(context.Background(), Request{URL: url})
		errCh <- err
	}()
	time.Sleep(40 * time.Millisecond)
	assert.Zero(t, s.hits.Load())

	require.NoError(t, m.Resume(url))
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("job did not resume")
	}
	assert.Error(t, m.Pause("unknown"))
}

func TestClearIsTerminal(t *testing.T) {
	s := newSite(t)
	s.put("/a.mp4", bytes.Repeat([]byte{1}, 100))
	m := newManager(s.srv.Client(), &echoRunner{}, fetch.Options{})
	url := s.url("/a.mp4")
	_, err := m.Run(context.Background(), Request{URL: url})
	require.NoError(t, err)

	m.Clear()
	_, err = m.Run(context.Background(), Request{URL: url})
	assert.ErrorIs(t, err, job.ErrCleared)
}

func TestRunDASH(t *testing.T) {
	s := newSite(t)
	video := append(initSegment(1, 90000), fragment(1, 1, 0, 0x11)...)
	video = append(video, fragment(2, 1, 180000, 0x12)...)
	audio := append(initSegment(1, 48000), fragment(1, 1, 0, 0x21)...)
	audio = append(audio, fragment(2, 1, 96000, 0x22)...)
	s.put("/video.m4s", video)
	s.put("/audio.m4s", audio)

	m := newManager(s.srv.Client(), &echoRunner{}, fetch.Options{Concurrency: 2})
	res, err := m.Run(context.Background(), Request{URL: s.url("/video.m4s"), AudioURL: s.url("/audio.m4s"), Kind: media.KindDASH, Title: "dash"})
	require.NoError(t, err)
	got := types(res.Data)
	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, []bmff.Type{bmff.TypeFtyp, bmff.TypeMoov}, got[:2])
	assert.Len(t, bmff.OfType(bmff.Parse(res.Data, 0, len(res.Data)), bmff.TypeMoof), 4)

	moov, ok := bmff.First(bmff.Parse(res.Data, 0, len(res.Data)), bmff.TypeMoov)
	require.True(t, ok)
	assert.Len(t, bmff.TrackTimescales(moov.Bytes(res.Data)), 2)
}

func sidx(millis uint32) []byte {
	ref := append(append(be32(0), be32(millis)...), be32(0x90000000)...)
	return fullBox(bmff.TypeSidx, 0, be32(1), be32(1000), be32(0), be32(0), []byte{0, 0, 0, 1}, ref)
}

func TestRunDASHTakesLongerIndexDuration(t *testing.T) {
	s := newSite(t)
	video := append(initSegment(1, 90000), sidx(2000)...)
	video = append(video, fragment(1, 1, 0, 0x11)...)
	audio := append(initSegment(1, 48000), sidx(2500)...)
	audio = append(audio, fragment(1, 1, 0, 0x21)...)
	s.put("/video.m4s", video)
	s.put("/audio.m4s", audio)

	m := newManager(s.srv.Client(), &echoRunner{}, fetch.Options{})
	res, err := m.Run(context.Background(), Request{URL: s.url("/video.m4s"), AudioURL: s.url("/audio.m4s"), Kind: media.KindDASH})
	require.NoError(t, err)
	mvhd, ok := bmff.Find(res.Data, 0, len(res.Data), bmff.TypeMvhd)
	require.True(t, ok)
	assert.EqualValues(t, 2500, bmff.U32(mvhd.Payload(res.Data), 16))
}

func TestRunDASHRejectsSameStream(t *testing.T) {
	s := newSite(t)
	m := newManager(s.srv.Client(), &echoRunner{}, fetch.Options{})
	_, err := m.Run(context.Background(), Request{URL: s.url("/v.m4s"), AudioURL: s.url("/v.m4s"), Kind: media.KindDASH})
	assert.ErrorIs(t, err, utils.ErrUnsupported)

	_, err = m.Run(context.Background(), Request{URL: s.url("/stream.mpd")})
	assert.ErrorIs(t, err, utils.ErrUnsupported)
}

func TestRunDirectFile(t *testing.T) {
	s := newSite(t)
	data := bytes.Repeat([]byte{7}, 5000)
	s.put("/clips/cat_720p.webm", data)
	m := newManager(s.srv.Client(), &echoRunner{}, fetch.Options{Concurrency: 3, ChunkSize: 1024})
	res, err := m.Run(context.Background(), Request{URL: s.url("/clips/cat_720p.webm"), Title: "cat"})
	require.NoError(t, err)
	assert.Equal(t, data, res.Data)
	assert.Equal(t, "videos/cat_720p_2024-03-09T14-05-06.webm", res.Filename)
}

func TestRunBlockedHost(t *testing.T) {
	m := NewManager(Deps{Client: http.DefaultClient, Transcoder: remux.New(remux.Config{}, &echoRunner{})})
	_, err := m.Run(context.Background(), Request{URL: "https://live.cctv.com/x/index.m3u8"})
	assert.ErrorIs(t, err, utils.ErrUnsupported)
}
