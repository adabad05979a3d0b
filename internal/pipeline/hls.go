package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/mediastitch/internal/bmff"
	"github.com/tanq16/mediastitch/internal/fetch"
	"github.com/tanq16/mediastitch/internal/job"
	"github.com/tanq16/mediastitch/internal/media"
	"github.com/tanq16/mediastitch/internal/playlist"
	"github.com/tanq16/mediastitch/internal/remux"
	"github.com/tanq16/mediastitch/internal/tsprobe"
	"github.com/tanq16/mediastitch/internal/utils"
)

// trimToSync drops bytes before the first packet boundary, such as an ID3
// tag, and rejects segments that are not transport streams.
func trimToSync(seg []byte) ([]byte, error) {
	off := tsprobe.SyncOffset(seg)
	if off < 0 {
		return nil, fmt.Errorf("%w: segment has no packet alignment", utils.ErrMalformedTS)
	}
	return seg[off:], nil
}

func (m *Manager) runHLS(ctx context.Context, j *job.Job, req Request, url, quality string) (*utils.Result, error) {
	if err := media.CheckHLS(url); err != nil {
		return nil, err
	}
	f := m.fetcher(j)
	resolver := playlist.NewResolver(f)

	j.SetStatus("resolving playlist")
	resolved, err := resolver.Resolve(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}
	p := resolved.Media
	if quality == "" && resolved.Master != nil {
		quality = resolved.Variant.Label
	}
	quality = media.NormalizeQuality(quality, p.URL)

	durations := make([]float64, len(p.Segments))
	for i, s := range p.Segments {
		durations[i] = s.Duration
	}
	prog := &job.Progress{Parts: job.NewParts(len(p.Segments)), Durations: durations, FMP4: p.IsFMP4()}

	segFetcher := f
	if p.IsFMP4() {
		j.SetStatus("fetching init segment")
		if prog.Init, err = f.FetchBytes(ctx, p.InitURI); err != nil {
			return nil, fmt.Errorf("init segment: %w", err)
		}
	} else {
		segFetcher = f.WithTransform(trimToSync)
	}
	j.SetProgress(prog)

	j.SetStatus("downloading segments")
	log.Debug().Str("op", "pipeline/hls").Msgf("%d segments, %.3fs, fmp4=%v", len(p.Segments), p.TotalDuration, p.IsFMP4())
	if err := segFetcher.FetchSegments(ctx, p.SegmentURLs(), prog.Parts, req.Progress); err != nil {
		return nil, fmt.Errorf("hls download: %w", err)
	}
	segs, complete := prog.Parts.All()
	if !complete {
		return nil, fmt.Errorf("%w: segments missing after download", utils.ErrNetwork)
	}

	if p.IsFMP4() {
		j.SetStatus("joining fragments")
		out, err := bmff.ConcatFragments(prog.Init, segs, p.TotalDuration)
		if err != nil {
			return nil, fmt.Errorf("fmp4 concat: %w", err)
		}
		return m.mp4Result(utils.Concat(out), req.Title, quality, false), nil
	}

	probe := tsprobe.ProbeSegments(segs)
	if !probe.SyncOK {
		return nil, fmt.Errorf("%w: segments are not transport streams", utils.ErrMalformedTS)
	}
	j.SetStatus("remuxing")
	data, err := m.deps.Transcoder.Remux(ctx, utils.Concat(segs), remux.InputTS)
	if err == nil {
		return m.mp4Result(data, req.Title, quality, false), nil
	}
	if utils.IsCancelled(err) || ctx.Err() != nil {
		return nil, err
	}

	if resolved.Master != nil && j.MarkFallback() {
		if alt, ok := m.playableVariant(ctx, f, resolver, resolved.Master.Alternatives(resolved.Variant.URL)); ok {
			log.Debug().Str("op", "pipeline/hls").Msgf("%s codec failed to remux, switching to %s", probe.VideoCodec, alt.URL)
			j.SetStatus("incompatible codec, switching to " + alt.Label)
			return m.runHLS(ctx, j, req, alt.URL, alt.Label)
		}
	}
	if probe.VideoCodec == tsprobe.CodecHEVC {
		return nil, fmt.Errorf("hevc stream could not be transcoded, pick another quality: %w", err)
	}
	return nil, fmt.Errorf("remux: %w", err)
}

// playableVariant returns the first candidate whose first segment aligns
// and declares AVC video. Probe failures just skip the candidate.
func (m *Manager) playableVariant(ctx context.Context, f *fetch.Fetcher, resolver *playlist.Resolver, candidates []playlist.Variant) (playlist.Variant, bool) {
	for _, c := range candidates {
		if ctx.Err() != nil {
			return playlist.Variant{}, false
		}
		p, err := resolver.ResolveMedia(ctx, c.URL)
		if err != nil {
			log.Debug().Str("op", "pipeline/hls").Msgf("skipping variant %s: %v", c.URL, err)
			continue
		}
		first, err := f.FetchBytes(ctx, p.Segments[0].URL)
		if err != nil {
			log.Debug().Str("op", "pipeline/hls").Msgf("skipping variant %s: %v", c.URL, err)
			continue
		}
		r := tsprobe.Probe(first)
		if r.SyncOK && r.VideoCodec == tsprobe.CodecAVC {
			return c, true
		}
		log.Debug().Str("op", "pipeline/hls").Msgf("variant %s probes as %s (sync %v)", c.URL, r.VideoCodec, r.SyncOK)
	}
	return playlist.Variant{}, false
}

func (m *Manager) mp4Result(data []byte, title, quality string, partial bool) *utils.Result {
	if title == "" {
		title = "video"
	}
	if partial {
		title += "_part"
	}
	return &utils.Result{
		Data:        data,
		Filename:    m.filename(title, quality, "mp4"),
		ContentType: "video/mp4",
		Partial:     partial,
	}
}
