// Package playlist parses HLS playlists into variant lists and resolved
// segment lists.
package playlist

import (
	"bufio"
	"cmp"
	"fmt"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	hls "github.com/bluenviron/gohlslib/v2/pkg/playlist"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/mediastitch/internal/media"
	"github.com/tanq16/mediastitch/internal/utils"
)

type Variant struct {
	Bandwidth  int
	Codecs     []string
	Resolution string
	URL        string
	Label      string
}

type Segment struct {
	URL      string
	Duration float64
}

// Playlist is either a master (Variants set) or a media playlist
// (Segments set). URLs are absolute.
type Playlist struct {
	URL           string
	Variants      []Variant
	Segments      []Segment
	InitURI       string
	TotalDuration float64
}

func (p *Playlist) IsMaster() bool {
	return len(p.Variants) > 0
}

// IsFMP4 reports whether segments are fMP4 fragments behind an init segment.
func (p *Playlist) IsFMP4() bool {
	return p.InitURI != ""
}

func (p *Playlist) SegmentURLs() []string {
	urls := make([]string, len(p.Segments))
	for i, s := range p.Segments {
		urls[i] = s.URL
	}
	return urls
}

// BestVariant returns the highest-bandwidth variant; the first one wins ties.
func (p *Playlist) BestVariant() (Variant, bool) {
	if len(p.Variants) == 0 {
		return Variant{}, false
	}
	best := p.Variants[0]
	for _, v := range p.Variants[1:] {
		if v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	return best, true
}

// Alternatives lists every variant except the one at skipURL, best quality
// first and then by bandwidth.
func (p *Playlist) Alternatives(skipURL string) []Variant {
	var out []Variant
	for _, v := range p.Variants {
		if v.URL != skipURL {
			out = append(out, v)
		}
	}
	slices.SortStableFunc(out, func(a, b Variant) int {
		if c := media.CompareQuality(b.Label, a.Label); c != 0 {
			return c
		}
		return cmp.Compare(b.Bandwidth, a.Bandwidth)
	})
	return out
}

// Parse reads playlist text fetched from baseURL. Encrypted and byte-range
// playlists are refused with utils.ErrUnsupported.
func Parse(text, baseURL string) (*Playlist, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing playlist URL: %w", err)
	}
	if err := checkSupported(text); err != nil {
		return nil, err
	}
	if strings.Contains(text, "#EXT-X-STREAM-INF") {
		return parseMaster(text, base)
	}
	return parseMedia(text, base)
}

func checkSupported(text string) error {
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "#EXT-X-KEY"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-KEY:"))
			if !strings.EqualFold(attrs["METHOD"], "NONE") {
				return fmt.Errorf("%w: encrypted playlist (%s)", utils.ErrUnsupported, attrs["METHOD"])
			}
		case strings.HasPrefix(line, "#EXT-X-BYTERANGE"):
			return fmt.Errorf("%w: byte-range playlist", utils.ErrUnsupported)
		}
	}
	return nil
}

func parseMaster(text string, base *url.URL) (*Playlist, error) {
	p := &Playlist{URL: base.String()}
	decoded, err := hls.Unmarshal([]byte(text))
	if mv, ok := decoded.(*hls.Multivariant); err == nil && ok && len(mv.Variants) > 0 {
		for _, v := range mv.Variants {
			p.Variants = append(p.Variants, newVariant(base, v.URI, v.Bandwidth, v.Codecs, v.Resolution))
		}
		return p, nil
	}
	if err != nil {
		log.Debug().Str("op", "playlist/playlist").Msgf("strict decoder refused master playlist, scanning lines: %v", err)
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	var pending map[string]string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF"):
			_, rest, _ := strings.Cut(line, ":")
			pending = parseAttributes(rest)
		case strings.HasPrefix(line, "#"):
		case pending != nil:
			bw, _ := strconv.Atoi(pending["BANDWIDTH"])
			var codecs []string
			if c := pending["CODECS"]; c != "" {
				for _, part := range strings.Split(c, ",") {
					codecs = append(codecs, strings.TrimSpace(part))
				}
			}
			p.Variants = append(p.Variants, newVariant(base, line, bw, codecs, pending["RESOLUTION"]))
			pending = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning playlist: %w", err)
	}
	if len(p.Variants) == 0 {
		return nil, fmt.Errorf("%w: master playlist lists no variants", utils.ErrUnsupported)
	}
	return p, nil
}

func newVariant(base *url.URL, uri string, bandwidth int, codecs []string, resolution string) Variant {
	abs := resolveURL(base, uri)
	label := media.HeightLabel(resolution)
	if label == "" {
		label = media.InferQuality(abs)
	}
	return Variant{
		Bandwidth:  bandwidth,
		Codecs:     codecs,
		Resolution: resolution,
		URL:        abs,
		Label:      label,
	}
}

func parseMedia(text string, base *url.URL) (*Playlist, error) {
	p := &Playlist{URL: base.String()}
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	duration := 0.0
	total := 0.0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, "#EXTINF:"):
			value, _, _ := strings.Cut(strings.TrimPrefix(line, "#EXTINF:"), ",")
			d, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil || d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
				d = 0
			}
			duration = d
		case strings.HasPrefix(line, "#EXT-X-MAP:"):
			if uri := parseAttributes(strings.TrimPrefix(line, "#EXT-X-MAP:"))["URI"]; uri != "" && p.InitURI == "" {
				p.InitURI = resolveURL(base, uri)
			}
		case strings.HasPrefix(line, "#"):
		default:
			p.Segments = append(p.Segments, Segment{URL: resolveURL(base, line), Duration: duration})
			total += duration
			duration = 0
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning playlist: %w", err)
	}
	p.TotalDuration = roundMillis(total)
	return p, nil
}

// parseAttributes splits an attribute list such as
// BANDWIDTH=1280000,CODECS="avc1.4d401f,mp4a.40.2" into its pairs.
func parseAttributes(s string) map[string]string {
	attrs := make(map[string]string)
	for len(s) > 0 {
		key, rest, ok := strings.Cut(s, "=")
		if !ok {
			break
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		var value string
		if strings.HasPrefix(rest, `"`) {
			end := strings.IndexByte(rest[1:], '"')
			if end < 0 {
				value, s = rest[1:], ""
			} else {
				value = rest[1 : end+1]
				s = rest[end+2:]
			}
			s = strings.TrimPrefix(s, ",")
		} else {
			value, s, _ = strings.Cut(rest, ",")
		}
		attrs[key] = strings.TrimSpace(value)
	}
	return attrs
}

func resolveURL(base *url.URL, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(rel).String()
}

func roundMillis(seconds float64) float64 {
	return math.Round(seconds*1000) / 1000
}
