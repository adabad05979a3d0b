package media

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	bitratePattern    = regexp.MustCompile(`(?i)[/_](\d{3,5})\.m3u8`)
	resolutionPattern = regexp.MustCompile(`/(\d{3,4})x(\d{3,4})/`)
	heightPattern     = regexp.MustCompile(`(?i)[/_](\d{3,4})p[/_.\-?]`)
	labelPattern      = regexp.MustCompile(`^\d+p$`)
)

// InferQuality reads a quality label out of a URL. Numeric playlist names
// are treated as bitrates in kbit/s. Returns "" when nothing matches.
func InferQuality(rawURL string) string {
	if m := bitratePattern.FindStringSubmatch(rawURL); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch {
		case n >= 2000:
			return "1080p"
		case n >= 1000:
			return "720p"
		case n >= 600:
			return "480p"
		case n >= 350:
			return "360p"
		case n >= 200:
			return "240p"
		}
		return fmt.Sprintf("%dk", n)
	}
	if m := resolutionPattern.FindStringSubmatch(rawURL); m != nil {
		if h, _ := strconv.Atoi(m[2]); h > 0 {
			return fmt.Sprintf("%dp", h)
		}
	}
	if m := heightPattern.FindStringSubmatch(rawURL); m != nil {
		return m[1] + "p"
	}
	return ""
}

// NormalizeQuality picks the label shown for a candidate. For playlists the
// URL wins over the hint; otherwise only "<N>p" and "4k" hints are kept.
func NormalizeQuality(hint, rawURL string) string {
	if strings.Contains(strings.ToLower(rawURL), ".m3u8") {
		if q := InferQuality(rawURL); q != "" {
			return q
		}
	}
	q := strings.ToLower(strings.TrimSpace(hint))
	if q != "" && q != "unknown" && (labelPattern.MatchString(q) || q == "4k") {
		return q
	}
	if q := InferQuality(rawURL); q != "" {
		return q
	}
	return "unknown"
}

var qualityRank = map[string]int{
	"4k":    4000,
	"2160p": 2160,
	"1440p": 1440,
	"1080p": 1080,
	"720p":  720,
	"480p":  480,
	"360p":  360,
}

// CompareQuality orders two labels; unknown labels rank lowest.
func CompareQuality(a, b string) int {
	ra := qualityRank[strings.ToLower(strings.TrimSpace(a))]
	rb := qualityRank[strings.ToLower(strings.TrimSpace(b))]
	return ra - rb
}

// HeightLabel turns a RESOLUTION attribute such as 1280x720 into "720p".
func HeightLabel(resolution string) string {
	_, h, ok := strings.Cut(strings.ToLower(resolution), "x")
	if !ok {
		return ""
	}
	n, err := strconv.Atoi(h)
	if err != nil || n <= 0 {
		return ""
	}
	return fmt.Sprintf("%dp", n)
}
