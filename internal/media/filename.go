package media

import (
	"path"
	"regexp"
	"strings"
	"time"
)

const maxTitleLen = 90

var (
	unsafeChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// SanitizeTitle makes a title safe to use as a file name.
func SanitizeTitle(title string) string {
	if title == "" {
		title = "video"
	}
	safe := unsafeChars.ReplaceAllString(title, "_")
	safe = whitespace.ReplaceAllString(safe, "_")
	if r := []rune(safe); len(r) > maxTitleLen {
		safe = string(r[:maxTitleLen])
	}
	return safe
}

// BuildFilename returns videos/<title>[_<quality>]_<UTC timestamp>.<ext>.
func BuildFilename(title, quality, ext string, now time.Time) string {
	name := SanitizeTitle(title)
	if quality != "" {
		name += "_" + quality
	}
	stamp := strings.ReplaceAll(now.UTC().Format("2006-01-02T15:04:05"), ":", "-")
	return path.Join("videos", name+"_"+stamp+"."+ext)
}

// GuessExt picks an output extension from the URL, then the MIME type.
func GuessExt(rawURL, mime string) string {
	u := strings.ToLower(rawURL)
	for _, ext := range []string{"mp4", "webm", "mkv", "flv"} {
		if strings.Contains(u, "."+ext) {
			return ext
		}
	}
	m := strings.ToLower(mime)
	switch {
	case strings.Contains(m, "webm"):
		return "webm"
	case strings.Contains(m, "mp4"):
		return "mp4"
	}
	return "bin"
}
