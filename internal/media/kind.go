// Package media classifies candidate URLs and derives the quality labels
// and filenames attached to finished downloads.
package media

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/tanq16/mediastitch/internal/utils"
)

type Kind string

const (
	KindM3U8    Kind = "m3u8"
	KindDASH    Kind = "dash"
	KindSegment Kind = "segment"
	KindFile    Kind = "file"
	KindMisc    Kind = "misc"
)

var fileExtPattern = regexp.MustCompile(`\.(mp4|webm|mkv|mov|flv|avi)(\?.*)?$`)

// Classify guesses what a URL points at from its text and an optional
// content type.
func Classify(rawURL, contentType string) Kind {
	u := strings.ToLower(rawURL)
	ct := strings.TrimSpace(strings.SplitN(strings.ToLower(contentType), ";", 2)[0])

	switch {
	case strings.Contains(u, ".m3u8"), strings.Contains(ct, "application/vnd.apple.mpegurl"), strings.Contains(ct, "application/x-mpegurl"):
		return KindM3U8
	case strings.Contains(u, ".mpd"), strings.Contains(ct, "application/dash+xml"):
		return KindDASH
	case strings.Contains(u, ".m4s"), strings.Contains(u, ".ts"),
		strings.Contains(ct, "video/mp2t"), strings.Contains(ct, "video/mpegts"), strings.Contains(ct, "video/iso.segment"):
		return KindSegment
	case strings.HasPrefix(ct, "video/"), fileExtPattern.MatchString(u):
		return KindFile
	}
	return KindMisc
}

var blockedHosts = []string{"cctv.com", "cctv.cn", "cntv.cn"}

// Blocked reports whether the URL's host is on the refusal list.
func Blocked(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, b := range blockedHosts {
		if host == b || strings.HasSuffix(host, "."+b) {
			return true
		}
	}
	return false
}

// CheckHLS rejects HLS sources this tool refuses to download.
func CheckHLS(rawURL string) error {
	if Blocked(rawURL) {
		return fmt.Errorf("%w: host of %s is blocked", utils.ErrUnsupported, rawURL)
	}
	return nil
}

// CheckDASH rejects manifests and pairs that cannot be merged.
func CheckDASH(videoURL, audioURL string) error {
	if Classify(videoURL, "") == KindDASH || Classify(audioURL, "") == KindDASH {
		return fmt.Errorf("%w: MPD manifests are not parsed, pass the two fragment streams", utils.ErrUnsupported)
	}
	if audioURL == "" {
		return fmt.Errorf("%w: DASH download needs an audio stream", utils.ErrUnsupported)
	}
	if videoURL == audioURL {
		return fmt.Errorf("%w: audio stream is the same as the video stream", utils.ErrUnsupported)
	}
	return nil
}
