package utils

// Candidate is a media reference supplied by a page scanner. Every field is
// a hint; quality and codec are re-derived from the URL and bitstream.
type Candidate struct {
	URL         string `yaml:"url"`
	AudioURL    string `yaml:"audio,omitempty"`
	Title       string `yaml:"title,omitempty"`
	Quality     string `yaml:"quality,omitempty"`
	ContentType string `yaml:"type,omitempty"`
	Size        int64  `yaml:"size,omitempty"`
	OutputPath  string `yaml:"op,omitempty"`
}

// Result is a finished output waiting to be handed to a sink.
type Result struct {
	Data        []byte
	Filename    string
	ContentType string
	Partial     bool
}
