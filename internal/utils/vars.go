package utils

import (
	"context"
	"errors"
)

const DefaultBufferSize = 1024 * 1024 * 8 // 8MB buffer
const DefaultChunkSize = 2 * 1024 * 1024
const TempDirName = ".mediastitch-temp"
const ToolUserAgent = "mediastitch/1.0"

// Error taxonomy shared by every stage. Callers match with errors.Is.
var (
	ErrUnsupported        = errors.New("unsupported feature")
	ErrMalformedContainer = errors.New("malformed container")
	ErrMalformedTS        = errors.New("malformed transport stream")
	ErrNetwork            = errors.New("network failure")
	ErrCancelled          = errors.New("cancelled")
	ErrRemux              = errors.New("remux failed")
)

var ErrRangeRequestsNotSupported = errors.New("range requests are not supported")

// IsCancelled reports whether err is a user cancellation rather than a failure.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// Local-only User-Agent list
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:135.0) Gecko/20100101 Firefox/135.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:135.0) Gecko/20100101 Firefox/135.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.3 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36 Edg/132.0.0.0",
}
