package pipeline

import (
	"context"
	"fmt"

	"github.com/tanq16/mediastitch/internal/job"
	"github.com/tanq16/mediastitch/internal/media"
	"github.com/tanq16/mediastitch/internal/utils"
)

// runFile downloads a direct media file as is.
func (m *Manager) runFile(ctx context.Context, j *job.Job, req Request) (*utils.Result, error) {
	j.SetStatus("downloading")
	file, err := m.fetcher(j).FetchFile(ctx, req.URL, req.Progress)
	if err != nil {
		return nil, fmt.Errorf("file download: %w", err)
	}
	title := req.Title
	if title == "" {
		title = "video"
	}
	quality := media.NormalizeQuality(req.Quality, req.URL)
	return &utils.Result{
		Data:        file.Data,
		Filename:    m.filename(title, quality, media.GuessExt(req.URL, file.ContentType)),
		ContentType: file.ContentType,
	}, nil
}
