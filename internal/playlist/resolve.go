package playlist

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/mediastitch/internal/utils"
)

const maxDepth = 3

// Fetcher retrieves playlist text.
type Fetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

type Resolver struct {
	Fetcher Fetcher
}

// Resolved is a media playlist plus, when it was reached through a master
// playlist, that master and the variant that was picked.
type Resolved struct {
	Media   *Playlist
	Master  *Playlist
	Variant Variant
}

func NewResolver(f Fetcher) *Resolver {
	return &Resolver{Fetcher: f}
}

// Resolve fetches url and follows the best variant of master playlists until
// a media playlist is reached.
func (r *Resolver) Resolve(ctx context.Context, url string) (*Resolved, error) {
	res := &Resolved{}
	for depth := 0; depth < maxDepth; depth++ {
		p, err := r.fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		if !p.IsMaster() {
			if len(p.Segments) == 0 {
				return nil, fmt.Errorf("%w: playlist %s has no segments", utils.ErrUnsupported, url)
			}
			res.Media = p
			return res, nil
		}
		best, _ := p.BestVariant()
		log.Debug().Str("op", "playlist/resolve").Msgf("master playlist with %d variants, picked %s (%d bps)", len(p.Variants), best.URL, best.Bandwidth)
		if res.Master == nil {
			res.Master = p
			res.Variant = best
		}
		url = best.URL
	}
	return nil, fmt.Errorf("%w: playlist nesting deeper than %d levels", utils.ErrUnsupported, maxDepth)
}

// ResolveMedia fetches a variant URL that is expected to be a media
// playlist, following masters the same way Resolve does.
func (r *Resolver) ResolveMedia(ctx context.Context, url string) (*Playlist, error) {
	res, err := r.Resolve(ctx, url)
	if err != nil {
		return nil, err
	}
	return res.Media, nil
}

func (r *Resolver) fetch(ctx context.Context, url string) (*Playlist, error) {
	text, err := r.Fetcher.FetchText(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("error fetching playlist: %w", err)
	}
	p, err := Parse(text, url)
	if err != nil {
		return nil, fmt.Errorf("error parsing playlist %s: %w", url, err)
	}
	return p, nil
}
