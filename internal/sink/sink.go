// Package sink hands finished outputs to their destination: a local
// directory or an S3 bucket.
package sink

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/mediastitch/internal/utils"
)

// Saver stores a result and returns where it went.
type Saver interface {
	Save(ctx context.Context, res *utils.Result) (string, error)
}

// LocalSaver writes results under Dir. An explicit Output path replaces
// the generated filename.
type LocalSaver struct {
	Dir    string
	Output string
}

func (s *LocalSaver) Save(ctx context.Context, res *utils.Result) (string, error) {
	if res == nil || len(res.Data) == 0 {
		return "", fmt.Errorf("nothing to save")
	}
	target := s.Output
	if target == "" || res.Partial {
		target = filepath.Join(s.Dir, filepath.FromSlash(res.Filename))
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("error creating output directory: %w", err)
	}
	if _, err := os.Stat(target); err == nil {
		target = utils.RenewOutputPath(target)
	}

	pending, err := renameio.NewPendingFile(target)
	if err != nil {
		return "", fmt.Errorf("create pending output file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			log.Debug().Str("op", "sink/sink").Msgf("cleanup pending file: %v", err)
		}
	}()
	if _, err := pending.Write(res.Data); err != nil {
		return "", fmt.Errorf("write output data: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("atomically replace output file: %w", err)
	}
	log.Debug().Str("op", "sink/sink").Msgf("saved %s to %s", utils.FormatBytes(uint64(len(res.Data))), target)
	return target, nil
}

// Uploader is the part of manager.Uploader that S3Saver uses.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type S3Saver struct {
	Bucket   string
	Prefix   string
	uploader Uploader
}

// NewS3Saver loads AWS config for profile (empty means default chain).
func NewS3Saver(ctx context.Context, bucket, prefix, profile string) (*S3Saver, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 sink needs a bucket")
	}
	opts := []func(*config.LoadOptions) error{config.WithRetryMode("adaptive")}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}
	up := manager.NewUploader(s3.NewFromConfig(cfg), func(u *manager.Uploader) {
		u.PartSize = utils.DefaultChunkSize * 4
	})
	return NewS3SaverWith(bucket, prefix, up), nil
}

func NewS3SaverWith(bucket, prefix string, up Uploader) *S3Saver {
	return &S3Saver{Bucket: bucket, Prefix: strings.Trim(prefix, "/"), uploader: up}
}

func (s *S3Saver) Key(filename string) string {
	if s.Prefix == "" {
		return filename
	}
	return path.Join(s.Prefix, filename)
}

func (s *S3Saver) Save(ctx context.Context, res *utils.Result) (string, error) {
	if res == nil || len(res.Data) == 0 {
		return "", fmt.Errorf("nothing to save")
	}
	key := s.Key(res.Filename)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(res.Data),
	}
	if res.ContentType != "" {
		input.ContentType = aws.String(res.ContentType)
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("error uploading s3://%s/%s: %w", s.Bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.Bucket, key), nil
}
