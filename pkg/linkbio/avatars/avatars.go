// Package avatars crops uploaded profile pictures to a square and stores
// them in an S3-compatible bucket.
package avatars

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/linkbio/linkbio/pkg/linkbio/store"
)

const jpegQuality = 85

// Service resizes and uploads avatars
type Service struct {
	objects   ObjectStore
	bucket    string
	publicURL string
	size      int
	logger    zerolog.Logger
}

// NewService creates an avatar service. publicURL is the base under which
// uploaded objects are served.
func NewService(objects ObjectStore, bucket, publicURL string, size int, logger zerolog.Logger) *Service {
	return &Service{
		objects:   objects,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		size:      size,
		logger:    logger.With().Str("component", "avatars").Logger(),
	}
}

// Process decodes an image, honours its EXIF orientation and center-crops it
// to a size x size JPEG
func (s *Service) Process(r io.Reader) ([]byte, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &store.Error{Kind: store.KindInvalid, Op: "process avatar", Err: fmt.Errorf("decode image: %w", err)}
	}
	img = imaging.Fill(img, s.size, s.size, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, &store.Error{Kind: store.KindInternal, Op: "process avatar", Err: err}
	}
	return buf.Bytes(), nil
}

// Upload processes the image and stores it under a fresh key, returning its public URL
func (s *Service) Upload(ctx context.Context, profileID uint, r io.Reader) (string, error) {
	data, err := s.Process(r)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("avatars/%d/%s.jpg", profileID, uuid.NewString())
	_, err = s.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String("image/jpeg"),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("failed to upload avatar")
		return "", &store.Error{Kind: store.KindUnavailable, Op: "upload avatar", Err: err}
	}
	return s.publicURL + "/" + key, nil
}
