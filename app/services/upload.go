package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/nfnt/resize"

	"github.com/rrnagar/marketplace/config"
	"github.com/rrnagar/marketplace/pkg/logger"
	"github.com/rrnagar/marketplace/pkg/metrics"
	"github.com/rrnagar/marketplace/pkg/storage"
	"github.com/rrnagar/marketplace/pkg/workerpool"
)

// ThumbWidth is the width of generated image thumbnails.
const ThumbWidth = 320

// MaxImagePixels bounds width*height of JPEG and PNG uploads, which are
// decoded in full for the thumbnail.
const MaxImagePixels = 40_000_000

// accepted maps sniffed content types to stored extensions.
var accepted = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// UploadService stores user files on the default disk and makes
// thumbnails for JPEG and PNG images on a worker pool.
type UploadService struct {
	disk storage.Disk
	pool *workerpool.Pool
}

type Upload struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ThumbURL    string `json:"thumbUrl,omitempty"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Store validates and saves r. The content type is sniffed from the bytes;
// the client's claim is ignored.
func (s *UploadService) Store(ctx context.Context, r io.Reader) (*Upload, error) {
	limit := config.UploadMaxBytes()
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("upload: read: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, invalid("file", fmt.Sprintf("The file may not be greater than %d MB.", limit>>20))
	}
	if len(data) == 0 {
		return nil, invalid("file", "The file field is required.")
	}
	ctype := http.DetectContentType(data)
	ext, ok := accepted[ctype]
	if !ok {
		return nil, invalid("file", "The file must be a jpeg, png, webp or pdf.")
	}

	if ctype == "image/jpeg" || ctype == "image/png" {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, invalid("file", "The file is not a valid image.")
		}
		if int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
			return nil, invalid("file", fmt.Sprintf("The image may not exceed %d megapixels.", MaxImagePixels/1_000_000))
		}
	}

	now := time.Now()
	base := fmt.Sprintf("%04d/%02d/%s", now.Year(), int(now.Month()), uuid.NewString())
	up := &Upload{Key: base + ext, ContentType: ctype, Size: int64(len(data))}
	if err := s.disk.Put(ctx, up.Key, bytes.NewReader(data), ctype); err != nil {
		return nil, fmt.Errorf("upload: store: %w", err)
	}
	up.URL = s.disk.URL(up.Key)

	kind := "document"
	if ctype == "image/jpeg" || ctype == "image/png" {
		kind = "image"
		thumbKey := base + "_thumb" + ext
		err := s.pool.Do(ctx, func(ctx context.Context) error {
			return s.thumbnail(ctx, data, ctype, thumbKey)
		})
		switch {
		case err == nil:
			up.ThumbURL = s.disk.URL(thumbKey)
		case errors.Is(err, workerpool.ErrPoolFull):
			logger.WithCtx(ctx).Warn("upload: thumbnail skipped, pool full", "key", up.Key)
		default:
			s.discard(ctx, up.Key)
			return nil, err
		}
	} else if ctype == "image/webp" {
		kind = "image"
	}

	metrics.Uploads.WithLabelValues(kind).Inc()
	return up, nil
}

func (s *UploadService) thumbnail(ctx context.Context, data []byte, ctype, key string) error {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return invalid("file", "The file is not a valid image.")
	}
	if img.Bounds().Dx() > ThumbWidth {
		img = resize.Resize(ThumbWidth, 0, img, resize.Lanczos3)
	}
	var buf bytes.Buffer
	if ctype == "image/png" {
		err = png.Encode(&buf, img)
	} else {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80})
	}
	if err != nil {
		return fmt.Errorf("upload: encode thumbnail: %w", err)
	}
	if err := s.disk.Put(ctx, key, &buf, ctype); err != nil {
		return fmt.Errorf("upload: store thumbnail: %w", err)
	}
	return nil
}

func (s *UploadService) discard(ctx context.Context, key string) {
	if err := s.disk.Delete(ctx, key); err != nil {
		logger.WithCtx(ctx).Warn("upload: cleanup failed", "key", key, "error", err)
	}
}
