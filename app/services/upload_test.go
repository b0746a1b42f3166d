package services

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rrnagar/marketplace/config"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUploadImageMakesThumbnail(t *testing.T) {
	f := setup(t)

	up, err := f.svc.Uploads.Store(f.ctx, bytes.NewReader(pngBytes(t, 800, 400)))
	require.NoError(t, err)
	assert.Equal(t, "image/png", up.ContentType)
	assert.True(t, strings.HasSuffix(up.Key, ".png"))
	assert.True(t, strings.HasPrefix(up.URL, "/uploads/"))
	require.NotEmpty(t, up.ThumbURL)

	thumbKey := strings.TrimSuffix(up.Key, ".png") + "_thumb.png"
	assert.True(t, f.svc.Uploads.disk.Exists(f.ctx, thumbKey))

	rc, err := f.svc.Uploads.disk.Get(f.ctx, thumbKey)
	require.NoError(t, err)
	defer rc.Close()
	cfg, err := png.DecodeConfig(rc)
	require.NoError(t, err)
	assert.Equal(t, ThumbWidth, cfg.Width)
	assert.Equal(t, 160, cfg.Height)
}

func TestUploadDocumentHasNoThumbnail(t *testing.T) {
	f := setup(t)
	up, err := f.svc.Uploads.Store(f.ctx, strings.NewReader("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n"))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", up.ContentType)
	assert.Empty(t, up.ThumbURL)
}

func TestUploadRejects(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Uploads.Store(f.ctx, strings.NewReader("just some text"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "file")

	_, err = f.svc.Uploads.Store(f.ctx, strings.NewReader(""))
	assert.ErrorAs(t, err, &verr)

	config.Set("UPLOAD_MAX_BYTES", "16")
	t.Cleanup(func() { config.Set("UPLOAD_MAX_BYTES", "") })
	_, err = f.svc.Uploads.Store(f.ctx, strings.NewReader(strings.Repeat("x", 64)))
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields["file"], "greater than")
}

// pngHeader is a PNG signature and IHDR chunk declaring w x h RGBA pixels,
// with no image data behind it.
func pngHeader(w, h uint32) []byte {
	chunk := make([]byte, 4+13)
	copy(chunk, "IHDR")
	binary.BigEndian.PutUint32(chunk[4:], w)
	binary.BigEndian.PutUint32(chunk[8:], h)
	chunk[12] = 8 // bit depth
	chunk[13] = 6 // truecolor with alpha

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestUploadRejectsOversizedImageBeforeDecoding(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Uploads.Store(f.ctx, bytes.NewReader(pngHeader(30000, 30000)))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields["file"], "megapixels")

	_, err = f.svc.Uploads.Store(f.ctx, bytes.NewReader(pngHeader(30000, 30000)[:20]))
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields["file"], "not a valid image")
}
