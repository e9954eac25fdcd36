package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"readthis-backend/internal/metrics"
	"readthis-backend/internal/models"

	"github.com/rs/zerolog/log"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	CoverWidth   = 500
	CoverHeight  = 750
	CoverQuality = 80

	maxCoverDownload = 10 << 20
)

// Upload is an image received from a multipart form
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// MediaService stores uploaded images and produces book covers for posts without one
type MediaService struct {
	store      ObjectStore
	finders    []CoverFinder
	client     *http.Client
	maxBytes   int64
	defaultKey string
	now        func() time.Time
}

// NewMediaService creates a new media service. Finders are tried in order.
func NewMediaService(store ObjectStore, client *http.Client, maxBytes int64, defaultKey string, finders ...CoverFinder) *MediaService {
	if client == nil {
		client = http.DefaultClient
	}
	return &MediaService{
		store:      store,
		finders:    finders,
		client:     client,
		maxBytes:   maxBytes,
		defaultKey: defaultKey,
		now:        time.Now,
	}
}

// Validate accepts JPEG and PNG uploads within the size limit. The type is sniffed from
// the content, not taken from the client.
func (s *MediaService) Validate(u *Upload) error {
	if u == nil || len(u.Data) == 0 {
		return models.NewValidationError("No file uploaded")
	}
	if int64(len(u.Data)) > s.maxBytes {
		return models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxBytes>>20))
	}
	if imageExt(http.DetectContentType(u.Data)) == "" {
		return models.NewValidationError("Only JPEG, JPG, and PNG files are allowed")
	}
	return nil
}

func imageExt(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	}
	return ""
}

// StoreProfileImage stores a user's avatar under profile/<userID>.<ext>
func (s *MediaService) StoreProfileImage(ctx context.Context, userID string, u *Upload) (string, error) {
	return s.put(ctx, "profile/"+userID, u)
}

// StorePostImage stores a post image under posts/<postID>.<ext>
func (s *MediaService) StorePostImage(ctx context.Context, postID string, u *Upload) (string, error) {
	return s.put(ctx, "posts/"+postID, u)
}

// ReplacePostImage stores a new image for an existing post under a fresh key so cached
// copies of the previous image are not served.
func (s *MediaService) ReplacePostImage(ctx context.Context, postID string, u *Upload) (string, error) {
	return s.put(ctx, fmt.Sprintf("posts/%s-%d", postID, s.now().UnixMilli()), u)
}

func (s *MediaService) put(ctx context.Context, keyBase string, u *Upload) (string, error) {
	if err := s.Validate(u); err != nil {
		return "", err
	}
	contentType := http.DetectContentType(u.Data)
	return s.store.Put(ctx, keyBase+"."+imageExt(contentType), u.Data, contentType)
}

// DefaultCoverURL is the placeholder used when no cover could be produced
func (s *MediaService) DefaultCoverURL() string {
	return s.store.URL(s.defaultKey)
}

// IsDefaultCover reports whether imageURL is the shared placeholder
func (s *MediaService) IsDefaultCover(imageURL string) bool {
	return imageURL == s.DefaultCoverURL() || imageURL == s.defaultKey
}

// CoverForTitle finds, resizes and stores a cover for a post. Each finder is tried in
// order, moving on when the lookup or the download/resize/upload of its result fails.
// It always returns a usable URL.
func (s *MediaService) CoverForTitle(ctx context.Context, title, postID string) string {
	for _, finder := range s.finders {
		coverURL, err := finder.FindCover(ctx, title)
		if err != nil {
			outcome := "error"
			if errors.Is(err, ErrNoCover) {
				outcome = "miss"
			}
			metrics.CoverLookups.WithLabelValues(finder.Name(), outcome).Inc()
			log.Warn().Err(err).Str("source", finder.Name()).Str("title", title).Msg("Cover lookup failed")
			continue
		}

		stored, err := s.storeCover(ctx, coverURL, postID)
		if err != nil {
			metrics.CoverLookups.WithLabelValues(finder.Name(), "store_error").Inc()
			log.Warn().Err(err).Str("source", finder.Name()).Str("cover_url", coverURL).Msg("Failed to store cover")
			continue
		}

		metrics.CoverLookups.WithLabelValues(finder.Name(), "hit").Inc()
		return stored
	}

	metrics.CoverLookups.WithLabelValues("default", "hit").Inc()
	log.Info().Str("title", title).Str("post_id", postID).Msg("Using default cover")
	return s.DefaultCoverURL()
}

func (s *MediaService) storeCover(ctx context.Context, coverURL, postID string) (string, error) {
	if !strings.HasPrefix(coverURL, "http://") && !strings.HasPrefix(coverURL, "https://") {
		return "", fmt.Errorf("invalid image URL: %s", coverURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download cover: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d downloading cover", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxCoverDownload))
	if err != nil {
		return "", fmt.Errorf("failed to read cover: %w", err)
	}

	encoded, err := ResizeCover(raw)
	if err != nil {
		return "", err
	}

	return s.store.Put(ctx, "posts/"+postID+".jpg", encoded, "image/jpeg")
}

// ResizeCover decodes an image, scales it to cover CoverWidth x CoverHeight, crops the
// overflow around the center and encodes it as JPEG.
func ResizeCover(raw []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode cover: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, CoverWidth, CoverHeight))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, coverCrop(src.Bounds(), CoverWidth, CoverHeight), xdraw.Src, nil)

	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, dst, &jpeg.Options{Quality: CoverQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode cover: %w", err)
	}
	return buf.Bytes(), nil
}

// coverCrop returns the largest centered region of b with the aspect ratio w:h
func coverCrop(b image.Rectangle, w, h int) image.Rectangle {
	sw, sh := b.Dx(), b.Dy()
	if sw <= 0 || sh <= 0 {
		return b
	}
	// Compare sw/sh against w/h without floating point.
	if sw*h > sh*w {
		cw := sh * w / h
		x := b.Min.X + (sw-cw)/2
		return image.Rect(x, b.Min.Y, x+cw, b.Max.Y)
	}
	ch := sw * h / w
	y := b.Min.Y + (sh-ch)/2
	return image.Rect(b.Min.X, y, b.Max.X, y+ch)
}

// NormalizeURL makes a stored image reference absolute. Absolute URLs pass through,
// relative keys are prefixed with the object store base URL, empty stays empty.
func (s *MediaService) NormalizeURL(raw string) string {
	if raw == "" || strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return s.store.BaseURL() + strings.TrimPrefix(raw, "/")
}

// NormalizePostImage is NormalizeURL with the default cover substituted for an empty value
func (s *MediaService) NormalizePostImage(raw string) string {
	if raw == "" {
		return s.DefaultCoverURL()
	}
	return s.NormalizeURL(raw)
}

// NormalizeView rewrites every image reference in a post view: the post image, the
// owner avatar and each comment owner's avatar.
func (s *MediaService) NormalizeView(v *models.PostView) {
	v.ImageURL = s.NormalizePostImage(v.ImageURL)
	v.Owner.ImageURL = s.NormalizeURL(v.Owner.ImageURL)
	for i := range v.Comments {
		v.Comments[i].Owner.ImageURL = s.NormalizeURL(v.Comments[i].Owner.ImageURL)
	}
}

// DeleteImage removes a stored post image. The default cover and empty values are
// skipped. Failures are logged only.
func (s *MediaService) DeleteImage(ctx context.Context, imageURL string) {
	if imageURL == "" || s.IsDefaultCover(imageURL) {
		return
	}
	if err := s.store.Delete(ctx, imageURL); err != nil {
		log.Warn().Err(err).Str("image_url", imageURL).Msg("Failed to delete image")
	}
}
