package http

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"civicreport/internal/models"
)

const (
	maxImages    = 5
	maxImageSize = 10 << 20 // 10MB per file
)

var (
	errTooManyImages = errors.New("too many images")
	errImageTooLarge = errors.New("image too large")
	errImageType     = errors.New("unsupported image type")
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

var imageMIMEs = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// saveUploadedImages validates and stores the multipart "images" files
// under <uploadDir>/posts, returning the records to embed in the post.
// Filenames are regenerated, never taken from the client.
func (e *Env) saveUploadedImages(c *gin.Context) ([]models.Image, error) {
	form, err := c.MultipartForm()
	if err != nil {
		// No multipart body at all means no images were attached.
		return []models.Image{}, nil
	}

	files := form.File["images"]
	if len(files) > maxImages {
		return nil, errTooManyImages
	}

	dir := filepath.Join(e.Cfg.UploadDir, "posts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	images := make([]models.Image, 0, len(files))
	for _, file := range files {
		if file.Size > maxImageSize {
			return nil, errImageTooLarge
		}
		ext := strings.ToLower(filepath.Ext(file.Filename))
		if !imageExts[ext] || !imageMIMEs[file.Header.Get("Content-Type")] {
			return nil, errImageType
		}

		name := "post-" + uuid.NewString() + ext
		if err := c.SaveUploadedFile(file, filepath.Join(dir, name)); err != nil {
			return nil, err
		}
		images = append(images, models.Image{
			URL:        "/uploads/posts/" + name,
			Filename:   name,
			UploadedAt: time.Now(),
		})
	}
	return images, nil
}
