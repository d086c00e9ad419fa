package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kjstillabower/apiverse/internal/generator"
	"github.com/kjstillabower/apiverse/internal/models"
	"github.com/kjstillabower/apiverse/internal/observability"
	"github.com/kjstillabower/apiverse/internal/store"
)

const (
	categorySuffix = "-images"
	defaultImage   = "default.jpg"
	randomName     = "random"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png"}

// Image is a resolved placeholder image.
type Image struct {
	Path   string
	Width  int
	Height int
}

// ImageService maps (category, name) to image files under a static
// directory laid out as <category>-images/<name>.<ext>.
type ImageService struct {
	store     store.DocumentStore
	staticDir string
	src       *generator.Source
}

func NewImageService(st store.DocumentStore, staticDir string, src *generator.Source) *ImageService {
	return &ImageService{store: st, staticDir: staticDir, src: src}
}

// Categories returns the category name of every <category>-images directory.
func (s *ImageService) Categories() ([]string, error) {
	entries, err := os.ReadDir(s.staticDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read static dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), categorySuffix); ok && e.IsDir() && name != "" {
			out = append(out, name)
		}
	}
	return out, nil
}

func (s *ImageService) categoryDir(category string) string {
	return filepath.Join(s.staticDir, category+categorySuffix)
}

// SyncMappings clears every stored mapping and records one per image file.
// Returns the number of mappings written.
func (s *ImageService) SyncMappings(ctx context.Context) (int, error) {
	existing, err := s.store.Fetch(ctx, store.NewQuery(models.KindImageMapping), 0, 0)
	if err != nil {
		return 0, fmt.Errorf("load image mappings: %w", err)
	}
	if err := s.store.DeleteMulti(ctx, models.KindImageMapping, store.Keys(existing)); err != nil {
		return 0, fmt.Errorf("clear image mappings: %w", err)
	}

	categories, err := s.Categories()
	if err != nil {
		return 0, err
	}
	written := 0
	for _, category := range categories {
		dir := s.categoryDir(category)
		entries, err := os.ReadDir(dir)
		if err != nil {
			return written, fmt.Errorf("read %s: %w", dir, err)
		}
		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if e.IsDir() || !isImageExt(ext) {
				continue
			}
			m := models.ImageMapping{
				Category: category,
				Name:     strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
				Location: filepath.Join(dir, e.Name()),
			}
			fields, err := store.Encode(m)
			if err != nil {
				return written, err
			}
			if err := s.store.Put(ctx, models.KindImageMapping, category+"-"+m.Name, fields); err != nil {
				return written, fmt.Errorf("save image mapping: %w", err)
			}
			written++
		}
	}
	observability.LoggerFrom(ctx).Info("image mappings synced", zap.Int("categories", len(categories)), zap.Int("images", written))
	return written, nil
}

func isImageExt(ext string) bool {
	for _, e := range imageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Resolve returns the image for (category, name). "random" picks any mapped
// image of the category. Unmapped names and missing files fall back to the
// category's default image; an unknown category is ErrNotFound.
func (s *ImageService) Resolve(ctx context.Context, category, name string, width, height int) (Image, error) {
	dir := s.categoryDir(category)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return Image{}, notFound("image category %s", category)
	}
	img := Image{Path: filepath.Join(dir, defaultImage), Width: width, Height: height}
	logger := observability.LoggerFrom(ctx)

	if name == randomName {
		docs, err := s.store.Fetch(ctx, store.NewQuery(models.KindImageMapping).Filter("category", store.Eq, category), 0, 0)
		if err != nil {
			logger.Warn("image mapping lookup failed, using default", zap.String("category", category), zap.Error(err))
			return img, nil
		}
		if len(docs) > 0 {
			if m, err := store.Decode[models.ImageMapping](generator.Pick(s.src, docs)); err == nil {
				img.Path = m.Location
			}
		}
		return img, nil
	}

	doc, err := s.store.Get(ctx, models.KindImageMapping, category+"-"+name)
	if err != nil {
		return img, nil
	}
	m, err := store.Decode[models.ImageMapping](doc)
	if err != nil {
		return img, nil
	}
	if _, err := os.Stat(m.Location); err != nil {
		logger.Warn("mapped image missing, using default", zap.String("location", m.Location))
		return img, nil
	}
	img.Path = m.Location
	return img, nil
}
