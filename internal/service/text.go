package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kjstillabower/apiverse/internal/format"
	"github.com/kjstillabower/apiverse/internal/generator"
	"github.com/kjstillabower/apiverse/internal/observability"
)

// TextClient fetches paragraphs from an external text backend.
type TextClient interface {
	Paragraphs(ctx context.Context, theme, length string, count int) ([]string, error)
}

// TextService produces placeholder paragraphs locally or from a backend.
// Backend failures are reported inline in place of the text.
type TextService struct {
	gen       *generator.TextGenerator
	client    TextClient
	formatter *format.Formatter
}

// NewTextService creates a TextService. client may be nil to always generate locally.
func NewTextService(gen *generator.TextGenerator, client TextClient, formatter *format.Formatter) *TextService {
	return &TextService{gen: gen, client: client, formatter: formatter}
}

// Paragraphs returns count paragraphs of theme and length.
func (s *TextService) Paragraphs(ctx context.Context, theme, length string, count int) format.Paragraphs {
	theme = strings.ToLower(strings.TrimSpace(theme))
	length = strings.ToLower(strings.TrimSpace(length))
	if s.client == nil {
		observability.GeneratedTotal.WithLabelValues("text").Add(float64(count))
		return s.gen.Paragraphs(theme, length, count)
	}
	paras, err := s.client.Paragraphs(ctx, theme, length, count)
	if err != nil {
		observability.LoggerFrom(ctx).Warn("text backend failed", zap.Error(err))
		return format.Paragraphs{fmt.Sprintf("Error generating text: %v", err)}
	}
	return paras
}

// Resolve returns rendered paragraphs.
func (s *TextService) Resolve(ctx context.Context, theme, length string, count int, f format.Format) (format.Output, error) {
	paras := s.Paragraphs(ctx, theme, length, count)
	title := "Lorem Text"
	if theme = strings.ToLower(strings.TrimSpace(theme)); theme != "" {
		title = strings.ToUpper(theme[:1]) + theme[1:] + " Text"
	}
	return s.formatter.Render(title, paras, f)
}
