package categorize

import (
	"context"
	"fmt"
	"strings"

	"feedpipe/internal/metrics"
	"feedpipe/internal/model"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// maxDescriptionRunes bounds how much of the description goes into a prompt.
const maxDescriptionRunes = 1000

// Classifier is an external text classifier. It receives a complete prompt
// and returns the raw response text.
type Classifier interface {
	Classify(ctx context.Context, prompt string) (string, error)
}

// ClassificationError describes why a classifier answer was not usable. It
// never escapes Categorize; it is logged and resolved to the fallback label.
type ClassificationError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *ClassificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classification failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("classification failed: %s (raw %q)", e.Reason, e.Raw)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// Categorizer maps an article onto the fixed vocabulary. Categorize is total:
// every failure mode yields model.FallbackCategory.
type Categorizer struct {
	classifier Classifier
	logger     *zap.Logger
}

func NewCategorizer(classifier Classifier, logger *zap.Logger) *Categorizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Categorizer{classifier: classifier, logger: logger}
}

func (c *Categorizer) Categorize(ctx context.Context, title, description string) (category model.Category) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Classifier panicked", zap.Any("panic", r))
			category = c.fallback()
		}
	}()

	if c.classifier == nil {
		return c.fallback()
	}

	raw, err := c.classifier.Classify(ctx, BuildPrompt(title, description))
	if err != nil {
		c.logger.Warn("Classifier unavailable", zap.Error(&ClassificationError{Reason: "classifier call", Err: err}))
		return c.fallback()
	}

	category, err = ParseLabel(raw)
	if err != nil {
		c.logger.Warn("Unusable classifier output", zap.Error(err))
		return c.fallback()
	}

	metrics.ArticlesCategorized.WithLabelValues(string(category)).Inc()
	return category
}

func (c *Categorizer) fallback() model.Category {
	metrics.ClassifierErrors.Inc()
	metrics.ArticlesCategorized.WithLabelValues(string(model.FallbackCategory)).Inc()
	return model.FallbackCategory
}

// BuildPrompt asks for exactly one label from the vocabulary.
func BuildPrompt(title, description string) string {
	labels := make([]string, len(model.Categories))
	for i, cat := range model.Categories {
		labels[i] = string(cat)
	}

	var b strings.Builder
	b.WriteString("Classify the news article into exactly one of these categories: ")
	b.WriteString(strings.Join(labels, ", "))
	b.WriteString(".\nRespond with the category name only, on a single line.\n\n")
	b.WriteString("Title: ")
	b.WriteString(strings.TrimSpace(title))
	if text := PlainText(description); text != "" {
		b.WriteString("\nDescription: ")
		b.WriteString(truncate(text, maxDescriptionRunes))
	}
	return b.String()
}

// PlainText strips markup from feed descriptions, which are often HTML.
func PlainText(html string) string {
	html = strings.TrimSpace(html)
	if html == "" {
		return ""
	}
	text := html
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		doc.Find("script, style").Remove()
		text = doc.Text()
	}
	return strings.Join(strings.Fields(text), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// ParseLabel takes the first non-empty line of a response and matches it
// against the vocabulary, ignoring case, quotes and trailing punctuation.
func ParseLabel(raw string) (model.Category, error) {
	for _, line := range strings.Split(raw, "\n") {
		line = cleanLabel(line)
		if line == "" {
			continue
		}
		if cat, ok := model.ParseCategory(line); ok {
			return cat, nil
		}
		return "", &ClassificationError{Reason: "label outside vocabulary", Raw: raw}
	}
	return "", &ClassificationError{Reason: "empty response", Raw: raw}
}

func cleanLabel(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ":"); i >= 0 && strings.EqualFold(strings.TrimSpace(s[:i]), "category") {
		s = s[i+1:]
	}
	return strings.Trim(s, " \t\r\"'`*.,;:!")
}
