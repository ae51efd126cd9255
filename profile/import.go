package profile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"gopkg.in/yaml.v3"
)

// Importer turns a résumé file into a Profile. The format is chosen by
// extension: pdf, docx, html/htm, md/markdown/txt, yaml/yml.
type Importer struct {
	md     *converter.Converter
	policy *bluemonday.Policy
	logger *slog.Logger
}

// NewImporter creates an Importer. A nil logger uses slog.Default.
func NewImporter(logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		policy: bluemonday.UGCPolicy(),
		logger: logger,
	}
}

// Import reads path. The profile name defaults to the file name without
// extension; contact fields found in the text are added to Fields.
func (im *Importer) Import(ctx context.Context, path string) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var (
		p   *Profile
		err error
	)
	switch ext {
	case ".pdf":
		p, err = textProfile(name, extractPDF, path)
	case ".docx":
		p, err = textProfile(name, extractDocx, path)
	case ".html", ".htm":
		p, err = textProfile(name, im.extractHTML, path)
	case ".md", ".markdown", ".txt":
		p, err = textProfile(name, readText, path)
	case ".yaml", ".yml":
		p, err = readYAML(path)
		if err == nil && p.Name == "" {
			p.Name = name
		}
	default:
		return nil, fmt.Errorf("profile: import %s: unsupported format %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("profile: import %s: %w", path, err)
	}

	p.Fields = merge(p.Fields, ExtractFields(p.Resume))
	im.logger.Info("profile: imported", "path", path, "format", ext,
		"resume_chars", len(p.Resume), "fields", len(p.Fields))
	return p, nil
}

func textProfile(name string, extract func(string) (string, error), path string) (*Profile, error) {
	text, err := extract(path)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("no text content")
	}
	return &Profile{Name: name, Resume: text}, nil
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// extractHTML sanitises the page and converts it to markdown.
func (im *Importer) extractHTML(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	clean := im.policy.Sanitize(string(data))
	md, err := im.md.ConvertString(clean)
	if err != nil {
		return "", fmt.Errorf("markdown: %w", err)
	}
	return md, nil
}

func readYAML(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	return &p, nil
}
