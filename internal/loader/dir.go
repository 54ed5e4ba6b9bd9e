package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DirSource loads documents from a directory tree on the local filesystem.
type DirSource struct {
	root string
}

// NewDirSource creates a source rooted at the given directory.
func NewDirSource(root string) (*DirSource, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	return &DirSource{root: root}, nil
}

// List walks the tree and returns relative paths of all supported files.
// WalkDir visits entries in lexical order, so the listing is deterministic.
func (s *DirSource) List(ctx context.Context) ([]string, error) {
	var refs []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md", ".markdown", ".pdf":
			rel, err := filepath.Rel(s.root, path)
			if err != nil {
				return err
			}
			refs = append(refs, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.root, err)
	}
	return refs, nil
}

// Fetch reads one file and extracts its plain text by extension.
func (s *DirSource) Fetch(ctx context.Context, ref string) (*Document, error) {
	path := filepath.Join(s.root, ref)

	var text string
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".pdf":
		extracted, err := extractPDFText(path)
		if err != nil {
			return nil, fmt.Errorf("extract pdf %s: %w", ref, err)
		}
		text = extracted
	case ".md", ".markdown":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", ref, err)
		}
		text = PlainText(data)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", ref, err)
		}
		text = string(data)
	}

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text extracted from %s", ref)
	}

	return &Document{Ref: ref, Text: text}, nil
}

// extractPDFText pulls the plain text stream out of a PDF file.
func extractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	body, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", fmt.Errorf("copy pdf text: %w", err)
	}
	return buf.String(), nil
}
