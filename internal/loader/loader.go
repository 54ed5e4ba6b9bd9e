// Package loader resolves document sources into raw text for ingestion.
// Supported sources: a local directory of txt/markdown/pdf files, and a
// GitHub repository directory of markdown docs.
package loader

import "context"

// Document is one loaded document, reduced to plain text.
type Document struct {
	Ref  string // Stable reference to the origin (relative path or URL)
	Text string
}

// Source enumerates documents and loads them one at a time, so a single
// unreadable document never blocks the rest of the set.
type Source interface {
	// List returns the stable references of all documents in the source.
	List(ctx context.Context) ([]string, error)

	// Fetch loads one document by reference.
	Fetch(ctx context.Context, ref string) (*Document, error)
}
