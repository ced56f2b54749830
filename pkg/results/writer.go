// Package results persists completed analyses: a disk artifact writer for
// per-session report files and an optional Postgres store for queryable
// history.
package results

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/tradecouncil/tradecouncil/pkg/models"
)

// Persister stores a completed analysis response.
type Persister interface {
	Persist(ctx context.Context, resp *models.AnalysisResponse) error
}

// Writer writes per-session artifacts under
// <dir>/<TICKER>/<analysis_date>/: the full response.json plus one text
// file per non-empty report section and the processed signal.
type Writer struct {
	dir string
}

var _ Persister = (*Writer)(nil)

// NewWriter creates a disk writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Persist writes all artifacts for the response. Section files are written
// concurrently; the first failure aborts the rest.
func (w *Writer) Persist(ctx context.Context, resp *models.AnalysisResponse) error {
	target := filepath.Join(w.dir, resp.Ticker, resp.AnalysisDate)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("results: create %s: %w", target, err)
	}

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		raw, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("results: marshal response: %w", err)
		}
		return writeFile(filepath.Join(target, "response.json"), raw)
	})
	g.Go(func() error {
		return writeFile(filepath.Join(target, "processed_signal.txt"), []byte(resp.ProcessedSignal))
	})
	for _, section := range models.ReportSections {
		content := resp.Section(section)
		if content == "" {
			continue
		}
		name := filepath.Join(target, string(section)+".md")
		g.Go(func() error { return writeFile(name, []byte(content)) })
	}

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Analysis artifacts written", "ticker", resp.Ticker, "dir", target)
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("results: write %s: %w", path, err)
	}
	return nil
}

// Fanout persists through every member, returning the first error after
// attempting all of them.
type Fanout []Persister

var _ Persister = (Fanout)(nil)

func (f Fanout) Persist(ctx context.Context, resp *models.AnalysisResponse) error {
	var firstErr error
	for _, p := range f {
		if err := p.Persist(ctx, resp); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
