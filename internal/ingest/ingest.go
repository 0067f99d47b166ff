// Package ingest walks a data directory of fund-document collections,
// extracts their text, chunks it, embeds the chunks, and loads them into the
// retriever index.
package ingest

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/fund-intake-cli/internal/retriever"
	"github.com/sells-group/fund-intake-cli/pkg/openaiembed"
)

// embedBatchSize bounds how many chunks go into one embeddings request.
const embedBatchSize = 64

// Options configures an ingest run.
type Options struct {
	Workers      int
	ChunkSize    int
	ChunkOverlap int
	PdfToTextBin string
}

// Ingestor builds the document index from a directory of source files.
type Ingestor struct {
	index    *retriever.Index
	embedder openaiembed.Embedder
	pdf      *PdfToText
	opts     Options
	log      *zap.Logger
}

// New creates an Ingestor.
func New(index *retriever.Index, embedder openaiembed.Embedder, opts Options) *Ingestor {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Ingestor{
		index:    index,
		embedder: embedder,
		pdf:      NewPdfToText(opts.PdfToTextBin),
		opts:     opts,
		log:      zap.L().Named("ingest"),
	}
}

// Stats summarizes an ingest run.
type Stats struct {
	Collections int
	Files       int
	Chunks      int
}

// Run treats each immediate subdirectory of dataDir as a collection and
// rebuilds the index for all of them.
func (ing *Ingestor) Run(ctx context.Context, dataDir string) (Stats, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return Stats{}, eris.Wrapf(err, "ingest: read data dir %s", dataDir)
	}

	var total Stats
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		s, err := ing.RunCollection(ctx, filepath.Join(dataDir, e.Name()), e.Name())
		if err != nil {
			return Stats{}, err
		}
		total.Collections++
		total.Files += s.Files
		total.Chunks += s.Chunks
	}
	if total.Collections == 0 {
		return Stats{}, eris.Errorf("ingest: no collection folders under %s", dataDir)
	}
	return total, nil
}

// RunCollection clears one collection and rebuilds it from every supported
// file under dir. Extraction runs concurrently; index writes are batched.
func (ing *Ingestor) RunCollection(ctx context.Context, dir, collection string) (Stats, error) {
	files, err := listFiles(dir)
	if err != nil {
		return Stats{}, err
	}
	if len(files) == 0 {
		return Stats{}, eris.Errorf("ingest: no supported documents under %s", dir)
	}

	if err := ing.index.Clear(ctx, collection); err != nil {
		return Stats{}, err
	}

	var mu sync.Mutex
	stats := Stats{Collections: 1}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.opts.Workers)

	for _, path := range files {
		g.Go(func() error {
			n, err := ing.ingestFile(gctx, path, collection)
			if err != nil {
				return err
			}
			mu.Lock()
			stats.Files++
			stats.Chunks += n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	ing.log.Info("collection ingested",
		zap.String("collection", collection),
		zap.Int("files", stats.Files),
		zap.Int("chunks", stats.Chunks))
	return stats, nil
}

func (ing *Ingestor) ingestFile(ctx context.Context, path, collection string) (int, error) {
	pieces, err := ing.ExtractFile(ctx, path)
	if err != nil {
		return 0, err
	}
	if len(pieces) == 0 {
		ing.log.Warn("no text extracted", zap.String("file", path))
		return 0, nil
	}

	for start := 0; start < len(pieces); start += embedBatchSize {
		end := min(start+embedBatchSize, len(pieces))
		batch := pieces[start:end]

		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = batch[i].Text
		}
		vecs, err := ing.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return 0, eris.Wrapf(err, "ingest: embed %s", path)
		}

		chunks := make([]retriever.Chunk, len(batch))
		for i := range batch {
			chunks[i] = retriever.Chunk{
				Collection: collection,
				Source:     filepath.Base(path),
				PageLabel:  batch[i].PageLabel,
				Text:       batch[i].Text,
				Embedding:  vecs[i],
			}
		}
		if err := ing.index.Add(ctx, chunks); err != nil {
			return 0, err
		}
	}

	ing.log.Debug("ingested file", zap.String("file", path), zap.Int("chunks", len(pieces)))
	return len(pieces), nil
}

func listFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && Supported(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: walk %s", dir)
	}
	return files, nil
}
