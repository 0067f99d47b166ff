package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fund-intake-cli/internal/ingest"
	"github.com/sells-group/fund-intake-cli/internal/retriever"
	"github.com/sells-group/fund-intake-cli/pkg/openaiembed"
)

var ingestDataDir string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build the chunk index from a documents directory",
	Long:  "Walks the documents directory, one subdirectory per fund collection, extracts and chunks text (PDF via pdftotext, xlsx, plain text), embeds the chunks, and rebuilds each collection's index.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		index, err := retriever.OpenIndex(cfg.Index.Path)
		if err != nil {
			return eris.Wrap(err, "open index")
		}
		defer index.Close()

		embedder := openaiembed.NewClient(cfg.OpenAI.Key,
			openaiembed.WithModel(cfg.OpenAI.EmbeddingModel))

		ing := ingest.New(index, embedder, ingest.Options{
			Workers:      cfg.Ingest.Workers,
			ChunkSize:    cfg.Ingest.ChunkSize,
			ChunkOverlap: cfg.Ingest.ChunkOverlap,
			PdfToTextBin: cfg.Ingest.PdfToTextPath,
		})

		dataDir := ingestDataDir
		if dataDir == "" {
			dataDir = cfg.Ingest.DataDir
		}

		stats, err := ing.Run(ctx, dataDir)
		if err != nil {
			return eris.Wrap(err, "ingest")
		}

		zap.L().Info("ingest complete",
			zap.Int("collections", stats.Collections),
			zap.Int("files", stats.Files),
			zap.Int("chunks", stats.Chunks))
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDataDir, "data-dir", "", "documents directory (default from config)")
	rootCmd.AddCommand(ingestCmd)
}
