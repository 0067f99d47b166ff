package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fund-intake-cli/internal/extract"
	"github.com/sells-group/fund-intake-cli/internal/pipeline"
	"github.com/sells-group/fund-intake-cli/internal/refdata"
	"github.com/sells-group/fund-intake-cli/internal/retriever"
	anthropicpkg "github.com/sells-group/fund-intake-cli/pkg/anthropic"
	"github.com/sells-group/fund-intake-cli/pkg/openaiembed"
)

var extractCollection string

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run extraction for one fund collection and stage the results",
	Long:  "Runs the six extraction tasks over an indexed collection, reconciles the results against the asset API's reference data, and writes the staged units to the buffer file and the staging store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate(); err != nil {
			return err
		}

		index, err := retriever.OpenIndex(cfg.Index.Path)
		if err != nil {
			return eris.Wrap(err, "open index")
		}
		defer index.Close()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		apiClient, err := initAssetClient(ctx)
		if err != nil {
			return err
		}

		snap, err := refdata.Fetch(ctx, apiClient)
		if err != nil {
			return eris.Wrap(err, "fetch reference data")
		}
		dir := refdata.NewDirectory(apiClient, 30*time.Minute)

		embedder := openaiembed.NewClient(cfg.OpenAI.Key,
			openaiembed.WithModel(cfg.OpenAI.EmbeddingModel))
		ret := retriever.New(index, embedder)

		runner := extract.NewRunner(ret, anthropicpkg.NewClient(cfg.Anthropic.Key), extract.Options{
			Model:     cfg.Anthropic.Model,
			MaxTokens: int64(cfg.Anthropic.MaxTokens),
			TopK:      cfg.Pipeline.TopK,
		})

		p := pipeline.New(runner, snap, dir, pipeline.Options{
			AssetNamePrefix: cfg.Pipeline.AssetNamePrefix,
		})

		buf, err := p.Run(ctx, extractCollection)
		if err != nil {
			return eris.Wrap(err, "run pipeline")
		}

		if err := buf.SaveFile(cfg.Staging.File); err != nil {
			return eris.Wrap(err, "save buffer file")
		}
		if err := st.SaveAll(ctx, buf.Units()); err != nil {
			return eris.Wrap(err, "persist staged units")
		}

		zap.L().Info("extraction staged",
			zap.String("collection", extractCollection),
			zap.Int("units", buf.Len()),
			zap.String("file", cfg.Staging.File))
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractCollection, "collection", "", "collection id to extract (required)")
	extractCmd.MarkFlagRequired("collection") //nolint:errcheck
	rootCmd.AddCommand(extractCmd)
}
