// Package extract turns retrieved document context into schema-shaped
// records via the reasoning backend. Each extraction task is a descriptor of
// passes; a single generic runner executes them all.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fund-intake-cli/internal/retriever"
	"github.com/sells-group/fund-intake-cli/pkg/anthropic"
)

// Searcher is the slice of the retriever the runner needs.
type Searcher interface {
	SimilaritySearch(ctx context.Context, collection, query string, k int) ([]retriever.Result, error)
	MMRSearch(ctx context.Context, collection, query string, k, fetchK int, lambda float64) ([]retriever.Result, error)
}

// ExtractionError reports that the reasoning backend's output could not be
// parsed against the task schema. Callers fall back to a defaulted record.
type ExtractionError struct {
	Task string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract: task %s: %v", e.Task, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Options configures the runner.
type Options struct {
	Model     string
	MaxTokens int64
	TopK      int
}

// Runner executes extraction tasks against a document collection.
type Runner struct {
	search Searcher
	llm    anthropic.Client
	opts   Options
	log    *zap.Logger
}

// NewRunner creates a Runner.
func NewRunner(search Searcher, llm anthropic.Client, opts Options) *Runner {
	if opts.TopK <= 0 {
		opts.TopK = 6
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	return &Runner{search: search, llm: llm, opts: opts, log: zap.L().Named("extract")}
}

const systemPrompt = "You are a fund-document analyst. Answer only with a single JSON object matching the requested schema. Never add commentary outside the JSON. Use the sentinel values the instructions specify for information the excerpts do not contain."

// mmrFetchMultiple and mmrLambda tune diversity-aware retrieval for
// classification passes.
const (
	mmrFetchMultiple = 4
	mmrLambda        = 0.5
)

// Run executes every pass of the task in order and returns the merged
// schema-shaped object. Later passes receive the running result as context;
// their fields win on collision.
func (r *Runner) Run(ctx context.Context, task Task, collection string) (map[string]any, error) {
	merged := map[string]any{}

	for i, pass := range task.Passes {
		docCtx, err := r.retrieve(ctx, collection, pass)
		if err != nil {
			return nil, eris.Wrapf(err, "extract: task %s pass %d", task.Name, i)
		}

		prompt := buildPrompt(pass, docCtx, merged)
		resp, err := r.llm.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     r.opts.Model,
			MaxTokens: r.opts.MaxTokens,
			System:    systemPrompt,
			Messages: []anthropic.Message{
				{Role: "user", Content: prompt},
			},
		})
		if err != nil {
			return nil, eris.Wrapf(err, "extract: task %s pass %d", task.Name, i)
		}
		resp.Usage.LogCost(resp.Model, task.Name)

		obj, err := ParseJSONObject(resp.Text)
		if err != nil {
			return nil, &ExtractionError{Task: task.Name, Err: err}
		}
		for k, v := range obj {
			merged[k] = v
		}

		r.log.Debug("pass complete",
			zap.String("task", task.Name),
			zap.Int("pass", i),
			zap.Int("fields", len(obj)))
	}
	return merged, nil
}

func (r *Runner) retrieve(ctx context.Context, collection string, pass Pass) (string, error) {
	var all []retriever.Result
	seen := map[string]bool{}

	for _, q := range pass.Queries {
		var results []retriever.Result
		var err error
		if pass.UseMMR {
			results, err = r.search.MMRSearch(ctx, collection, q, r.opts.TopK, r.opts.TopK*mmrFetchMultiple, mmrLambda)
		} else {
			results, err = r.search.SimilaritySearch(ctx, collection, q, r.opts.TopK)
		}
		if err != nil {
			return "", err
		}
		for _, res := range results {
			if seen[res.Chunk.ID] {
				continue
			}
			seen[res.Chunk.ID] = true
			all = append(all, res)
		}
	}
	return retriever.Context(all), nil
}

func buildPrompt(pass Pass, docCtx string, previous map[string]any) string {
	var sb strings.Builder
	sb.WriteString(pass.Instructions)
	sb.WriteString("\n\nRespond with JSON of this shape:\n")
	sb.WriteString(pass.Schema)

	if len(previous) > 0 {
		prev, _ := json.Marshal(previous)
		sb.WriteString("\n\nResult so far (carry fields forward unless the instructions say to change them):\n")
		sb.Write(prev)
	}

	sb.WriteString("\n\nDocument excerpts:\n")
	sb.WriteString(docCtx)
	return sb.String()
}

// ParseJSONObject extracts the first JSON object from model output, which may
// be wrapped in prose or a fenced code block.
func ParseJSONObject(text string) (map[string]any, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return nil, eris.Errorf("no JSON object in output: %.120s", text)
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err != nil {
		return nil, eris.Wrap(err, "parse JSON object")
	}
	return obj, nil
}

func decodeInto(merged map[string]any, out any) error {
	b, err := json.Marshal(merged)
	if err != nil {
		return eris.Wrap(err, "extract: marshal merged record")
	}
	return eris.Wrap(json.Unmarshal(b, out), "extract: decode record")
}

// RunIdentity executes the fund-identity task.
func (r *Runner) RunIdentity(ctx context.Context, collection string) (IdentityRecord, error) {
	var rec IdentityRecord
	merged, err := r.Run(ctx, IdentityTask(), collection)
	if err != nil {
		return rec, err
	}
	if err := decodeInto(merged, &rec); err != nil {
		return IdentityRecord{}, &ExtractionError{Task: "fund_identity", Err: err}
	}
	rec.ApplyDefaults()
	return rec, nil
}

// RunClassification executes the security/strategy classification task.
func (r *Runner) RunClassification(ctx context.Context, collection string, securityTypes, strategies []string) (ClassificationRecord, error) {
	var rec ClassificationRecord
	merged, err := r.Run(ctx, ClassificationTask(securityTypes, strategies), collection)
	if err != nil {
		return rec, err
	}
	if err := decodeInto(merged, &rec); err != nil {
		return ClassificationRecord{}, &ExtractionError{Task: "classification", Err: err}
	}
	rec.ApplyDefaults()
	return rec, nil
}

// RunShareClasses executes the share-class terms task.
func (r *Runner) RunShareClasses(ctx context.Context, collection string) (ShareClassSet, error) {
	var set ShareClassSet
	merged, err := r.Run(ctx, ShareClassTask(), collection)
	if err != nil {
		return set, err
	}
	if err := decodeInto(merged, &set); err != nil {
		return ShareClassSet{}, &ExtractionError{Task: "share_classes", Err: err}
	}
	set.ApplyDefaults()
	return set, nil
}

// RunLiquidity executes the liquidity-terms task.
func (r *Runner) RunLiquidity(ctx context.Context, collection string, lockTypes, noticeFreqs, lockupFreqs, redemptionFreqs, gateFreqs []string) (LiquiditySet, error) {
	var set LiquiditySet
	merged, err := r.Run(ctx, LiquidityTask(lockTypes, noticeFreqs, lockupFreqs, redemptionFreqs, gateFreqs), collection)
	if err != nil {
		return set, err
	}
	if err := decodeInto(merged, &set); err != nil {
		return LiquiditySet{}, &ExtractionError{Task: "liquidity_terms", Err: err}
	}
	set.ApplyDefaults()
	return set, nil
}

// RunReturns executes the returns task. Sets that fail validation are
// rejected as extraction errors, not clamped.
func (r *Runner) RunReturns(ctx context.Context, collection string) (ReturnsSet, error) {
	var set ReturnsSet
	merged, err := r.Run(ctx, ReturnsTask(), collection)
	if err != nil {
		return set, err
	}
	if err := decodeInto(merged, &set); err != nil {
		return ReturnsSet{}, &ExtractionError{Task: "returns", Err: err}
	}
	if err := set.Validate(); err != nil {
		return ReturnsSet{}, &ExtractionError{Task: "returns", Err: err}
	}
	return set, nil
}

// RunProviders executes the service-provider confirmation task. Categories
// the model does not mention come back as empty lists; categories outside the
// known set are dropped.
func (r *Runner) RunProviders(ctx context.Context, collection string, companyTypes []string) (ProviderConfirmations, error) {
	merged, err := r.Run(ctx, ProvidersTask(companyTypes), collection)
	if err != nil {
		return nil, err
	}

	out := make(ProviderConfirmations, len(companyTypes))
	for _, ct := range companyTypes {
		out[ct] = nil
		raw, ok := merged[ct]
		if !ok {
			continue
		}
		list, ok := raw.([]any)
		if !ok {
			continue
		}
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				out[ct] = append(out[ct], s)
			}
		}
	}
	return out, nil
}
