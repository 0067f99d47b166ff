// Package pipeline sequences the six extraction tasks over one document
// collection, normalizes and reconciles the results against the reference
// snapshot, and stages the submission units. It never submits: the buffer it
// produces is the hand-off to review and later submission.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fund-intake-cli/internal/extract"
	"github.com/sells-group/fund-intake-cli/internal/refdata"
	"github.com/sells-group/fund-intake-cli/internal/staging"
	"github.com/sells-group/fund-intake-cli/pkg/assetapi"
)

// Options configures a pipeline run.
type Options struct {
	// AssetNamePrefix, when set, is prepended to the extracted fund name as
	// "<prefix> - <name>" before staging, so trial runs are recognizable in
	// the target system.
	AssetNamePrefix string
}

// Pipeline runs extraction through staging for one collection.
type Pipeline struct {
	runner *extract.Runner
	snap   *refdata.Snapshot
	dir    *refdata.Directory
	opts   Options
	log    *zap.Logger
	now    func() time.Time
}

// New creates a Pipeline over an extraction runner, a reference snapshot,
// and a company directory.
func New(runner *extract.Runner, snap *refdata.Snapshot, dir *refdata.Directory, opts Options) *Pipeline {
	return &Pipeline{
		runner: runner,
		snap:   snap,
		dir:    dir,
		opts:   opts,
		log:    zap.L().Named("pipeline"),
		now:    time.Now,
	}
}

// sourceDetails travels with each staged unit so the reviewer sees where the
// payload came from and which fields failed normalization.
type sourceDetails struct {
	Collection string       `json:"collection"`
	Extracted  any          `json:"extracted,omitempty"`
	Flags      []FieldError `json:"flags,omitempty"`
}

// Run executes the six tasks in order and returns the staged buffer. Each
// stage is isolated: an extraction failure is logged and replaced with a
// defaulted record, and later stages still run. Only staging itself
// (marshaling) can fail the run.
func (p *Pipeline) Run(ctx context.Context, collection string) (*staging.Buffer, error) {
	buf := staging.NewBuffer()
	now := p.now().UTC()

	identity, err := p.runner.RunIdentity(ctx, collection)
	if err != nil {
		p.logGap(collection, "identity", err)
		identity = extract.IdentityRecord{}
		identity.ApplyDefaults()
	}
	class, err := p.runner.RunClassification(ctx, collection, p.snap.AssetTypeNames(), p.snap.StrategyNames())
	if err != nil {
		p.logGap(collection, "classification", err)
		class = extract.ClassificationRecord{}
		class.ApplyDefaults()
	}

	merged := MergeIdentity(identity, class, p.snap, p.opts.AssetNamePrefix)
	if _, err := buf.Stage(staging.DataTypeAsset, AssetPayload(merged, now), staging.TagUploadAsset, sourceDetails{
		Collection: collection,
		Extracted:  merged,
	}); err != nil {
		return nil, err
	}

	if err := p.stageShareClasses(ctx, buf, collection, now); err != nil {
		return nil, err
	}
	if err := p.stageLiquidity(ctx, buf, collection); err != nil {
		return nil, err
	}
	if err := p.stageReturns(ctx, buf, collection, now); err != nil {
		return nil, err
	}
	if err := p.stageProviders(ctx, buf, collection); err != nil {
		return nil, err
	}

	p.log.Info("run staged",
		zap.String("collection", collection),
		zap.Int("units", buf.Len()))
	return buf, nil
}

func (p *Pipeline) stageShareClasses(ctx context.Context, buf *staging.Buffer, collection string, now time.Time) error {
	set, err := p.runner.RunShareClasses(ctx, collection)
	if err != nil {
		p.logGap(collection, "share_classes", err)
		return nil
	}
	if len(set.Classes) == 0 {
		p.log.Warn("no share classes extracted", zap.String("collection", collection))
		return nil
	}
	set.ApplyDefaults()

	classes, flags := NormalizeShareClasses(set)
	for _, f := range flags {
		p.log.Warn("share class field flagged", zap.String("collection", collection), zap.Error(f))
	}
	_, err = buf.Stage(staging.DataTypeShareClass, ShareClassPayloads(classes, now), staging.TagShareClass, sourceDetails{
		Collection: collection,
		Extracted:  set,
		Flags:      flags,
	})
	return err
}

func (p *Pipeline) stageLiquidity(ctx context.Context, buf *staging.Buffer, collection string) error {
	set, err := p.runner.RunLiquidity(ctx, collection,
		p.snap.LockTypeNames(),
		p.snap.NoticeFreqNames(),
		p.snap.LockupFreqNames(),
		p.snap.RedemptionFreqNames(),
		p.snap.InvestorGateFreqNames())
	if err != nil {
		p.logGap(collection, "liquidity", err)
		return nil
	}
	if len(set.Classes) == 0 {
		p.log.Warn("no liquidity classes extracted", zap.String("collection", collection))
		return nil
	}
	set.ApplyDefaults()

	payloads, flags := LiquidityPayloads(set, p.snap)
	for _, f := range flags {
		p.log.Warn("liquidity field flagged", zap.String("collection", collection), zap.Error(f))
	}
	_, err = buf.Stage(staging.DataTypeLiquidityTerms, payloads, staging.TagLiquidityTerms, sourceDetails{
		Collection: collection,
		Extracted:  set,
		Flags:      flags,
	})
	return err
}

func (p *Pipeline) stageReturns(ctx context.Context, buf *staging.Buffer, collection string, now time.Time) error {
	set, err := p.runner.RunReturns(ctx, collection)
	if err != nil {
		p.logGap(collection, "returns", err)
		return nil
	}
	if len(set.Records) == 0 {
		return nil
	}
	// The whole series is rejected on any malformed record; a partial time
	// series is worse than none.
	if err := set.Validate(); err != nil {
		p.log.Warn("returns series rejected",
			zap.String("collection", collection), zap.Error(err))
		return nil
	}
	_, err = buf.Stage(staging.DataTypeReturns, ReturnsPayloads(set, now), assetapi.EndpointAssetValuation, sourceDetails{
		Collection: collection,
		Extracted:  set,
	})
	return err
}

func (p *Pipeline) stageProviders(ctx context.Context, buf *staging.Buffer, collection string) error {
	confirmed, err := p.runner.RunProviders(ctx, collection, p.snap.CompanyTypeNames())
	if err != nil {
		p.logGap(collection, "providers", err)
		return nil
	}

	var payloads []ProviderPayload
	for _, ct := range p.snap.CompanyTypes {
		names := confirmed[ct.CompanyType]
		if len(names) == 0 {
			continue
		}
		companies, err := p.dir.CompaniesByType(ctx, ct.CompanyTypeID)
		if err != nil {
			return eris.Wrapf(err, "pipeline: companies for type %s", ct.CompanyType)
		}
		for _, name := range names {
			match := refdata.MatchCompany(name, companies)
			if match == nil {
				p.log.Warn("confirmed provider not in directory",
					zap.String("collection", collection),
					zap.String("company_type", ct.CompanyType),
					zap.String("name", name))
				continue
			}
			payloads = append(payloads, ProviderPayload{
				CompanyType:   ct.CompanyType,
				CompanyID:     match.CompanyID,
				CompanyTypeID: ct.CompanyTypeID,
				URL:           ProviderURL(match.CompanyID, ct.CompanyTypeID, 0),
			})
		}
	}
	if len(payloads) == 0 {
		return nil
	}
	_, err = buf.Stage(staging.DataTypeServiceProviders, payloads, staging.TagServiceProviders, sourceDetails{
		Collection: collection,
		Extracted:  confirmed,
	})
	return err
}

func (p *Pipeline) logGap(collection, task string, err error) {
	p.log.Warn("extraction failed, staging defaults",
		zap.String("collection", collection),
		zap.String("task", task),
		zap.Error(err))
}
