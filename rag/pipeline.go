package rag

import (
	"context"
	"time"

	"github.com/hourei-dev/hourei/internal/metrics"
	"github.com/hourei-dev/hourei/types"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Stage timeout and sizing defaults, overridable through PipelineConfig.
const (
	defaultGraphTimeout    = 5 * time.Second
	defaultVectorTimeout   = 8 * time.Second
	defaultRerankTimeout   = 15 * time.Second
	defaultGenerateTimeout = 30 * time.Second

	// With a reranker the pipeline over-fetches so the cross-encoder
	// has enough candidates to reorder; without one a smaller margin
	// only covers the score filter.
	defaultRetrievalMultiplier = 4
	noRerankMultiplier         = 2
)

// Stage labels used in logs and metrics.
const (
	stagePrepare  = "prepare"
	stageRetrieve = "retrieve"
	stageFuse     = "fuse"
	stageRerank   = "rerank"
	stageGenerate = "generate"
)

const (
	statusOK    = "ok"
	statusError = "error"
)

// PipelineConfig carries the orchestration knobs. Zero values select
// the defaults above.
type PipelineConfig struct {
	// GraphEnabled gates graph retrieval for the whole process. The
	// router can only turn graph search on when this is true and a
	// graph retriever is wired.
	GraphEnabled bool
	// HybridEnabled selects server-side dense+sparse search by
	// default; requests override it through Options.UseHybrid.
	HybridEnabled bool
	// RetrievalMultiplier scales top-k into the retrieval fetch size
	// when a reranker is active.
	RetrievalMultiplier int

	GraphTimeout    time.Duration
	VectorTimeout   time.Duration
	RerankTimeout   time.Duration
	GenerateTimeout time.Duration
}

// PipelineDeps wires the pipeline stages. Preparer, Vector, Fuser,
// Builder and Generator are required; Graph, Reranker, Grader and
// Metrics are optional and their stages are skipped when nil.
type PipelineDeps struct {
	Preparer  *QueryPreparer
	Graph     *GraphRetriever
	Vector    *VectorRetriever
	Fuser     *Fuser
	Reranker  *Reranker
	Builder   *ContextBuilder
	Generator *Generator
	Grader    *AdaptiveGrader
	Metrics   *metrics.Collector
	Logger    *zap.Logger
}

// Pipeline runs a question through prepare, route, retrieve, fuse,
// rerank and generate. Graph and vector retrieval run concurrently
// inside a per-request errgroup; every outbound call inherits the
// request context plus a stage timeout.
type Pipeline struct {
	preparer  *QueryPreparer
	graph     *GraphRetriever
	vector    *VectorRetriever
	fuser     *Fuser
	reranker  *Reranker
	builder   *ContextBuilder
	generator *Generator
	grader    *AdaptiveGrader

	cfg     PipelineConfig
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewPipeline validates the wiring and applies config defaults.
func NewPipeline(deps PipelineDeps, cfg PipelineConfig) (*Pipeline, error) {
	switch {
	case deps.Preparer == nil:
		return nil, types.NewError(types.ErrInternalError, "pipeline requires a query preparer")
	case deps.Vector == nil:
		return nil, types.NewError(types.ErrInternalError, "pipeline requires a vector retriever")
	case deps.Fuser == nil:
		return nil, types.NewError(types.ErrInternalError, "pipeline requires a fuser")
	case deps.Builder == nil:
		return nil, types.NewError(types.ErrInternalError, "pipeline requires a context builder")
	case deps.Generator == nil:
		return nil, types.NewError(types.ErrInternalError, "pipeline requires a generator")
	}

	if cfg.RetrievalMultiplier <= 0 {
		cfg.RetrievalMultiplier = defaultRetrievalMultiplier
	}
	if cfg.GraphTimeout <= 0 {
		cfg.GraphTimeout = defaultGraphTimeout
	}
	if cfg.VectorTimeout <= 0 {
		cfg.VectorTimeout = defaultVectorTimeout
	}
	if cfg.RerankTimeout <= 0 {
		cfg.RerankTimeout = defaultRerankTimeout
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = defaultGenerateTimeout
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pipeline{
		preparer:  deps.Preparer,
		graph:     deps.Graph,
		vector:    deps.Vector,
		fuser:     deps.Fuser,
		reranker:  deps.Reranker,
		builder:   deps.Builder,
		generator: deps.Generator,
		grader:    deps.Grader,
		cfg:       cfg,
		metrics:   deps.Metrics,
		logger:    logger.With(zap.String("component", "pipeline")),
	}, nil
}

// DisableGraph turns graph retrieval off for the rest of the process,
// leaving vector retrieval as the only source. Call it before serving;
// it is not synchronized against in-flight requests.
func (p *Pipeline) DisableGraph() {
	if p.cfg.GraphEnabled {
		p.logger.Warn("graph retrieval disabled, continuing vector-only")
		p.cfg.GraphEnabled = false
	}
}

// pipelineRun is the mutable state of one request. question tracks the
// text the model answers, which adaptive rewrites replace; original is
// always echoed back on the Answer.
type pipelineRun struct {
	query      *Query
	question   string
	original   string
	routed     RoutedQuery
	candidates []Candidate
	rewrites   int
}

// Chat answers a question with retrieved statute context. Degraded
// subsystems (graph, reranker, translator) are logged and skipped;
// only input validation, an empty retrieval, vector store failure,
// generation failure and cancellation surface as errors.
func (p *Pipeline) Chat(ctx context.Context, query string, opts Options) (*Answer, error) {
	start := time.Now()

	run, err := p.retrieve(ctx, query, opts)
	if err != nil {
		p.recordQuery(routeLabel(run), statusError, start)
		return nil, err
	}

	docContext := p.builder.Build(run.candidates)

	genStart := time.Now()
	genCtx, cancel := context.WithTimeout(ctx, p.cfg.GenerateTimeout)
	answerText, err := p.generator.Generate(genCtx, run.question, docContext)
	cancel()
	if err != nil {
		if ctx.Err() == nil && types.IsErrorCode(err, types.ErrCancelled) {
			err = types.NewError(types.ErrTimeout, "answer generation timed out").WithCause(err)
		}
		p.failStage(stageGenerate, err)
		p.recordQuery(routeLabel(run), statusError, start)
		return nil, err
	}
	p.stageDone(stageGenerate, genStart)

	answer := &Answer{
		Answer:     answerText,
		Sources:    p.builder.Sources(run.candidates),
		Query:      run.original,
		ElapsedMS:  time.Since(start).Milliseconds(),
		Route:      routeLabel(run),
		Translated: run.query.Translated,
		Rewrites:   run.rewrites,
		Reranked:   p.reranker != nil,
	}
	p.recordQuery(routeLabel(run), statusOK, start)
	p.logger.Info("chat complete",
		zap.String("type", string(run.routed.Type)),
		zap.Int("sources", len(answer.Sources)),
		zap.Int("rewrites", run.rewrites),
		zap.Int64("elapsed_ms", answer.ElapsedMS))
	return answer, nil
}

// Search runs retrieval only and returns the ranked sources without
// calling the generator. The adaptive rewrite loop does not apply.
func (p *Pipeline) Search(ctx context.Context, query string, opts Options) ([]SourceDocument, error) {
	start := time.Now()

	q, err := p.prepare(ctx, query, opts)
	if err != nil {
		p.recordQuery("unknown", statusError, start)
		return nil, err
	}

	routed, candidates, err := p.retrieveOnce(ctx, q, q.Original)
	if err != nil {
		p.recordQuery(string(routed.Type), statusError, start)
		return nil, err
	}

	sources := p.builder.Sources(candidates)
	p.recordQuery(string(routed.Type), statusOK, start)
	p.logger.Info("search complete",
		zap.String("type", string(routed.Type)),
		zap.Int("sources", len(sources)),
		zap.Duration("elapsed", time.Since(start)))
	return sources, nil
}

// retrieve prepares the query and runs retrieval, optionally looping
// through adaptive grading and rewriting. The returned run is non-nil
// once preparation succeeded, even when retrieval failed, so callers
// can still label metrics with the routed type.
func (p *Pipeline) retrieve(ctx context.Context, query string, opts Options) (*pipelineRun, error) {
	q, err := p.prepare(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	run := &pipelineRun{query: q, question: q.Original, original: q.Original}
	for {
		routed, candidates, err := p.retrieveOnce(ctx, run.query, run.question)
		run.routed = routed
		if err != nil {
			// A rewritten query that retrieves nothing keeps the
			// previous round's candidates instead of failing.
			if run.rewrites > 0 && types.IsErrorCode(err, types.ErrRetrievalEmpty) {
				p.logger.Warn("rewritten query retrieved nothing, keeping previous candidates",
					zap.String("question", run.question))
				return run, nil
			}
			return run, err
		}
		run.candidates = candidates

		if p.grader == nil {
			return run, nil
		}
		relevant, err := p.grader.GradeCandidates(ctx, run.question, candidates)
		if err != nil {
			return run, err
		}
		if !p.grader.ShouldRewrite(relevant, run.rewrites) {
			return run, nil
		}

		rewritten, err := p.grader.Rewrite(ctx, run.question)
		if err != nil {
			if ctx.Err() != nil {
				return run, err
			}
			p.logger.Warn("query rewrite failed, answering with current candidates", zap.Error(err))
			return run, nil
		}
		newQuery, err := p.preparer.Prepare(ctx, rewritten, opts)
		if err != nil {
			if types.IsErrorCode(err, types.ErrCancelled) {
				return run, err
			}
			p.logger.Warn("rewritten query failed preparation, keeping current candidates", zap.Error(err))
			return run, nil
		}
		run.rewrites++
		run.query = newQuery
		run.question = newQuery.Original
		p.logger.Info("adaptive rewrite",
			zap.Int("rewrite", run.rewrites),
			zap.Int("relevant", relevant),
			zap.String("question", run.question))
	}
}

func (p *Pipeline) prepare(ctx context.Context, query string, opts Options) (*Query, error) {
	prepStart := time.Now()
	q, err := p.preparer.Prepare(ctx, query, opts)
	if err != nil {
		p.failStage(stagePrepare, err)
		return nil, err
	}
	p.stageDone(stagePrepare, prepStart, zap.Int("search_texts", len(q.SearchTexts)))
	return q, nil
}

// retrieveOnce routes one prepared query and runs graph and vector
// retrieval concurrently, then fuses, filters and reranks. The routed
// decision is returned even on error.
func (p *Pipeline) retrieveOnce(ctx context.Context, q *Query, question string) (RoutedQuery, []Candidate, error) {
	routed := Route(q.Primary())

	hasGraph := p.graph != nil && p.cfg.GraphEnabled
	useGraph := q.UseGraph.Resolve(routed.UseGraph) && hasGraph && len(routed.Entities) > 0
	useVector := routed.UseVector
	if !useGraph {
		// A graph-only route with no usable graph still needs results.
		useVector = true
	}
	useHybrid := q.UseHybrid.Resolve(p.cfg.HybridEnabled)

	retrieveK := q.TopK * noRerankMultiplier
	if p.reranker != nil {
		retrieveK = q.TopK * p.cfg.RetrievalMultiplier
	}

	p.logger.Debug("query routed",
		zap.String("type", string(routed.Type)),
		zap.Int("entities", len(routed.Entities)),
		zap.Bool("graph", useGraph),
		zap.Bool("vector", useVector),
		zap.Bool("hybrid", useHybrid),
		zap.Int("retrieve_k", retrieveK))

	retrStart := time.Now()
	var (
		graphHits  []GraphResult
		vectorHits []Candidate
	)
	g, gctx := errgroup.WithContext(ctx)
	if useGraph {
		g.Go(func() error {
			hits, err := p.graphSearch(gctx, routed.Entities)
			if err != nil {
				if gctx.Err() != nil {
					return err
				}
				p.logger.Warn("graph retrieval failed, continuing without graph", zap.Error(err))
				return nil
			}
			graphHits = hits
			return nil
		})
	}
	if useVector {
		g.Go(func() error {
			hits, err := p.vectorSearch(gctx, q, retrieveK, useHybrid)
			if err != nil {
				return err
			}
			vectorHits = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		err = p.mapRetrievalErr(ctx, err)
		p.failStage(stageRetrieve, err)
		return routed, nil, err
	}

	if len(graphHits) == 0 && !useVector {
		p.logger.Warn("graph-only route found nothing, downgrading to vector search",
			zap.String("type", string(routed.Type)))
		hits, err := p.vectorSearch(ctx, q, retrieveK, useHybrid)
		if err != nil {
			err = p.mapRetrievalErr(ctx, err)
			p.failStage(stageRetrieve, err)
			return routed, nil, err
		}
		vectorHits = hits
	}
	p.stageDone(stageRetrieve, retrStart,
		zap.Int("graph_hits", len(graphHits)),
		zap.Int("vector_hits", len(vectorHits)))
	if p.metrics != nil {
		p.metrics.RecordCandidates("graph", len(graphHits))
		p.metrics.RecordCandidates("vector", len(vectorHits))
	}

	fuseStart := time.Now()
	candidates := p.fuser.Fuse(graphHits, vectorHits)
	p.stageDone(stageFuse, fuseStart, zap.Int("candidates", len(candidates)))
	if p.metrics != nil {
		p.metrics.RecordCandidates("fused", len(candidates))
	}
	if len(candidates) == 0 {
		err := types.NewError(types.ErrRetrievalEmpty, "no candidates from any retriever")
		p.failStage(stageFuse, err)
		return routed, nil, err
	}

	if p.reranker != nil {
		rkStart := time.Now()
		reranked, err := p.rerankCandidates(ctx, question, candidates, q.TopK)
		if err != nil {
			p.failStage(stageRerank, err)
			return routed, nil, err
		}
		candidates = reranked
		p.stageDone(stageRerank, rkStart, zap.Int("candidates", len(candidates)))
	} else if len(candidates) > q.TopK {
		candidates = candidates[:q.TopK]
	}
	if p.metrics != nil {
		p.metrics.RecordCandidates("final", len(candidates))
	}
	return routed, candidates, nil
}

func (p *Pipeline) graphSearch(ctx context.Context, entities []Entity) ([]GraphResult, error) {
	sctx, cancel := context.WithTimeout(ctx, p.cfg.GraphTimeout)
	defer cancel()
	return p.graph.Retrieve(sctx, entities)
}

// vectorSearch applies the vector stage timeout. A deadline hit while
// the request is still alive reports ErrTimeout rather than the
// retriever's cancellation error.
func (p *Pipeline) vectorSearch(ctx context.Context, q *Query, retrieveK int, useHybrid bool) ([]Candidate, error) {
	sctx, cancel := context.WithTimeout(ctx, p.cfg.VectorTimeout)
	defer cancel()
	hits, err := p.vector.Retrieve(sctx, q, retrieveK, useHybrid)
	if err != nil && sctx.Err() != nil && ctx.Err() == nil {
		return nil, types.NewError(types.ErrTimeout, "vector retrieval timed out").WithCause(err)
	}
	return hits, err
}

// rerankCandidates reranks with the stage timeout. The reranker is
// optional, so a deadline hit degrades to the fused order truncated to
// topK; only caller cancellation propagates.
func (p *Pipeline) rerankCandidates(ctx context.Context, question string, candidates []Candidate, topK int) ([]Candidate, error) {
	rctx, cancel := context.WithTimeout(ctx, p.cfg.RerankTimeout)
	defer cancel()
	reranked, err := p.reranker.Rerank(rctx, question, candidates, topK)
	if err == nil {
		return reranked, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	p.logger.Warn("rerank timed out, keeping fused order", zap.Error(err))
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

func (p *Pipeline) mapRetrievalErr(ctx context.Context, err error) error {
	if ctx.Err() != nil && !types.IsErrorCode(err, types.ErrCancelled) {
		return types.NewError(types.ErrCancelled, "retrieval cancelled").WithCause(err)
	}
	return err
}

func (p *Pipeline) stageDone(stage string, start time.Time, fields ...zap.Field) {
	elapsed := time.Since(start)
	if p.metrics != nil {
		p.metrics.RecordStage(stage, elapsed)
	}
	fields = append([]zap.Field{zap.String("stage", stage), zap.Duration("elapsed", elapsed)}, fields...)
	p.logger.Debug("stage complete", fields...)
}

func (p *Pipeline) failStage(stage string, err error) {
	if p.metrics != nil {
		p.metrics.RecordStageError(stage, string(types.GetErrorCode(err)))
	}
	p.logger.Error("stage failed", zap.String("stage", stage), zap.Error(err))
}

func (p *Pipeline) recordQuery(route, status string, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordQuery(route, status, time.Since(start))
	}
}

func routeLabel(run *pipelineRun) string {
	if run == nil || run.routed.Type == "" {
		return "unknown"
	}
	return string(run.routed.Type)
}
