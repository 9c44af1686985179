package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"bestiary-server/internal/config"
	"bestiary-server/internal/models"
)

// PipelineState - состояние конвейера генерации.
type PipelineState string

const (
	StateReceived    PipelineState = "received"
	StateSynthesized PipelineState = "synthesized"
	StateIllustrated PipelineState = "illustrated"
	StateIngested    PipelineState = "ingested"
	StatePersisted   PipelineState = "persisted"
	StateResponded   PipelineState = "responded"
	StateFailed      PipelineState = "failed"
)

var (
	pipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bestiary_pipeline_stage_duration_seconds",
			Help:    "Duration of generation pipeline stages.",
			Buckets: []float64{0.05, 0.25, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"stage", "status"},
	)
	pipelineFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bestiary_pipeline_failures_total",
			Help: "Total number of failed generation runs by stage and failure kind.",
		},
		[]string{"stage", "kind"},
	)
	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bestiary_pipeline_runs_total",
			Help: "Total number of generation runs by final state.",
		},
		[]string{"state"},
	)
	orphanReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bestiary_orphan_reports_total",
			Help: "Total number of orphaned asset reports.",
		},
		[]string{"status"},
	)
)

// StageTimeouts - ограничения времени стадий. Ноль означает "без отдельного ограничения".
type StageTimeouts struct {
	Synthesize time.Duration
	Illustrate time.Duration
	Ingest     time.Duration
	Persist    time.Duration
	// OrphanReport ограничивает отправку отчета о потерянном файле
	OrphanReport time.Duration
}

// TimeoutsFromConfig переносит таймауты из конфигурации.
func TimeoutsFromConfig(cfg config.PipelineConfig) StageTimeouts {
	return StageTimeouts{
		Synthesize:   cfg.SynthesizeTimeout,
		Illustrate:   cfg.IllustrateTimeout,
		Ingest:       cfg.IngestTimeout,
		Persist:      cfg.PersistTimeout,
		OrphanReport: cfg.OrphanTimeout,
	}
}

// GenerationError - провал конвейера. Наружу отдается только единое сообщение,
// стадия и вид ошибки нужны для логов и метрик.
type GenerationError struct {
	Stage string
	State PipelineState // последнее успешно достигнутое состояние
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed at stage %s (after %s): %v", e.Stage, e.State, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Kind возвращает вид ошибки (upstream_generation, asset_fetch, ...).
func (e *GenerationError) Kind() string { return models.FailureKind(e.Err) }

// pipelineRun - данные одного прогона. Живут только в рамках запроса.
type pipelineRun struct {
	state     PipelineState
	principal models.Principal
	requestID string

	brief   models.CreatureBrief
	record  *models.CreatureRecord
	payload *models.IllustrationPayload
	asset   *models.StoredAsset
	monster *models.Monster

	// commitUnknown - запись прервана по таймауту или отмене, INSERT мог успеть выполниться
	commitUnknown bool
}

// stage - переход между двумя состояниями, связанный ровно с одним внешним вызовом.
type stage struct {
	name    string
	from    PipelineState
	to      PipelineState
	kind    error // вид ошибки по умолчанию, если компонент вернул необернутую ошибку
	timeout time.Duration
	run     func(ctx context.Context, r *pipelineRun) error
}

// Pipeline последовательно выполняет стадии генерации.
type Pipeline struct {
	creatures     *CreatureSynthesizer
	illustrations *IllustrationSynthesizer
	ingestor      *AssetIngestor
	repo          MonsterRepository
	orphans       OrphanReporter
	timeouts      StageTimeouts
	logger        *zap.Logger
	stages        []stage
}

// NewPipeline собирает конвейер. orphans может быть nil, тогда потерянные файлы только логируются.
func NewPipeline(
	creatures *CreatureSynthesizer,
	illustrations *IllustrationSynthesizer,
	ingestor *AssetIngestor,
	repo MonsterRepository,
	orphans OrphanReporter,
	timeouts StageTimeouts,
	logger *zap.Logger,
) *Pipeline {
	p := &Pipeline{
		creatures:     creatures,
		illustrations: illustrations,
		ingestor:      ingestor,
		repo:          repo,
		orphans:       orphans,
		timeouts:      timeouts,
		logger:        logger.Named("Pipeline"),
	}
	p.stages = []stage{
		{name: "synthesize", from: StateReceived, to: StateSynthesized, kind: models.ErrUpstreamGeneration, timeout: timeouts.Synthesize, run: p.synthesize},
		{name: "illustrate", from: StateSynthesized, to: StateIllustrated, kind: models.ErrUpstreamImage, timeout: timeouts.Illustrate, run: p.illustrate},
		{name: "ingest", from: StateIllustrated, to: StateIngested, kind: models.ErrAssetUpload, timeout: timeouts.Ingest, run: p.ingest},
		{name: "persist", from: StateIngested, to: StatePersisted, kind: models.ErrPersistence, timeout: timeouts.Persist, run: p.persist},
	}
	return p
}

// Generate проводит бриф через все стадии и возвращает сохраненную запись.
// При ошибке возвращается *GenerationError; следующие стадии не запускаются.
func (p *Pipeline) Generate(ctx context.Context, principal models.Principal, brief models.CreatureBrief, requestID string) (*models.Monster, error) {
	run := &pipelineRun{
		state:     StateReceived,
		principal: principal,
		requestID: requestID,
		brief:     brief,
	}
	log := p.logger.With(zap.Uint64("user_id", principal.ID), zap.String("request_id", requestID))
	log.Info("Generation started")

	for _, st := range p.stages {
		if run.state != st.from {
			// Стадии идут строго по порядку, сюда попасть нельзя
			panic(fmt.Sprintf("pipeline stage %s expects state %s, got %s", st.name, st.from, run.state))
		}

		err := p.runStage(ctx, st, run)
		if err != nil {
			genErr := &GenerationError{Stage: st.name, State: run.state, Err: err}
			run.state = StateFailed
			pipelineFailuresTotal.WithLabelValues(st.name, genErr.Kind()).Inc()
			pipelineRunsTotal.WithLabelValues(string(StateFailed)).Inc()
			log.Error("Generation failed",
				zap.String("stage", st.name),
				zap.String("kind", genErr.Kind()),
				zap.String("last_state", string(genErr.State)),
				zap.Error(err),
			)
			if run.asset != nil {
				p.handleOrphan(ctx, run, err, log)
			}
			return nil, genErr
		}
		run.state = st.to
	}

	run.state = StateResponded
	pipelineRunsTotal.WithLabelValues(string(StateResponded)).Inc()
	log.Info("Generation finished", zap.Int64("monster_id", run.monster.ID))
	return run.monster, nil
}

func (p *Pipeline) runStage(ctx context.Context, st stage, run *pipelineRun) error {
	stageCtx := ctx
	if st.timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, st.timeout)
		defer cancel()
	}

	start := time.Now()
	err := st.run(stageCtx, run)
	status := "success"
	if err != nil {
		status = "error"
		if models.FailureKind(err) == "unknown" {
			err = fmt.Errorf("%w: %v", st.kind, err)
		}
	}
	pipelineStageDuration.WithLabelValues(st.name, status).Observe(time.Since(start).Seconds())
	return err
}

func (p *Pipeline) synthesize(ctx context.Context, r *pipelineRun) error {
	record, err := p.creatures.Synthesize(ctx, r.brief)
	if err != nil {
		return err
	}
	r.record = record
	return nil
}

func (p *Pipeline) illustrate(ctx context.Context, r *pipelineRun) error {
	payload, err := p.illustrations.Illustrate(ctx, r.record)
	if err != nil {
		return err
	}
	r.payload = payload
	return nil
}

func (p *Pipeline) ingest(ctx context.Context, r *pipelineRun) error {
	asset, err := p.ingestor.Ingest(ctx, r.payload)
	if err != nil {
		return err
	}
	r.asset = asset
	// Байты больше не нужны
	r.payload = nil
	return nil
}

func (p *Pipeline) persist(ctx context.Context, r *pipelineRun) error {
	monster, err := p.repo.Create(ctx, r.record, r.asset.URL, r.principal.ID)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			r.commitUnknown = true
		}
		if errors.Is(err, models.ErrPersistence) {
			return err
		}
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	r.monster = monster
	return nil
}

// handleOrphan решает судьбу загруженного файла после неудачной записи.
// Файл отдается на удаление, только если ни одна запись на него не ссылается.
// Ошибки только логируются и не меняют ответ клиенту.
func (p *Pipeline) handleOrphan(ctx context.Context, r *pipelineRun, cause error, log *zap.Logger) {
	if r.commitUnknown {
		orphanReportsTotal.WithLabelValues("commit_unknown").Inc()
		log.Warn("Persist interrupted, asset kept because the row may exist", zap.String("key", r.asset.Key))
		return
	}
	if p.orphans == nil {
		orphanReportsTotal.WithLabelValues("skipped").Inc()
		log.Warn("Orphaned asset left in storage, no reporter configured", zap.String("key", r.asset.Key))
		return
	}

	// Запрос мог быть отменен клиентом, отчет все равно должен уйти
	reportCtx := context.WithoutCancel(ctx)
	if p.timeouts.OrphanReport > 0 {
		var cancel context.CancelFunc
		reportCtx, cancel = context.WithTimeout(reportCtx, p.timeouts.OrphanReport)
		defer cancel()
	}

	referenced, err := p.repo.ImageReferenced(reportCtx, r.asset.URL)
	if err != nil {
		orphanReportsTotal.WithLabelValues("check_failed").Inc()
		log.Error("Failed to check asset references, asset kept", zap.String("key", r.asset.Key), zap.Error(err))
		return
	}
	if referenced {
		orphanReportsTotal.WithLabelValues("referenced").Inc()
		log.Warn("Asset is referenced by a stored monster, not an orphan", zap.String("key", r.asset.Key))
		return
	}

	event := models.OrphanedAssetEvent{
		Key:        r.asset.Key,
		URL:        r.asset.URL,
		UserID:     r.principal.ID,
		RequestID:  r.requestID,
		Reason:     cause.Error(),
		OccurredAt: time.Now().UTC(),
	}
	if err := p.orphans.ReportOrphan(reportCtx, event); err != nil {
		orphanReportsTotal.WithLabelValues("error").Inc()
		log.Error("Failed to report orphaned asset", zap.String("key", r.asset.Key), zap.Error(err))
		return
	}
	orphanReportsTotal.WithLabelValues("success").Inc()
	log.Info("Orphaned asset reported", zap.String("key", r.asset.Key))
}
