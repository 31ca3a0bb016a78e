package app

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	batchsvc "github.com/openlingo/openlingo-backend/internal/batch"
	"github.com/openlingo/openlingo-backend/internal/clients/translate"
	"github.com/openlingo/openlingo-backend/internal/data/db"
	jobsrepo "github.com/openlingo/openlingo-backend/internal/data/repos/jobs"
	apphttp "github.com/openlingo/openlingo-backend/internal/http"
	httpH "github.com/openlingo/openlingo-backend/internal/http/handlers"
	"github.com/openlingo/openlingo-backend/internal/ingestion/aligner"
	"github.com/openlingo/openlingo-backend/internal/ingestion/analyzer"
	"github.com/openlingo/openlingo-backend/internal/ingestion/assembler"
	"github.com/openlingo/openlingo-backend/internal/ingestion/extractor"
	"github.com/openlingo/openlingo-backend/internal/ingestion/pipeline"
	"github.com/openlingo/openlingo-backend/internal/ingestion/segmenter"
	"github.com/openlingo/openlingo-backend/internal/jobs/runtime"
	"github.com/openlingo/openlingo-backend/internal/jobs/worker"
	"github.com/openlingo/openlingo-backend/internal/platform/logger"
	"github.com/openlingo/openlingo-backend/internal/services/imports"
	"github.com/openlingo/openlingo-backend/internal/services/notify"
)

// App wires the whole service: store, ingestion components, job worker pool
// and the HTTP surface.
type App struct {
	Log    *logger.Logger
	DB     *gorm.DB
	Cfg    Config
	Server *apphttp.Server
	Worker *worker.Worker

	cancel context.CancelFunc
}

func New() (*App, error) {
	log, err := logger.New("development")
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	cfg := LoadConfig(log)
	if relog, err := logger.New(cfg.Mode); err == nil {
		log = relog
	}

	dbs, err := db.New(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbs.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	handle := dbs.DB()

	jobRepo := jobsrepo.NewImportJobRepo(handle, log)
	batchRepo := jobsrepo.NewBatchJobRepo(handle, log)

	// Ingestion components.
	an := analyzer.New(analyzer.Config{
		MinContentLength:   cfg.Analyzer.MinContentLength,
		WordsPerMinute:     cfg.Analyzer.WordsPerMinute,
		SentencesPerLesson: cfg.Analyzer.SentencesPerLesson,
	})
	seg := segmenter.New(segmenter.Config{
		TargetChars: cfg.Segmenter.TargetChars,
		TargetTurns: cfg.Segmenter.TargetTurns,
	})
	ex := extractor.New(cfg.UploadRoot, log)

	var translator aligner.Translator
	if cfg.TranslateURL != "" {
		translator = translate.NewHTTPClient(cfg.TranslateURL, cfg.TranslateTimeout, log)
	} else {
		log.Warn("no TRANSLATE_URL configured, using deterministic mock translator")
		translator = translate.NewMock()
	}
	al := aligner.New(translator, aligner.NewPatternTagger(), log)
	as := assembler.New()

	// Job system.
	notifier := notify.NewLogNotifier(log)
	registry := runtime.NewRegistry()
	handler := pipeline.NewHandler(pipeline.Config{
		StageTimeout: cfg.Pipeline.StageTimeout,
		QualityFloor: cfg.Pipeline.QualityFloor,
	}, ex, an, seg, al, as, log)
	if err := registry.Register(handler); err != nil {
		log.Sync()
		return nil, fmt.Errorf("register pipeline handler: %w", err)
	}
	jobWorker := worker.New(log, jobRepo, registry, notifier, worker.Options{
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval,
		MaxAttempts:  cfg.Worker.MaxAttempts,
		RetryDelay:   cfg.Worker.RetryDelay,
		StaleRunning: cfg.Worker.StaleRunning,
	})

	// Services + HTTP surface.
	importSvc := imports.NewService(jobRepo, log)
	checker := batchsvc.NewChecker(an, cfg.Batch.MaxConcurrent, cfg.Batch.SimilarityThreshold, log)
	coordinator := batchsvc.NewCoordinator(jobRepo, batchRepo, importSvc, checker, log)

	server := apphttp.NewServer(apphttp.RouterConfig{
		Mode:           cfg.Mode,
		CORSOrigins:    cfg.CORSOrigins,
		Log:            log,
		ImportHandler:  httpH.NewImportHandler(importSvc),
		JobHandler:     httpH.NewJobHandler(importSvc),
		BatchHandler:   httpH.NewBatchHandler(coordinator),
		AnalyzeHandler: httpH.NewAnalyzeHandler(ex, an),
		HealthHandler:  httpH.NewHealthHandler(),
	})

	return &App{
		Log:    log,
		DB:     handle,
		Cfg:    cfg,
		Server: server,
		Worker: jobWorker,
	}, nil
}

// Start launches the worker pool. Idempotent; a second call is a no-op.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.Worker.Start(ctx)
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("server listening", "port", a.Cfg.Port)
	return a.Server.Run(":" + a.Cfg.Port)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
		// Give in-flight claims a beat to release their rows.
		time.Sleep(100 * time.Millisecond)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
