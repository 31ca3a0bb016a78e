package app

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openlingo/openlingo-backend/internal/platform/envutil"
	"github.com/openlingo/openlingo-backend/internal/platform/logger"
)

// Config is the full runtime configuration. Values load from an optional
// YAML file (CONFIG_FILE) first, then environment variables override
// field by field.
type Config struct {
	Mode        string   `yaml:"mode"`
	Port        string   `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	UploadRoot  string   `yaml:"upload_root"`

	TranslateURL     string        `yaml:"translate_url"`
	TranslateTimeout time.Duration `yaml:"translate_timeout"`

	Worker struct {
		Concurrency  int           `yaml:"concurrency"`
		PollInterval time.Duration `yaml:"poll_interval"`
		MaxAttempts  int           `yaml:"max_attempts"`
		RetryDelay   time.Duration `yaml:"retry_delay"`
		StaleRunning time.Duration `yaml:"stale_running"`
	} `yaml:"worker"`

	Pipeline struct {
		StageTimeout time.Duration `yaml:"stage_timeout"`
		QualityFloor int           `yaml:"quality_floor"`
	} `yaml:"pipeline"`

	Segmenter struct {
		TargetChars int `yaml:"target_chars"`
		TargetTurns int `yaml:"target_turns"`
	} `yaml:"segmenter"`

	Analyzer struct {
		MinContentLength   int `yaml:"min_content_length"`
		WordsPerMinute     int `yaml:"words_per_minute"`
		SentencesPerLesson int `yaml:"sentences_per_lesson"`
	} `yaml:"analyzer"`

	Batch struct {
		MaxConcurrent       int     `yaml:"max_concurrent"`
		SimilarityThreshold float64 `yaml:"similarity_threshold"`
	} `yaml:"batch"`
}

func LoadConfig(log *logger.Logger) Config {
	var cfg Config
	if path := envutil.Str("CONFIG_FILE", ""); path != "" {
		if b, err := os.ReadFile(path); err != nil {
			log.Warn("config file unreadable, using env only", "path", path, "error", err)
		} else if err := yaml.Unmarshal(b, &cfg); err != nil {
			log.Warn("config file invalid, using env only", "path", path, "error", err)
			cfg = Config{}
		}
	}

	cfg.Mode = envutil.Str("LOG_MODE", strOr(cfg.Mode, "development"))
	cfg.Port = envutil.Str("PORT", strOr(cfg.Port, "8080"))
	cfg.UploadRoot = envutil.Str("UPLOAD_ROOT", strOr(cfg.UploadRoot, "uploads"))
	cfg.TranslateURL = envutil.Str("TRANSLATE_URL", cfg.TranslateURL)
	cfg.TranslateTimeout = envutil.Duration("TRANSLATE_TIMEOUT", durOr(cfg.TranslateTimeout, 30*time.Second))

	cfg.Worker.Concurrency = envutil.Int("WORKER_CONCURRENCY", intOr(cfg.Worker.Concurrency, 4))
	cfg.Worker.PollInterval = envutil.Duration("WORKER_POLL_INTERVAL", durOr(cfg.Worker.PollInterval, time.Second))
	cfg.Worker.MaxAttempts = envutil.Int("WORKER_MAX_ATTEMPTS", intOr(cfg.Worker.MaxAttempts, 5))
	cfg.Worker.RetryDelay = envutil.Duration("WORKER_RETRY_DELAY", durOr(cfg.Worker.RetryDelay, 30*time.Second))
	cfg.Worker.StaleRunning = envutil.Duration("WORKER_STALE_RUNNING", durOr(cfg.Worker.StaleRunning, 30*time.Minute))

	cfg.Pipeline.StageTimeout = envutil.Duration("PIPELINE_STAGE_TIMEOUT", durOr(cfg.Pipeline.StageTimeout, 2*time.Minute))
	cfg.Pipeline.QualityFloor = envutil.Int("PIPELINE_QUALITY_FLOOR", intOr(cfg.Pipeline.QualityFloor, 40))

	cfg.Segmenter.TargetChars = envutil.Int("SEGMENT_TARGET_CHARS", intOr(cfg.Segmenter.TargetChars, 2000))
	cfg.Segmenter.TargetTurns = envutil.Int("SEGMENT_TARGET_TURNS", intOr(cfg.Segmenter.TargetTurns, 12))

	cfg.Analyzer.MinContentLength = envutil.Int("ANALYZE_MIN_CONTENT_LENGTH", intOr(cfg.Analyzer.MinContentLength, 100))
	cfg.Analyzer.WordsPerMinute = envutil.Int("ANALYZE_WORDS_PER_MINUTE", intOr(cfg.Analyzer.WordsPerMinute, 200))
	cfg.Analyzer.SentencesPerLesson = envutil.Int("ANALYZE_SENTENCES_PER_LESSON", intOr(cfg.Analyzer.SentencesPerLesson, 30))

	cfg.Batch.MaxConcurrent = envutil.Int("BATCH_MAX_CONCURRENT", intOr(cfg.Batch.MaxConcurrent, 4))
	if cfg.Batch.SimilarityThreshold <= 0 {
		cfg.Batch.SimilarityThreshold = 0.6
	}
	return cfg
}

func strOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func intOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func durOr(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
