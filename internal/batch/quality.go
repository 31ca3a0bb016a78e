package batch

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/openlingo/openlingo-backend/internal/domain/content"
	domain "github.com/openlingo/openlingo-backend/internal/domain/jobs"
	"github.com/openlingo/openlingo-backend/internal/ingestion/analyzer"
	"github.com/openlingo/openlingo-backend/internal/platform/logger"
)

// MemberReport is the quality re-score for one successful output.
type MemberReport struct {
	JobID        uuid.UUID              `json:"job_id"`
	QualityScore int                    `json:"quality_score"`
	Issues       []content.QualityIssue `json:"issues"`
	FixedCount   int                    `json:"fixed_count"`
}

// Report is the combined result of the two cross-batch passes.
type Report struct {
	Members    []MemberReport     `json:"members"`
	Duplicates []DuplicateCluster `json:"duplicates"`
}

// Checker runs the post-settlement passes with bounded concurrency. Scoring
// one output is independent of the rest, so members run in parallel up to
// MaxConcurrent.
type Checker struct {
	analyzer      *analyzer.Analyzer
	maxConcurrent int
	threshold     float64
	log           *logger.Logger
}

func NewChecker(an *analyzer.Analyzer, maxConcurrent int, similarityThreshold float64, log *logger.Logger) *Checker {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	if similarityThreshold <= 0 || similarityThreshold > 1 {
		similarityThreshold = 0.6
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Checker{
		analyzer:      an,
		maxConcurrent: maxConcurrent,
		threshold:     similarityThreshold,
		log:           log,
	}
}

// jobResult is the slice of the stored result payload the checker reads.
type jobResult struct {
	Course content.CourseOutput `json:"course"`
}

// Run re-scores each successful output and clusters near-duplicates. One
// member's unreadable result skips that member; it never fails the pass.
func (c *Checker) Run(ctx context.Context, succeeded []*domain.ImportJob, autoFix bool) (*Report, error) {
	type scored struct {
		report  MemberReport
		dedupID uuid.UUID
		deduped string
	}

	var mu sync.Mutex
	results := make([]scored, 0, len(succeeded))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrent)
	for _, m := range succeeded {
		m := m
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			var res jobResult
			if len(m.Result) == 0 || json.Unmarshal(m.Result, &res) != nil {
				c.log.Warn("batch check skipping unreadable result", "job_id", m.ID)
				return nil
			}
			text := courseText(res.Course)
			fixed := 0
			if autoFix {
				text, fixed = analyzer.ApplyCorrections(text)
			}
			a := c.analyzer.Analyze(text)
			mu.Lock()
			results = append(results, scored{
				report: MemberReport{
					JobID:        m.ID,
					QualityScore: a.QualityScore,
					Issues:       a.QualityIssues,
					FixedCount:   fixed,
				},
				dedupID: m.ID,
				deduped: res.Course.Title + " " + res.Course.Description,
			})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Stable member order regardless of goroutine completion order.
	sort.Slice(results, func(i, j int) bool {
		return strings.Compare(results[i].report.JobID.String(), results[j].report.JobID.String()) < 0
	})

	rep := &Report{Members: make([]MemberReport, 0, len(results))}
	ids := make([]uuid.UUID, 0, len(results))
	texts := make([]string, 0, len(results))
	for _, r := range results {
		rep.Members = append(rep.Members, r.report)
		ids = append(ids, r.dedupID)
		texts = append(texts, r.deduped)
	}
	rep.Duplicates = FindDuplicates(ids, texts, c.threshold)
	return rep, nil
}

func courseText(course content.CourseOutput) string {
	var b strings.Builder
	for _, l := range course.Lessons {
		b.WriteString(l.RawContent)
		b.WriteString("\n\n")
	}
	return b.String()
}
