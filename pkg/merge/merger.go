package merge

import (
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/profdiff/pkg/profile"
	"github.com/grafana/profdiff/pkg/util"
)

// Merger merges threads and profiles. A Merger is safe for concurrent use
// once all payload rewriters are registered.
type Merger struct {
	cfg       Config
	logger    log.Logger
	metrics   *metrics
	rewriters payloadRewriters
}

func New(cfg Config, logger log.Logger, reg prometheus.Registerer) *Merger {
	if logger == nil {
		logger = util.Logger
	}
	return &Merger{
		cfg:       cfg,
		logger:    logger,
		metrics:   newMetrics(reg),
		rewriters: defaultPayloadRewriters(),
	}
}

// RegisterPayloadRewriter adds a rewriter for marker payloads of the given
// type. Rewriters registered for the same type run in registration order.
// It must not be called concurrently with merges.
func (m *Merger) RegisterPayloadRewriter(typ string, rw PayloadRewriter) {
	m.rewriters[typ] = append(m.rewriters[typ], rw)
}

// MergeThreadSources merges the given threads into a single thread. The
// samples table of the merged thread is empty.
func (m *Merger) MergeThreadSources(sources []ThreadSource) (_ *MergedThread, err error) {
	defer m.observe(operationMergeThreads, time.Now(), &err)
	return m.mergeThreadSources(sources)
}

// MergeThreads merges threads of a single profile. All threads are merged
// if none is specified.
func (m *Merger) MergeThreads(p *profile.Profile, threads ...int) (*MergedThread, error) {
	sources, err := SourcesFromProfile(p, threads...)
	if err != nil {
		return nil, err
	}
	return m.MergeThreadSources(sources)
}

func (m *Merger) observe(op string, start time.Time, err *error) {
	m.metrics.operations.WithLabelValues(op, outcome(*err)).Inc()
	m.metrics.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if *err != nil {
		level.Debug(m.logger).Log("msg", "merge failed", "operation", op, "err", *err)
	}
}

func (m *Merger) observeRows(table string, appended, deduplicated int) {
	m.metrics.mergedRows.WithLabelValues(table).Add(float64(appended))
	if deduplicated > 0 {
		m.metrics.deduplicated.WithLabelValues(table).Add(float64(deduplicated))
	}
}

func (m *Merger) debug(keyvals ...interface{}) {
	level.Debug(m.logger).Log(keyvals...)
}

func (m *Merger) warn(keyvals ...interface{}) {
	level.Warn(m.logger).Log(keyvals...)
}

var defaultMerger = New(Config{}, nil, nil)

// MergeThreads merges threads of a single profile with the default
// configuration.
func MergeThreads(p *profile.Profile, threads ...int) (*MergedThread, error) {
	return defaultMerger.MergeThreads(p, threads...)
}

// MergeForDiffing assembles a diff profile with the default configuration.
func MergeForDiffing(profiles []*profile.Profile, selectors []ThreadSelector) (*DiffResult, error) {
	return defaultMerger.MergeForDiffing(profiles, selectors)
}
