package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// metricsKeyPrefix is the Redis key prefix for service metrics.
	metricsKeyPrefix = "metrics:"
	// metricsTTL is how long metrics stay in Redis if not refreshed.
	metricsTTL = 2 * time.Minute
	// DefaultReportInterval is the default interval for writing metrics to Redis.
	DefaultReportInterval = 30 * time.Second
)

// ServiceMetrics is the reported snapshot for the collector service.
type ServiceMetrics struct {
	ServiceName string    `json:"service_name"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`

	MessagesReceived  uint64 `json:"messages_received"`
	MessagesProcessed uint64 `json:"messages_processed"`
	MessagesPublished uint64 `json:"messages_published"`
	ProcessingErrors  uint64 `json:"processing_errors"`
	UserActionable    uint64 `json:"user_actionable_rejections"`
	Corrupted         uint64 `json:"corrupted_rejections"`
	DeadLettered      uint64 `json:"dead_lettered"`
	Skipped           uint64 `json:"skipped_duplicates"`

	AvgProcessingLatencyNs float64 `json:"avg_processing_latency_ns"`
}

// Collector records counters in memory and reports them to Redis
// periodically.
type Collector struct {
	serviceName    string
	redis          *redis.Client
	startedAt      time.Time
	reportInterval time.Duration

	messagesReceived  atomic.Uint64
	messagesProcessed atomic.Uint64
	messagesPublished atomic.Uint64
	processingErrors  atomic.Uint64
	userActionable    atomic.Uint64
	corrupted         atomic.Uint64
	deadLettered      atomic.Uint64
	skipped           atomic.Uint64

	totalLatencyNs atomic.Uint64
	latencyCount   atomic.Uint64

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewCollector creates a metrics collector reporting under the given
// service name.
func NewCollector(serviceName string, redisClient *redis.Client) *Collector {
	return &Collector{
		serviceName:    serviceName,
		redis:          redisClient,
		startedAt:      time.Now().UTC(),
		reportInterval: DefaultReportInterval,
		stopCh:         make(chan struct{}),
	}
}

// SetReportInterval sets the interval for writing metrics to Redis.
func (c *Collector) SetReportInterval(interval time.Duration) {
	c.reportInterval = interval
}

// Start begins periodic metrics reporting to Redis.
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.writeMetrics(context.Background()) // Final write
				return
			case <-c.stopCh:
				c.writeMetrics(context.Background()) // Final write
				return
			case <-ticker.C:
				c.writeMetrics(ctx)
			}
		}
	}()
}

// Stop halts reporting and waits for the final write.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

func (c *Collector) RecordReceived()       { c.messagesReceived.Add(1) }
func (c *Collector) RecordPublished()      { c.messagesPublished.Add(1) }
func (c *Collector) RecordError()          { c.processingErrors.Add(1) }
func (c *Collector) RecordUserActionable() { c.userActionable.Add(1) }
func (c *Collector) RecordCorrupted()      { c.corrupted.Add(1) }
func (c *Collector) RecordDeadLettered()   { c.deadLettered.Add(1) }
func (c *Collector) RecordSkipped()        { c.skipped.Add(1) }

func (c *Collector) RecordProcessed(latency time.Duration) {
	c.messagesProcessed.Add(1)
	c.totalLatencyNs.Add(uint64(latency.Nanoseconds()))
	c.latencyCount.Add(1)
}

// Snapshot returns the current counter values.
func (c *Collector) Snapshot() ServiceMetrics {
	m := ServiceMetrics{
		ServiceName:       c.serviceName,
		StartedAt:         c.startedAt,
		LastUpdated:       time.Now().UTC(),
		MessagesReceived:  c.messagesReceived.Load(),
		MessagesProcessed: c.messagesProcessed.Load(),
		MessagesPublished: c.messagesPublished.Load(),
		ProcessingErrors:  c.processingErrors.Load(),
		UserActionable:    c.userActionable.Load(),
		Corrupted:         c.corrupted.Load(),
		DeadLettered:      c.deadLettered.Load(),
		Skipped:           c.skipped.Load(),
	}
	if count := c.latencyCount.Load(); count > 0 {
		m.AvgProcessingLatencyNs = float64(c.totalLatencyNs.Load()) / float64(count)
	}
	return m
}

// writeMetrics serializes the snapshot into Redis with a TTL.
func (c *Collector) writeMetrics(ctx context.Context) {
	snapshot := c.Snapshot()
	payload, err := json.Marshal(snapshot)
	if err != nil {
		slog.Error("Failed to marshal metrics", "error", err)
		return
	}

	key := metricsKeyPrefix + c.serviceName
	if err := c.redis.Set(ctx, key, payload, metricsTTL).Err(); err != nil {
		slog.Warn("Failed to write metrics to Redis", "key", key, "error", err)
	}
}

// Ensure Collector implements Recorder
var _ Recorder = (*Collector)(nil)
