package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds application metrics
type Metrics struct {
	RequestCount        int64
	ErrorCount          int64
	PredictionCount     int64
	RecordsScored       int64
	SubmissionCount     int64
	CacheHits           int64
	CacheMisses         int64
	AverageResponseTime int64 // in nanoseconds
	StartTime           time.Time

	// Response time samples for percentiles
	ResponseTimes      []time.Duration
	ResponseTimesMutex sync.RWMutex

	// Status code tracking
	RequestCountByStatus map[int]int64
	StatusMutex          sync.RWMutex
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:            time.Now(),
		ResponseTimes:        make([]time.Duration, 0, 1000),
		RequestCountByStatus: make(map[int]int64),
	}
}

// IncrementRequest increments the request count
func (m *Metrics) IncrementRequest() {
	atomic.AddInt64(&m.RequestCount, 1)
}

// IncrementError increments the error count
func (m *Metrics) IncrementError() {
	atomic.AddInt64(&m.ErrorCount, 1)
}

// IncrementCacheHit increments cache hit count
func (m *Metrics) IncrementCacheHit() {
	atomic.AddInt64(&m.CacheHits, 1)
}

// IncrementCacheMiss increments cache miss count
func (m *Metrics) IncrementCacheMiss() {
	atomic.AddInt64(&m.CacheMisses, 1)
}

// RecordPrediction records one scoring request covering n records
func (m *Metrics) RecordPrediction(records int) {
	atomic.AddInt64(&m.PredictionCount, 1)
	atomic.AddInt64(&m.RecordsScored, int64(records))
}

// IncrementSubmissions increments the submission count
func (m *Metrics) IncrementSubmissions() {
	atomic.AddInt64(&m.SubmissionCount, 1)
}

// RecordResponseTime records response time for averaging and percentiles
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	current := atomic.LoadInt64(&m.AverageResponseTime)
	newAverage := (current + duration.Nanoseconds()) / 2
	atomic.StoreInt64(&m.AverageResponseTime, newAverage)

	// keep the last 1000 samples
	m.ResponseTimesMutex.Lock()
	m.ResponseTimes = append(m.ResponseTimes, duration)
	if len(m.ResponseTimes) > 1000 {
		m.ResponseTimes = m.ResponseTimes[1:]
	}
	m.ResponseTimesMutex.Unlock()
}

// RecordRequestByStatus records request count by HTTP status code
func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.StatusMutex.Lock()
	defer m.StatusMutex.Unlock()
	m.RequestCountByStatus[statusCode]++
}

// GetPercentileResponseTime calculates percentile response time
func (m *Metrics) GetPercentileResponseTime(percentile float64) time.Duration {
	m.ResponseTimesMutex.RLock()
	defer m.ResponseTimesMutex.RUnlock()

	if len(m.ResponseTimes) == 0 {
		return 0
	}

	times := make([]time.Duration, len(m.ResponseTimes))
	copy(times, m.ResponseTimes)

	sort.Slice(times, func(i, j int) bool {
		return times[i] < times[j]
	})

	index := int(float64(len(times)-1) * percentile / 100.0)
	if index >= len(times) {
		index = len(times) - 1
	}

	return times[index]
}

// GetStatusCodeDistribution returns request count by status code
func (m *Metrics) GetStatusCodeDistribution() map[int]int64 {
	m.StatusMutex.RLock()
	defer m.StatusMutex.RUnlock()

	distribution := make(map[int]int64)
	for code, count := range m.RequestCountByStatus {
		distribution[code] = count
	}
	return distribution
}

// GetStats returns a snapshot of all metrics
func (m *Metrics) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"request_count":            atomic.LoadInt64(&m.RequestCount),
		"error_count":              atomic.LoadInt64(&m.ErrorCount),
		"prediction_count":         atomic.LoadInt64(&m.PredictionCount),
		"records_scored":           atomic.LoadInt64(&m.RecordsScored),
		"submission_count":         atomic.LoadInt64(&m.SubmissionCount),
		"cache_hits":               atomic.LoadInt64(&m.CacheHits),
		"cache_misses":             atomic.LoadInt64(&m.CacheMisses),
		"avg_response_time_ms":     time.Duration(atomic.LoadInt64(&m.AverageResponseTime)).Milliseconds(),
		"p95_response_time_ms":     m.GetPercentileResponseTime(95).Milliseconds(),
		"p99_response_time_ms":     m.GetPercentileResponseTime(99).Milliseconds(),
		"status_code_distribution": m.GetStatusCodeDistribution(),
		"uptime_seconds":           time.Since(m.StartTime).Seconds(),
	}
}
