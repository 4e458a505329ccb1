package summarizer

import (
	"sync"
	"time"
)

// ClientStats represents client statistics
type ClientStats struct {
	Provider        string        `json:"provider"`
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	TotalRetries    uint64        `json:"total_retries"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	ActiveRequests  int           `json:"active_requests"`
}

type clientStats struct {
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

func (s *clientStats) incrementTotalRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRequests++
}

func (s *clientStats) incrementFailedRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedRequests++
}

func (s *clientStats) incrementTotalRetries() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRetries++
}

// recordSuccess counts a success and folds its latency into a moving average
func (s *clientStats) recordSuccess(responseTime time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.successRequests++
	if s.avgResponseTime == 0 {
		s.avgResponseTime = responseTime
	} else {
		s.avgResponseTime = (s.avgResponseTime + responseTime) / 2
	}
}

func (s *clientStats) snapshot(provider string, active int) ClientStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	successRate := float64(0)
	if s.totalRequests > 0 {
		successRate = float64(s.successRequests) / float64(s.totalRequests) * 100
	}

	return ClientStats{
		Provider:        provider,
		TotalRequests:   s.totalRequests,
		SuccessRequests: s.successRequests,
		FailedRequests:  s.failedRequests,
		SuccessRate:     successRate,
		TotalRetries:    s.totalRetries,
		AvgResponseTime: s.avgResponseTime,
		ActiveRequests:  active,
	}
}
