package storage

import (
	"context"
	"sync"

	"eggscan/internal/domain/entity"
	"eggscan/internal/domain/port"
)

// DetectionStats считает предсказания по меткам. Хранятся только счётчики,
// сами предсказания не сохраняются.
type DetectionStats struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewDetectionStats создаёт нулевые счётчики.
func NewDetectionStats() *DetectionStats {
	return &DetectionStats{counts: make(map[string]int)}
}

// Record реализует port.DetectionSink.
func (s *DetectionStats) Record(ctx context.Context, d entity.Detection) {
	s.mu.Lock()
	s.counts[d.Prediction.Label]++
	s.mu.Unlock()
}

// Snapshot возвращает копию счётчиков.
func (s *DetectionStats) Snapshot() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

var _ port.DetectionSink = (*DetectionStats)(nil)
