package usecase

import (
	"sync"
	"time"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
)

// Board is the in-process dashboard every metric producer writes into.
type Board struct {
	mu   sync.RWMutex
	snap domain.DashboardSnapshot
}

func NewBoard() *Board {
	return &Board{snap: domain.DashboardSnapshot{Metrics: domain.DashboardMetrics{}}}
}

func (b *Board) UpdateMetric(key, display string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snap.Metrics[key] = display
}

func (b *Board) SetRankings(rankings []domain.Ranking) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snap.Rankings = append([]domain.Ranking(nil), rankings...)
}

func (b *Board) Touch(at time.Time, live bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snap.LastUpdated = at.UTC()
	b.snap.Live = live
}

func (b *Board) Replace(snap domain.DashboardSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	metrics := make(domain.DashboardMetrics, len(snap.Metrics))
	for k, v := range snap.Metrics {
		metrics[k] = v
	}
	snap.Metrics = metrics
	snap.Rankings = append([]domain.Ranking(nil), snap.Rankings...)
	b.snap = snap
}

func (b *Board) Snapshot() domain.DashboardSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := b.snap
	out.Metrics = make(domain.DashboardMetrics, len(b.snap.Metrics))
	for k, v := range b.snap.Metrics {
		out.Metrics[k] = v
	}
	out.Rankings = append([]domain.Ranking(nil), b.snap.Rankings...)
	return out
}
