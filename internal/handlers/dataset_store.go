package handlers

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"waypoint-optimizer/internal/models"
)

// DefaultMaxDatasets is how many uploads are kept in memory at once
const DefaultMaxDatasets = 32

// DatasetStore keeps uploaded datasets in memory between upload and solve.
// When full, the oldest upload is evicted.
type DatasetStore struct {
	datasets map[string]*models.Dataset
	limit    int
	mu       sync.RWMutex
}

// NewDatasetStore creates a store holding at most limit datasets
func NewDatasetStore(limit int) *DatasetStore {
	if limit <= 0 {
		limit = DefaultMaxDatasets
	}
	return &DatasetStore{
		datasets: make(map[string]*models.Dataset),
		limit:    limit,
	}
}

// Create stores the waypoints under a new id
func (s *DatasetStore) Create(name string, waypoints []models.Waypoint, skipped int) *models.Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.datasets) >= s.limit {
		oldest := lo.MinBy(lo.Values(s.datasets), func(a, b *models.Dataset) bool {
			return a.UploadedAt.Before(b.UploadedAt)
		})
		delete(s.datasets, oldest.ID)
		log.Printf("[SESSION] Evicted dataset: id=%s name=%s", oldest.ID, oldest.Name)
	}

	ds := &models.Dataset{
		ID:         uuid.NewString(),
		Name:       name,
		Waypoints:  append([]models.Waypoint(nil), waypoints...),
		Skipped:    skipped,
		UploadedAt: time.Now(),
	}
	s.datasets[ds.ID] = ds
	log.Printf("[SESSION] Created dataset: id=%s name=%s waypoints=%d", ds.ID, name, len(waypoints))
	return ds
}

// Get returns the dataset or nil
func (s *DatasetStore) Get(id string) *models.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.datasets[id]
}

// List returns datasets newest first
func (s *DatasetStore) List() []*models.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := lo.Values(s.datasets)
	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})
	return list
}

// Delete removes a dataset, reporting whether it existed
func (s *DatasetStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[id]; !ok {
		return false
	}
	delete(s.datasets, id)
	return true
}

// Len returns the number of stored datasets
func (s *DatasetStore) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.datasets)
}
