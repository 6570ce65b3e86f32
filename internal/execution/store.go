package execution

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/mica-backend/internal/errors"
	"github.com/unclebandit/mica-backend/internal/model"
	"github.com/unclebandit/mica-backend/internal/repository"
)

// Store is everything the progression engine needs from persistence.
// WriteEntry is conditional on the entry's Version and returns
// appErrors.ErrStaleEntry when another writer got there first.
type Store interface {
	ReadEntries(ctx context.Context, campaignID string) ([]model.ScheduleEntry, error)
	WriteEntry(ctx context.Context, e *model.ScheduleEntry) error
	AppendLog(ctx context.Context, l *model.CampaignLog) error
}

// RepositoryStore backs the engine with PostgreSQL.
type RepositoryStore struct {
	Schedule repository.ScheduleRepositoryInterface
	Logs     repository.LogRepositoryInterface
}

func (s *RepositoryStore) ReadEntries(ctx context.Context, campaignID string) ([]model.ScheduleEntry, error) {
	return s.Schedule.ListByCampaign(ctx, campaignID)
}

func (s *RepositoryStore) WriteEntry(ctx context.Context, e *model.ScheduleEntry) error {
	return s.Schedule.UpdateEntry(ctx, e)
}

func (s *RepositoryStore) AppendLog(ctx context.Context, l *model.CampaignLog) error {
	return s.Logs.Append(ctx, l)
}

// MemoryStore keeps one campaign's schedule and logs in process memory.
// Demo sessions each own one; nothing is shared between instances.
type MemoryStore struct {
	mu             sync.RWMutex
	campaignStatus string
	entries        []model.ScheduleEntry
	logs           []model.CampaignLog
}

func NewMemoryStore(status string, entries []model.ScheduleEntry, logs []model.CampaignLog) *MemoryStore {
	s := &MemoryStore{campaignStatus: status}
	s.entries = append(s.entries, entries...)
	s.logs = append(s.logs, logs...)
	return s
}

func (s *MemoryStore) ReadEntries(_ context.Context, campaignID string) ([]model.ScheduleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ScheduleEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if campaignID == "" || e.CampaignID == campaignID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) WriteEntry(_ context.Context, e *model.ScheduleEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].ID == e.ID {
			if s.entries[i].Version != e.Version {
				return appErrors.ErrStaleEntry
			}
			e.Version++
			s.entries[i] = *e
			return nil
		}
	}
	return appErrors.NewAssetNotFound("schedule entry", e.ID)
}

func (s *MemoryStore) AppendLog(_ context.Context, l *model.CampaignLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	s.mu.Lock()
	s.logs = append(s.logs, *l)
	s.mu.Unlock()
	return nil
}

// Logs returns the logs newest first.
func (s *MemoryStore) Logs() []model.CampaignLog {
	s.mu.RLock()
	out := append([]model.CampaignLog(nil), s.logs...)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].ExecutedAt.After(out[j].ExecutedAt) })
	return out
}

func (s *MemoryStore) CampaignStatus() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.campaignStatus
}

// TransitionTx mirrors ScheduleRepository.TransitionTx for in-memory campaigns.
func (s *MemoryStore) TransitionTx(_ context.Context, _ string, fromCampaign, toCampaign, fromEntry, toEntry string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.campaignStatus != fromCampaign {
		return 0, appErrors.Conflict("transition", "campaign is not "+fromCampaign)
	}
	s.campaignStatus = toCampaign

	var moved int64
	for i := range s.entries {
		if s.entries[i].Status == fromEntry {
			s.entries[i].Status = toEntry
			s.entries[i].Version++
			moved++
		}
	}
	return moved, nil
}

var (
	_ Store        = (*RepositoryStore)(nil)
	_ Store        = (*MemoryStore)(nil)
	_ Transitioner = (*MemoryStore)(nil)
)
