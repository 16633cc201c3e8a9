package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/skolara/skolara-backend/internal/model"
	"github.com/skolara/skolara-backend/internal/repository"
)

// MonitorService builds the initial snapshot for the live material monitor.
// Live updates after the snapshot arrive via Redis pub/sub.
type MonitorService struct {
	draftRepo      *repository.DraftRepository
	submissionRepo *repository.SubmissionRepository
	studentRepo    *repository.StudentRepository
	log            zerolog.Logger
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(
	draftRepo *repository.DraftRepository,
	submissionRepo *repository.SubmissionRepository,
	studentRepo *repository.StudentRepository,
	log zerolog.Logger,
) *MonitorService {
	return &MonitorService{
		draftRepo:      draftRepo,
		submissionRepo: submissionRepo,
		studentRepo:    studentRepo,
		log:            log.With().Str("component", "monitor_service").Logger(),
	}
}

// Snapshot returns the current per-student progress for a material: answered
// counts from drafts plus which students already submitted.
func (s *MonitorService) Snapshot(ctx context.Context, materialID uuid.UUID) ([]model.MonitorRow, error) {
	counts, err := s.draftRepo.AnsweredCountsByMaterial(ctx, materialID)
	if err != nil {
		return nil, fmt.Errorf("answered counts: %w", err)
	}

	submittedIDs, err := s.submissionRepo.SubmittedStudentIDs(ctx, materialID)
	if err != nil {
		return nil, fmt.Errorf("submitted students: %w", err)
	}

	submitted := make(map[int]bool, len(submittedIDs))
	ids := make([]int, 0, len(counts)+len(submittedIDs))
	for id := range counts {
		ids = append(ids, id)
	}
	for _, id := range submittedIDs {
		submitted[id] = true
		if _, ok := counts[id]; !ok {
			ids = append(ids, id)
		}
	}

	names := map[int]string{}
	if len(ids) > 0 {
		names, err = s.studentRepo.ListNamesByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("student names: %w", err)
		}
	}

	rows := make([]model.MonitorRow, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, model.MonitorRow{
			StudentID:     id,
			Name:          names[id],
			AnsweredCount: counts[id],
			Submitted:     submitted[id],
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })

	return rows, nil
}
