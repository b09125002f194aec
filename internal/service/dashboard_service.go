package service

import (
	"go-lims-ws/internal/model"
	"go-lims-ws/internal/repository"
)

// DashboardStats is the QC overview: where lots sit in the pipeline and
// how much work is waiting on a human.
type DashboardStats struct {
	LotsByStatus     map[model.LotStatus]int64 `json:"lots_by_status"`
	PendingRetests   int64                     `json:"pending_retests"`
	AwaitingReleases int64                     `json:"awaiting_releases"`
}

type DashboardService interface {
	GetDashboardStats() (*DashboardStats, error)
	GetRecentActivity(limit int) ([]model.AuditLog, error)
}

type dashboardService struct {
	lotRepo     repository.LotRepository
	releaseRepo repository.ReleaseRepository
	audit       AuditService
}

func NewDashboardService(lotRepo repository.LotRepository, releaseRepo repository.ReleaseRepository, audit AuditService) DashboardService {
	return &dashboardService{
		lotRepo:     lotRepo,
		releaseRepo: releaseRepo,
		audit:       audit,
	}
}

func (s *dashboardService) GetDashboardStats() (*DashboardStats, error) {
	byStatus, err := s.lotRepo.CountByStatus()
	if err != nil {
		return nil, err
	}

	// Every status appears in the response, zero or not
	for _, status := range model.AllLotStatuses {
		if _, ok := byStatus[status]; !ok {
			byStatus[status] = 0
		}
	}

	pendingRetests, err := s.lotRepo.CountPendingRetests()
	if err != nil {
		return nil, err
	}
	awaiting, err := s.releaseRepo.CountAwaiting()
	if err != nil {
		return nil, err
	}

	return &DashboardStats{
		LotsByStatus:     byStatus,
		PendingRetests:   pendingRetests,
		AwaitingReleases: awaiting,
	}, nil
}

func (s *dashboardService) GetRecentActivity(limit int) ([]model.AuditLog, error) {
	return s.audit.GetRecent(limit)
}
