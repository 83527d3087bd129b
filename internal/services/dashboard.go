package services

import (
	"time"

	"github.com/huangang/projecthub/backend/internal/models"
	"github.com/huangang/projecthub/backend/internal/workflow"
	"gorm.io/gorm"
)

// DashboardService aggregates the review queue for administrators.
type DashboardService struct {
	db *gorm.DB
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db}
}

type DashboardStatsRequest struct {
	StartDate      string `form:"start_date"`
	EndDate        string `form:"end_date"`
	SubmitterLimit int    `form:"submitter_limit" binding:"omitempty,min=1,max=100"`
}

type KindStats struct {
	Total    int64                     `json:"total"`
	ByStatus map[workflow.Status]int64 `json:"by_status"`
}

type SubmitterStats struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

type DashboardResponse struct {
	From           time.Time        `json:"from"`
	To             time.Time        `json:"to"`
	Projects       KindStats        `json:"projects"`
	Workshops      KindStats        `json:"workshops"`
	CreditsAwarded int64            `json:"credits_awarded"`
	Unregistered   []string         `json:"unregistered_project_ids"`
	TopSubmitters  []SubmitterStats `json:"top_submitters"`
}

// GetStats summarises submissions created in [start_date, end_date], by
// default the last 30 days.
func (s *DashboardService) GetStats(req *DashboardStatsRequest) (*DashboardResponse, error) {
	now := time.Now()
	startDate := now.AddDate(0, 0, -30)
	if req.StartDate != "" {
		if t, err := time.Parse("2006-01-02", req.StartDate); err == nil {
			startDate = t
		}
	}
	endDate := now
	if req.EndDate != "" {
		if t, err := time.Parse("2006-01-02", req.EndDate); err == nil {
			endDate = t.Add(24*time.Hour - time.Second)
		}
	}
	limit := req.SubmitterLimit
	if limit == 0 {
		limit = 10
	}

	resp := &DashboardResponse{From: startDate, To: endDate}
	var err error

	if resp.Projects, err = s.kindStats(&models.Project{}, startDate, endDate); err != nil {
		return nil, err
	}
	if resp.Workshops, err = s.kindStats(&models.Workshop{}, startDate, endDate); err != nil {
		return nil, err
	}

	if err := s.db.Model(&models.Project{}).
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Where("status IN ?", []workflow.Status{workflow.StatusApproved, workflow.StatusCompleted}).
		Select("COALESCE(SUM(credits), 0)").
		Scan(&resp.CreditsAwarded).Error; err != nil {
		return nil, err
	}

	// approved projects whose external registration never succeeded
	var approved []models.Project
	if err := s.db.Select("id", "external_request").
		Where("status = ?", workflow.StatusApproved).
		Find(&approved).Error; err != nil {
		return nil, err
	}
	resp.Unregistered = []string{}
	for i := range approved {
		if !approved[i].Registered() {
			resp.Unregistered = append(resp.Unregistered, approved[i].ID)
		}
	}

	if err := s.db.Model(&models.Project{}).
		Select("submitter_email AS email, MAX(submitter_name) AS name, COUNT(*) AS count").
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Group("submitter_email").
		Order("count DESC").
		Limit(limit).
		Scan(&resp.TopSubmitters).Error; err != nil {
		return nil, err
	}

	return resp, nil
}

func (s *DashboardService) kindStats(model interface{}, from, to time.Time) (KindStats, error) {
	var rows []struct {
		Status workflow.Status
		Count  int64
	}
	err := s.db.Model(model).
		Select("status, COUNT(*) AS count").
		Where("created_at BETWEEN ? AND ?", from, to).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return KindStats{}, err
	}

	stats := KindStats{ByStatus: make(map[workflow.Status]int64)}
	for _, r := range rows {
		stats.ByStatus[r.Status] = r.Count
		stats.Total += r.Count
	}
	return stats, nil
}
