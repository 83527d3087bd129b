package services

import (
	"encoding/json"
	"time"

	"github.com/huangang/projecthub/backend/internal/models"
	"github.com/huangang/projecthub/backend/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

var globalDB *gorm.DB

func InitSystemLogger(db *gorm.DB) {
	globalDB = db
}

// LogEntry describes one system log line. Only Module, Action and Message are required.
type LogEntry struct {
	Module    string
	Action    string
	Message   string
	UserID    string
	TargetID  string
	IP        string
	UserAgent string
	Extra     interface{}
}

func LogInfo(e LogEntry) {
	writeLog("info", e)
}

func LogWarning(e LogEntry) {
	writeLog("warning", e)
}

func LogError(e LogEntry) {
	writeLog("error", e)
}

func writeLog(level string, e LogEntry) {
	if globalDB == nil {
		return
	}

	var extraStr string
	if e.Extra != nil {
		if b, err := json.Marshal(e.Extra); err == nil {
			extraStr = string(b)
		}
	}

	var uid *string
	if e.UserID != "" {
		id := e.UserID
		uid = &id
	}

	entry := &models.SystemLog{
		Level:     level,
		Module:    e.Module,
		Action:    e.Action,
		Message:   e.Message,
		UserID:    uid,
		TargetID:  e.TargetID,
		IP:        e.IP,
		UserAgent: e.UserAgent,
		Extra:     extraStr,
		CreatedAt: time.Now(),
	}
	if err := globalDB.Create(entry).Error; err != nil {
		logger.Warn().Err(err).Str("module", e.Module).Msg("failed to persist system log")
	}
}

type SystemLogService struct {
	db *gorm.DB
}

func NewSystemLogService(db *gorm.DB) *SystemLogService {
	return &SystemLogService{db: db}
}

type SystemLogListRequest struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Level     string `form:"level"`
	Module    string `form:"module"`
	Action    string `form:"action"`
	TargetID  string `form:"target_id"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
	Search    string `form:"search"`
}

type SystemLogListResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Items    []models.SystemLog `json:"items"`
}

func (s *SystemLogService) List(req *SystemLogListRequest) (*SystemLogListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	var logs []models.SystemLog
	var total int64

	query := s.db.Model(&models.SystemLog{})

	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}
	if req.Action != "" {
		query = query.Where("action LIKE ?", "%"+req.Action+"%")
	}
	if req.TargetID != "" {
		query = query.Where("target_id = ?", req.TargetID)
	}
	if req.StartDate != "" {
		query = query.Where("created_at >= ?", req.StartDate)
	}
	if req.EndDate != "" {
		query = query.Where("created_at <= ?", req.EndDate+" 23:59:59")
	}
	if req.Search != "" {
		query = query.Where("message LIKE ?", "%"+req.Search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC, id DESC").Find(&logs).Error; err != nil {
		return nil, err
	}

	return &SystemLogListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    logs,
	}, nil
}

func (s *SystemLogService) GetModules() ([]string, error) {
	var modules []string
	if err := s.db.Model(&models.SystemLog{}).Distinct("module").Order("module").Pluck("module", &modules).Error; err != nil {
		return nil, err
	}
	return modules, nil
}

// CleanupOldLogs deletes logs older than the specified number of days
// Returns the number of deleted records
func (s *SystemLogService) CleanupOldLogs(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoffTime := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.Where("created_at < ?", cutoffTime).Delete(&models.SystemLog{})
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

// LogCleanupScheduler prunes the system log on a cron schedule.
type LogCleanupScheduler struct {
	service       *SystemLogService
	retentionDays int
	cron          *cron.Cron
}

func NewLogCleanupScheduler(db *gorm.DB, retentionDays int) *LogCleanupScheduler {
	return &LogCleanupScheduler{
		service:       NewSystemLogService(db),
		retentionDays: retentionDays,
		cron:          cron.New(),
	}
}

// Start runs one cleanup immediately, then on every tick of spec.
func (s *LogCleanupScheduler) Start(spec string) error {
	if spec == "" {
		spec = "@daily"
	}
	if _, err := s.cron.AddFunc(spec, s.runCleanup); err != nil {
		return err
	}

	go s.runCleanup()
	s.cron.Start()
	logger.Info().Str("schedule", spec).Int("retention_days", s.retentionDays).Msg("[SystemLog] cleanup scheduler started")
	return nil
}

func (s *LogCleanupScheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *LogCleanupScheduler) runCleanup() {
	if s.retentionDays <= 0 {
		logger.Info().Msg("[SystemLog] log cleanup disabled (retention_days <= 0)")
		return
	}

	deleted, err := s.service.CleanupOldLogs(s.retentionDays)
	if err != nil {
		logger.Error().Err(err).Msg("[SystemLog] failed to cleanup old logs")
		return
	}

	if deleted > 0 {
		logger.Info().Int64("deleted", deleted).Int("retention_days", s.retentionDays).Msg("[SystemLog] cleaned up old logs")
	}
}
