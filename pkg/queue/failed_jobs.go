package queue

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// FailedJob is a job that exhausted its retries.
type FailedJob struct {
	ID       uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	JobType  string    `gorm:"size:255;not null;index" json:"job_type"`
	Payload  string    `gorm:"type:text;not null" json:"payload"`
	Error    string    `gorm:"type:text" json:"error"`
	Attempts int       `gorm:"not null;default:0" json:"attempts"`
	FailedAt time.Time `gorm:"autoCreateTime" json:"failed_at"`
}

func (FailedJob) TableName() string { return "failed_jobs" }

// FailedStore records exhausted jobs.
type FailedStore interface {
	Record(ctx context.Context, jobType string, payload []byte, err error, attempts int) error
}

// DBFailedStore writes to the failed_jobs table.
type DBFailedStore struct {
	db *gorm.DB
}

func NewDBFailedStore(db *gorm.DB) *DBFailedStore { return &DBFailedStore{db: db} }

func (s *DBFailedStore) Record(ctx context.Context, jobType string, payload []byte, err error, attempts int) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return s.db.WithContext(ctx).Create(&FailedJob{
		JobType:  jobType,
		Payload:  string(payload),
		Error:    msg,
		Attempts: attempts,
	}).Error
}

// List returns the most recent failures first.
func (s *DBFailedStore) List(ctx context.Context, limit int) ([]FailedJob, error) {
	var out []FailedJob
	err := s.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&out).Error
	return out, err
}
