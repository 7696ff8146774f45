package repository

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/reachscan/pkg/model"
)

// CheckRecord represents the check_records table. The full report is kept
// as JSON; the other columns exist for filtering.
type CheckRecord struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	CheckID     string    `gorm:"column:check_id;type:varchar(64);uniqueIndex"`
	Dump        string    `gorm:"column:dump;type:varchar(1024)"`
	TargetClass string    `gorm:"column:target_class;type:varchar(512);index"`
	Expect      string    `gorm:"column:expect;type:varchar(16)"`
	Reachable   bool      `gorm:"column:reachable"`
	Verdict     string    `gorm:"column:verdict;type:varchar(8)"`
	RootCount   int       `gorm:"column:root_count"`
	DurationMs  float64   `gorm:"column:duration_ms"`
	Report      JSONField `gorm:"column:report;type:json"`
	StartedAt   time.Time `gorm:"column:started_at;index"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for CheckRecord.
func (CheckRecord) TableName() string {
	return "check_records"
}

// NewCheckRecord converts a report into a row.
func NewCheckRecord(r *model.Report) (*CheckRecord, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return &CheckRecord{
		CheckID:     r.CheckID,
		Dump:        r.Dump.Location,
		TargetClass: r.TargetClass,
		Expect:      string(r.Expect),
		Reachable:   r.Reachable,
		Verdict:     string(r.Verdict),
		RootCount:   len(r.Roots),
		DurationMs:  r.DurationMs,
		Report:      data,
		StartedAt:   r.StartedAt,
	}, nil
}

// ToModel converts a row back into a report. Rows without a stored report
// are rebuilt from their columns.
func (c *CheckRecord) ToModel() (*model.Report, error) {
	if len(c.Report) > 0 {
		var r model.Report
		if err := json.Unmarshal(c.Report, &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report %s: %w", c.CheckID, err)
		}
		return &r, nil
	}
	return &model.Report{
		CheckID:     c.CheckID,
		TargetClass: c.TargetClass,
		Expect:      model.Expectation(c.Expect),
		Reachable:   c.Reachable,
		Verdict:     model.Verdict(c.Verdict),
		Dump:        model.DumpInfo{Location: c.Dump},
		Roots:       []model.RootResult{},
		StartedAt:   c.StartedAt,
		DurationMs:  c.DurationMs,
	}, nil
}

// JSONField is a JSON column.
type JSONField []byte

// Value implements driver.Valuer interface.
func (j JSONField) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return string(j), nil
}

// Scan implements sql.Scanner interface.
func (j *JSONField) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = []byte(v)
	default:
		return errors.New("unsupported type for JSONField")
	}
	return nil
}
