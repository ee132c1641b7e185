// Package domain defines the persistence models for cached daily
// reflections and the delivery log. These types are mapped with GORM and
// shared across the repository, service, and HTTP layers.
package domain

import "time"

// Reflection is one day's reading as stored in the local cache.
//
// Fields:
//   - DateString: canonical display date ("14 OCTOBER"); primary key. The
//     create path never overwrites an existing row with the same key.
//   - MonthDay: zero-padded "MM-DD"; indexed for lookups by slot.
//   - Title, Body, QuoteText: reading content with line breaks normalized.
//   - PageNumber: page parsed from the source text ("p. 86" -> 86), nil when
//     the source did not carry one.
//   - BookName: source book, nil when unknown.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Reflection struct {
	DateString string    `json:"date_string" gorm:"type:varchar(32);primaryKey"`
	MonthDay   string    `json:"month_day"   gorm:"type:char(5);not null;index:idx_reflections_month_day"`
	Title      string    `json:"title"       gorm:"type:text"`
	Body       string    `json:"reflection"  gorm:"column:reflection;type:text"`
	QuoteText  string    `json:"quote_text"  gorm:"type:text"`
	PageNumber *int      `json:"page_number,omitempty"`
	BookName   *string   `json:"book_name,omitempty" gorm:"type:varchar(255)"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for Reflection.
func (Reflection) TableName() string { return "daily_reflections" }

// Delivery run outcomes.
const (
	DeliveryCompleted = "completed"
	DeliveryFailed    = "failed"
)

// DeliveryRun records one scheduled fan-out so that a retried trigger
// carrying the same Idempotency-Key can be answered from the log instead of
// posting to every channel again.
type DeliveryRun struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Key        *string   `json:"key,omitempty" gorm:"type:varchar(200);uniqueIndex:ux_delivery_key"`
	DateString string    `json:"date_string" gorm:"type:varchar(32);not null;index"`
	Targets    int       `json:"targets"     gorm:"not null"`
	Succeeded  int       `json:"succeeded"   gorm:"not null"`
	Status     string    `json:"status"      gorm:"type:varchar(16);not null;check:status IN ('completed','failed')"`
	Results    string    `json:"results"     gorm:"type:text"` // JSON array of per-target results
	CreatedAt  time.Time `json:"created_at"  gorm:"not null;autoCreateTime"`
	ExpiresAt  time.Time `json:"expires_at"  gorm:"not null;index"`
}

// TableName returns the database table name for DeliveryRun.
func (DeliveryRun) TableName() string { return "delivery_runs" }
