package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ourstreet-app/ourstreet-core/internal/db"
	"github.com/ourstreet-app/ourstreet-core/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// appendTimeout bounds how long a best-effort append may block; after it the
// write is abandoned and logged locally, never retried.
const appendTimeout = 5 * time.Second

// securityActions are always surfaced in the security-events view even when
// the event itself succeeded.
var securityActions = []string{models.ActionRateLimited, models.ActionRoleChange}

// Recorder appends security and administrative events to the durable audit
// store and serves filtered read-back. Appends are best-effort: a failed
// audit write must never fail the request it describes.
type Recorder struct {
	db    *gorm.DB
	nowFn func() time.Time
}

// NewRecorder constructs a Recorder. A nil nowFn defaults to time.Now.
func NewRecorder(db *gorm.DB, nowFn func() time.Time) *Recorder {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Recorder{db: db, nowFn: nowFn}
}

// LogAuth records an authentication event (login, refresh, logout).
func (r *Recorder) LogAuth(ctx context.Context, entry Entry) {
	r.append(ctx, entry)
}

// LogAdminAction records a privileged administrative event.
func (r *Recorder) LogAdminAction(ctx context.Context, entry Entry) {
	r.append(ctx, entry)
}

// append writes one event. Failures are logged and swallowed.
func (r *Recorder) append(ctx context.Context, entry Entry) {
	if r == nil || r.db == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	record := models.AuditLog{
		Timestamp:    entry.Timestamp,
		UserID:       entry.UserID,
		UserEmail:    entry.UserEmail,
		Action:       entry.Action,
		Resource:     entry.Resource,
		IPAddress:    entry.IPAddress,
		UserAgent:    entry.UserAgent,
		RequestID:    entry.RequestID,
		Success:      entry.Success,
		ErrorMessage: entry.ErrorMessage,
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = r.nowFn().UTC()
	}
	if record.UserEmail == "" {
		record.UserEmail = models.AnonymousEmail
	}
	if len(entry.Details) > 0 {
		payload, errMarshal := json.Marshal(entry.Details)
		if errMarshal != nil {
			log.WithError(errMarshal).Warn("audit: marshal details failed")
		} else {
			record.Details = datatypes.JSON(payload)
		}
	}

	dbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), appendTimeout)
	defer cancel()
	if errCreate := r.db.WithContext(dbCtx).Create(&record).Error; errCreate != nil {
		log.WithError(errCreate).WithFields(log.Fields{
			"action":   record.Action,
			"resource": record.Resource,
		}).Warn("audit: append failed")
	}
}

// Query returns the page of events matching the filter, most recent first,
// plus the total match count ignoring pagination.
func (r *Recorder) Query(ctx context.Context, filter Filter) ([]models.AuditLog, int64, error) {
	if r == nil || r.db == nil {
		return nil, 0, fmt.Errorf("audit: recorder not initialized")
	}

	q := r.applyFilter(r.db.WithContext(ctx).Model(&models.AuditLog{}), filter)

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		return nil, 0, fmt.Errorf("audit: count: %w", errCount)
	}

	q = q.Order("timestamp DESC, id DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var rows []models.AuditLog
	if errFind := q.Find(&rows).Error; errFind != nil {
		return nil, 0, fmt.Errorf("audit: query: %w", errFind)
	}
	return rows, total, nil
}

// Stats aggregates counts by action, resource, and outcome within the
// optional date range. Computed from the same table Query reads, so the
// aggregate and detail views cannot drift.
func (r *Recorder) Stats(ctx context.Context, start, end *time.Time) (Stats, error) {
	if r == nil || r.db == nil {
		return Stats{}, fmt.Errorf("audit: recorder not initialized")
	}

	rangeFilter := Filter{Start: start, End: end}
	stats := Stats{
		ByAction:   make(map[string]int64),
		ByResource: make(map[string]int64),
	}

	type bucket struct {
		Key   string
		Total int64
	}

	var actionRows []bucket
	if errAction := r.applyFilter(r.db.WithContext(ctx).Model(&models.AuditLog{}), rangeFilter).
		Select("action AS key, COUNT(*) AS total").
		Group("action").
		Scan(&actionRows).Error; errAction != nil {
		return Stats{}, fmt.Errorf("audit: stats by action: %w", errAction)
	}
	for _, row := range actionRows {
		stats.ByAction[row.Key] = row.Total
		stats.Total += row.Total
	}

	var resourceRows []bucket
	if errResource := r.applyFilter(r.db.WithContext(ctx).Model(&models.AuditLog{}), rangeFilter).
		Select("resource AS key, COUNT(*) AS total").
		Group("resource").
		Scan(&resourceRows).Error; errResource != nil {
		return Stats{}, fmt.Errorf("audit: stats by resource: %w", errResource)
	}
	for _, row := range resourceRows {
		stats.ByResource[row.Key] = row.Total
	}

	if errSuccess := r.applyFilter(r.db.WithContext(ctx).Model(&models.AuditLog{}), rangeFilter).
		Where("success = ?", true).
		Count(&stats.SuccessCount).Error; errSuccess != nil {
		return Stats{}, fmt.Errorf("audit: stats success count: %w", errSuccess)
	}
	stats.FailureCount = stats.Total - stats.SuccessCount
	return stats, nil
}

// SecurityEvents returns the most recent security-relevant events: every
// failure plus rate-limit rejections and privilege changes regardless of
// outcome.
func (r *Recorder) SecurityEvents(ctx context.Context, limit int) ([]models.AuditLog, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("audit: recorder not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	var rows []models.AuditLog
	if errFind := r.db.WithContext(ctx).Model(&models.AuditLog{}).
		Where("success = ? OR action IN ?", false, securityActions).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("audit: security events: %w", errFind)
	}
	return rows, nil
}

// Export returns every event within the optional date range with all fields,
// unpaginated, for offline retention.
func (r *Recorder) Export(ctx context.Context, start, end *time.Time) ([]models.AuditLog, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("audit: recorder not initialized")
	}

	var rows []models.AuditLog
	if errFind := r.applyFilter(r.db.WithContext(ctx).Model(&models.AuditLog{}), Filter{Start: start, End: end}).
		Order("timestamp DESC, id DESC").
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("audit: export: %w", errFind)
	}
	return rows, nil
}

// applyFilter adds the conjunctive WHERE clauses for a filter.
func (r *Recorder) applyFilter(q *gorm.DB, filter Filter) *gorm.DB {
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.UserEmail != "" {
		q = q.Where(
			db.CaseInsensitiveLikeExpr(r.db, "user_email"),
			db.NormalizeLikePattern(r.db, "%"+filter.UserEmail+"%"),
		)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if filter.Resource != "" {
		q = q.Where("resource = ?", filter.Resource)
	}
	if filter.Success != nil {
		q = q.Where("success = ?", *filter.Success)
	}
	if filter.Start != nil {
		q = q.Where("timestamp >= ?", *filter.Start)
	}
	if filter.End != nil {
		q = q.Where("timestamp <= ?", *filter.End)
	}
	return q
}
