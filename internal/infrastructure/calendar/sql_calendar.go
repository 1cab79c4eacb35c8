// Package calendar is the SQL-backed calendar: availability is business
// hours minus booked and blocked rows, and bookings are appointment rows.
package calendar

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/tractcall-go/internal/domain/gateways"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/tenant"
)

// ErrSlotTaken is returned when the slot was booked after it was offered.
var ErrSlotTaken = errors.New("slot already booked")

// TenantSource resolves tenant contexts.
type TenantSource interface {
	Get(tenantID string) (*tenant.Context, error)
}

// SQLCalendar implements gateways.Calendar.
type SQLCalendar struct {
	tenants TenantSource
	now     func() time.Time
	tracker *performance.Tracker
	logger  *logging.ChanneledLogger
}

var _ gateways.Calendar = (*SQLCalendar)(nil)

func NewSQLCalendar(tenants TenantSource, now func() time.Time, tracker *performance.Tracker, logger *logging.ChanneledLogger) *SQLCalendar {
	if now == nil {
		now = time.Now
	}
	return &SQLCalendar{tenants: tenants, now: now, tracker: tracker, logger: logger}
}

func hoursFor(cfg *tenant.Config) Hours {
	return Hours{
		Open:            cfg.OpenMinutes(),
		Close:           cfg.CloseMinutes(),
		SlotMinutes:     cfg.Hours.SlotMinutes,
		DurationMinutes: cfg.Hours.DurationMinutes,
	}
}

func (c *SQLCalendar) FindAvailableSlots(ctx context.Context, tenantID, date string) ([]session.Slot, error) {
	tc, err := c.tenants.Get(tenantID)
	if err != nil {
		return nil, err
	}
	day, err := time.ParseInLocation("2006-01-02", date, tc.Location())
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return c.slotsFor(ctx, tc, day)
}

func (c *SQLCalendar) slotsFor(ctx context.Context, tc *tenant.Context, day time.Time) ([]session.Slot, error) {
	if isWeekend(day) {
		return nil, nil
	}
	unavailable, allDay, err := c.unavailable(ctx, tc, day.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	if allDay {
		return nil, nil
	}
	return GenerateSlots(day, hoursFor(tc.Config), unavailable, c.now().In(tc.Location())), nil
}

// unavailable collects booked and blocked starts. allDay is set by a blocked
// row without a time.
func (c *SQLCalendar) unavailable(ctx context.Context, tc *tenant.Context, date string) (map[string]bool, bool, error) {
	out := make(map[string]bool)
	if tc.Database == nil || tc.Database.Conn == nil {
		return out, false, nil
	}
	db := tc.Database.Conn

	rows, err := db.QueryContext(ctx,
		`SELECT time FROM appointments WHERE tenant_id = ? AND date = ? AND status = 'booked'`,
		tc.TenantID, date)
	if err != nil {
		return nil, false, fmt.Errorf("query booked slots: %w", err)
	}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			rows.Close()
			return nil, false, fmt.Errorf("scan booked slot: %w", err)
		}
		out[t] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("query booked slots: %w", err)
	}

	rows, err = db.QueryContext(ctx,
		`SELECT COALESCE(time, '') FROM blocked_slots WHERE tenant_id = ? AND date = ?`,
		tc.TenantID, date)
	if err != nil {
		return nil, false, fmt.Errorf("query blocked slots: %w", err)
	}
	defer rows.Close()
	allDay := false
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, false, fmt.Errorf("scan blocked slot: %w", err)
		}
		if t == "" {
			allDay = true
			continue
		}
		out[t] = true
	}
	return out, allDay, rows.Err()
}

func (c *SQLCalendar) FindNextAvailableSlot(ctx context.Context, tenantID, date string) (gateways.NextAvailable, error) {
	marker := c.tracker.StartOperation("calendar.next_available", tenantID)
	defer marker.Complete()

	tc, err := c.tenants.Get(tenantID)
	if err != nil {
		marker.SetError(err)
		return gateways.NextAvailable{}, err
	}
	day, err := time.ParseInLocation("2006-01-02", date, tc.Location())
	if err != nil {
		marker.SetError(err)
		return gateways.NextAvailable{}, fmt.Errorf("invalid date %q: %w", date, err)
	}

	for i := 0; i <= tc.Config.SearchHorizonDays; i++ {
		d := day.AddDate(0, 0, i)
		slots, err := c.slotsFor(ctx, tc, d)
		if err != nil {
			marker.SetError(err)
			return gateways.NextAvailable{}, err
		}
		if len(slots) > 0 {
			marker.AddMetadata("daysAhead", i)
			return gateways.NextAvailable{
				Date:           d.Format("2006-01-02"),
				FormattedDate:  d.Format("Monday, January 2, 2006"),
				AvailableSlots: slots,
			}, nil
		}
	}
	marker.SetSuccess(false)
	return gateways.NextAvailable{}, gateways.ErrNoAvailability
}

func (c *SQLCalendar) CreateAppointment(ctx context.Context, tenantID string, req gateways.AppointmentRequest, email, name string) (gateways.Booking, error) {
	marker := c.tracker.StartOperation("calendar.create", tenantID)
	defer marker.Complete()

	tc, err := c.tenants.Get(tenantID)
	if err != nil {
		marker.SetError(err)
		return gateways.Booking{}, err
	}
	if tc.Database == nil || tc.Database.Conn == nil {
		err := fmt.Errorf("tenant %s has no calendar database", tenantID)
		marker.SetError(err)
		return gateways.Booking{}, err
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = tc.Config.Hours.DurationMinutes
	}

	id := security.GenerateULID()
	link := EventLink(tc.Config.EventLinkBase, req.CalendarType, id)

	_, err = tc.Database.Conn.ExecContext(ctx,
		`INSERT INTO appointments (id, tenant_id, title, description, date, time, duration_minutes, calendar_type, attendee_email, attendee_name, event_link, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'booked', ?)`,
		id, tenantID, req.Title, req.Description, req.Date, req.Time, req.DurationMinutes,
		string(req.CalendarType), email, name, link, c.now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			err = fmt.Errorf("%w: %s %s", ErrSlotTaken, req.Date, req.Time)
		} else {
			err = fmt.Errorf("insert appointment: %w", err)
		}
		marker.SetError(err)
		return gateways.Booking{}, err
	}

	c.logger.Calendar().Info("Appointment created",
		"tenantId", tenantID,
		"eventId", id,
		"date", req.Date,
		"time", req.Time,
		"calendarType", req.CalendarType)
	return gateways.Booking{EventID: id, EventLink: link}, nil
}

// EventLink builds the link returned to the caller for an event.
func EventLink(base string, ct session.CalendarType, id string) string {
	if base != "" {
		return strings.TrimRight(base, "/") + "/" + id
	}
	if ct == session.CalendarMicrosoft {
		return "https://outlook.office.com/calendar/item/" + id
	}
	return "https://calendar.google.com/calendar/event?eid=" + id
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed")
}
