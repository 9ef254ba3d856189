package jobs

import (
	"log/slog"
	"sync"
	"time"

	"chatterfix/cmms/health"
	"chatterfix/cmms/schema"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Scheduler is the background loop that materializes due preventive
// maintenance into work orders, escalates overdue work, and refreshes asset
// health scores.
type Scheduler struct {
	db       *gorm.DB
	policy   health.Policy
	interval time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

func NewScheduler(db *gorm.DB, policy health.Policy, interval time.Duration) *Scheduler {
	return &Scheduler{
		db:       db,
		policy:   policy,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (s *Scheduler) Run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("maintenance scheduler started", "interval", s.interval)

	for {
		select {
		case <-ticker.C:
			s.RunOnce(time.Now().UTC())
		case <-s.stop:
			slog.Info("maintenance scheduler stopped")
			return
		}
	}
}

// Stop is safe to call more than once and does not block if the loop has
// already exited.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// RunOnce performs a single sweep. Split out from Run so tests can drive the
// scheduler without a ticker.
func (s *Scheduler) RunOnce(now time.Time) {
	if err := s.materializeDueSchedules(now); err != nil {
		slog.Error("error materializing due schedules", "error", err)
	}
	if err := s.escalateOverdueWorkOrders(now); err != nil {
		slog.Error("error escalating overdue work orders", "error", err)
	}
	health.RescoreAll(s.db, s.policy, now)
}

// materializeDueSchedules creates a preventive work order for every active
// schedule that is due. A schedule with an open generated work order is
// skipped so a stalled PM does not pile up duplicates.
func (s *Scheduler) materializeDueSchedules(now time.Time) error {
	var due []schema.MaintenanceSchedule
	result := s.db.Where("active = ? AND next_due_at <= ?", true, now).Find(&due)
	if result.Error != nil {
		slog.Error("sql error listing due schedules", "error", result.Error)
		return schema.ErrDbAccessFailed
	}

	for _, schedule := range due {
		if err := s.materializeSchedule(&schedule, now); err != nil {
			slog.Error("error materializing schedule", "schedule_id", schedule.Id, "error", err)
		}
	}

	return nil
}

func (s *Scheduler) materializeSchedule(schedule *schema.MaintenanceSchedule, now time.Time) error {
	return s.db.Transaction(func(txn *gorm.DB) error {
		asset, err := schema.GetAsset(schedule.AssetId, txn)
		if err != nil {
			return err
		}
		if asset.Status == schema.AssetRetired {
			// Retire should have deactivated the schedule; repair it here.
			result := txn.Model(&schema.MaintenanceSchedule{Id: schedule.Id}).Update("active", false)
			return result.Error
		}

		var open int64
		result := txn.Model(&schema.WorkOrder{}).
			Where("schedule_id = ? AND status NOT IN ?",
				schedule.Id, []string{schema.WorkOrderCompleted, schema.WorkOrderCancelled}).
			Count(&open)
		if result.Error != nil {
			slog.Error("sql error checking for open generated work orders", "schedule_id", schedule.Id, "error", result.Error)
			return schema.ErrDbAccessFailed
		}

		if open == 0 {
			scheduleId := schedule.Id
			dueDate := schedule.NextDueAt
			newWorkOrder := schema.WorkOrder{
				Id:          uuid.New(),
				Title:       schedule.Title,
				Description: schedule.Description,
				Type:        schema.TypePreventive,
				Status:      schema.WorkOrderOpen,
				Priority:    schedule.Priority,
				AssetId:     schedule.AssetId,
				RequestedBy: asset.UserId,
				ScheduleId:  &scheduleId,
				DueDate:     &dueDate,
			}
			result = txn.Create(&newWorkOrder)
			if result.Error != nil {
				slog.Error("sql error creating preventive work order", "schedule_id", schedule.Id, "error", result.Error)
				return schema.ErrDbAccessFailed
			}
			slog.Info("generated preventive work order",
				"schedule_id", schedule.Id, "work_order_id", newWorkOrder.Id, "asset_id", schedule.AssetId)
		}

		// Advance past now so a long outage does not generate one work order
		// per missed interval.
		nextDueAt := schedule.NextDueAt
		for !nextDueAt.After(now) {
			nextDueAt = nextDueAt.AddDate(0, 0, schedule.IntervalDays)
		}

		result = txn.Model(&schema.MaintenanceSchedule{Id: schedule.Id}).
			Updates(map[string]interface{}{"last_generated_at": now, "next_due_at": nextDueAt})
		if result.Error != nil {
			slog.Error("sql error advancing schedule", "schedule_id", schedule.Id, "error", result.Error)
			return schema.ErrDbAccessFailed
		}

		return nil
	})
}

// escalateOverdueWorkOrders raises the priority of past-due open work to at
// least high.
func (s *Scheduler) escalateOverdueWorkOrders(now time.Time) error {
	result := s.db.Model(&schema.WorkOrder{}).
		Where("due_date < ? AND status NOT IN ? AND priority IN ?",
			now,
			[]string{schema.WorkOrderCompleted, schema.WorkOrderCancelled},
			[]string{schema.PriorityLow, schema.PriorityMedium}).
		Update("priority", schema.PriorityHigh)
	if result.Error != nil {
		slog.Error("sql error escalating overdue work orders", "error", result.Error)
		return schema.ErrDbAccessFailed
	}
	if result.RowsAffected > 0 {
		slog.Info("escalated overdue work orders", "count", result.RowsAffected)
	}
	return nil
}
