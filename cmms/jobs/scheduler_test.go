package jobs

import (
	"testing"
	"time"

	"chatterfix/cmms/health"
	"chatterfix/cmms/schema"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDb(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(schema.AllTables()...); err != nil {
		t.Fatal(err)
	}
	return db
}

func createAsset(t *testing.T, db *gorm.DB, userId uuid.UUID) schema.Asset {
	asset := schema.Asset{
		Id: uuid.New(), Name: "Pump", Tag: "P-001",
		Status: schema.AssetActive, Criticality: schema.CriticalityMedium,
		HealthScore: 100, HealthBand: schema.HealthGood, UserId: userId,
	}
	if err := db.Create(&asset).Error; err != nil {
		t.Fatal(err)
	}
	return asset
}

func createUser(t *testing.T, db *gorm.DB) schema.User {
	user := schema.User{
		Id: uuid.New(), Username: "admin", Email: "admin@mail.com",
		Role: schema.RoleAdmin, IsAdmin: true, Active: true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatal(err)
	}
	return user
}

func TestMaterializeDueSchedules(t *testing.T) {
	db := setupDb(t)
	user := createUser(t, db)
	asset := createAsset(t, db, user.Id)

	now := time.Now().UTC()

	schedule := schema.MaintenanceSchedule{
		Id: uuid.New(), AssetId: asset.Id, Title: "monthly check",
		Priority: schema.PriorityMedium, IntervalDays: 30,
		NextDueAt: now.Add(-time.Hour), Active: true,
	}
	if err := db.Create(&schedule).Error; err != nil {
		t.Fatal(err)
	}

	scheduler := NewScheduler(db, health.DefaultPolicy(), time.Minute)
	scheduler.RunOnce(now)

	var workOrders []schema.WorkOrder
	if err := db.Find(&workOrders).Error; err != nil {
		t.Fatal(err)
	}
	if len(workOrders) != 1 {
		t.Fatalf("expected 1 generated work order, got %d", len(workOrders))
	}
	wo := workOrders[0]
	if wo.Type != schema.TypePreventive || wo.ScheduleId == nil || *wo.ScheduleId != schedule.Id {
		t.Fatalf("invalid generated work order %+v", wo)
	}
	if wo.DueDate == nil || !wo.DueDate.Equal(schedule.NextDueAt) {
		t.Fatalf("generated work order should be due when the schedule was due, got %v", wo.DueDate)
	}

	var updated schema.MaintenanceSchedule
	if err := db.First(&updated, "id = ?", schedule.Id).Error; err != nil {
		t.Fatal(err)
	}
	if !updated.NextDueAt.After(now) {
		t.Fatalf("schedule should advance past now, got %v", updated.NextDueAt)
	}
	if updated.LastGeneratedAt == nil {
		t.Fatal("last generated timestamp should be set")
	}
}

func TestMaterializeIsIdempotent(t *testing.T) {
	db := setupDb(t)
	user := createUser(t, db)
	asset := createAsset(t, db, user.Id)

	now := time.Now().UTC()

	schedule := schema.MaintenanceSchedule{
		Id: uuid.New(), AssetId: asset.Id, Title: "monthly check",
		Priority: schema.PriorityMedium, IntervalDays: 30,
		NextDueAt: now.Add(-time.Hour), Active: true,
	}
	if err := db.Create(&schedule).Error; err != nil {
		t.Fatal(err)
	}

	scheduler := NewScheduler(db, health.DefaultPolicy(), time.Minute)
	scheduler.RunOnce(now)

	// Force the schedule due again with the generated work order still open.
	if err := db.Model(&schema.MaintenanceSchedule{Id: schedule.Id}).
		Update("next_due_at", now.Add(-time.Hour)).Error; err != nil {
		t.Fatal(err)
	}

	scheduler.RunOnce(now)

	var count int64
	if err := db.Model(&schema.WorkOrder{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("open generated work orders should not be duplicated, got %d", count)
	}
}

func TestMissedIntervalsCollapse(t *testing.T) {
	db := setupDb(t)
	user := createUser(t, db)
	asset := createAsset(t, db, user.Id)

	now := time.Now().UTC()

	// Due 100 days ago with a 30 day interval: three intervals were missed.
	schedule := schema.MaintenanceSchedule{
		Id: uuid.New(), AssetId: asset.Id, Title: "monthly check",
		Priority: schema.PriorityMedium, IntervalDays: 30,
		NextDueAt: now.AddDate(0, 0, -100), Active: true,
	}
	if err := db.Create(&schedule).Error; err != nil {
		t.Fatal(err)
	}

	scheduler := NewScheduler(db, health.DefaultPolicy(), time.Minute)
	scheduler.RunOnce(now)

	var count int64
	if err := db.Model(&schema.WorkOrder{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("missed intervals collapse into one work order, got %d", count)
	}

	var updated schema.MaintenanceSchedule
	if err := db.First(&updated, "id = ?", schedule.Id).Error; err != nil {
		t.Fatal(err)
	}
	if !updated.NextDueAt.After(now) {
		t.Fatalf("schedule should advance past now, got %v", updated.NextDueAt)
	}
}

func TestRetiredAssetDeactivatesSchedule(t *testing.T) {
	db := setupDb(t)
	user := createUser(t, db)
	asset := createAsset(t, db, user.Id)

	if err := db.Model(&schema.Asset{Id: asset.Id}).Update("status", schema.AssetRetired).Error; err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()

	schedule := schema.MaintenanceSchedule{
		Id: uuid.New(), AssetId: asset.Id, Title: "monthly check",
		Priority: schema.PriorityMedium, IntervalDays: 30,
		NextDueAt: now.Add(-time.Hour), Active: true,
	}
	if err := db.Create(&schedule).Error; err != nil {
		t.Fatal(err)
	}

	scheduler := NewScheduler(db, health.DefaultPolicy(), time.Minute)
	scheduler.RunOnce(now)

	var count int64
	if err := db.Model(&schema.WorkOrder{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatal("retired assets should not get preventive work orders")
	}

	var updated schema.MaintenanceSchedule
	if err := db.First(&updated, "id = ?", schedule.Id).Error; err != nil {
		t.Fatal(err)
	}
	if updated.Active {
		t.Fatal("schedules on retired assets should be deactivated")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	db := setupDb(t)

	scheduler := NewScheduler(db, health.DefaultPolicy(), time.Minute)

	done := make(chan struct{})
	go func() {
		scheduler.Run()
		close(done)
	}()

	scheduler.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	// A second Stop after the loop has exited must return immediately.
	stopped := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("repeated Stop call blocked")
	}
}

func TestEscalateOverdueWorkOrders(t *testing.T) {
	db := setupDb(t)
	user := createUser(t, db)
	asset := createAsset(t, db, user.Id)

	now := time.Now().UTC()
	pastDue := now.Add(-24 * time.Hour)

	overdue := schema.WorkOrder{
		Id: uuid.New(), Title: "overdue", Type: schema.TypeCorrective,
		Status: schema.WorkOrderOpen, Priority: schema.PriorityLow,
		AssetId: asset.Id, RequestedBy: user.Id, DueDate: &pastDue,
	}
	completed := schema.WorkOrder{
		Id: uuid.New(), Title: "done", Type: schema.TypeCorrective,
		Status: schema.WorkOrderCompleted, Priority: schema.PriorityLow,
		AssetId: asset.Id, RequestedBy: user.Id, DueDate: &pastDue,
	}
	critical := schema.WorkOrder{
		Id: uuid.New(), Title: "urgent", Type: schema.TypeCorrective,
		Status: schema.WorkOrderOpen, Priority: schema.PriorityCritical,
		AssetId: asset.Id, RequestedBy: user.Id, DueDate: &pastDue,
	}
	for _, wo := range []*schema.WorkOrder{&overdue, &completed, &critical} {
		if err := db.Create(wo).Error; err != nil {
			t.Fatal(err)
		}
	}

	scheduler := NewScheduler(db, health.DefaultPolicy(), time.Minute)
	scheduler.RunOnce(now)

	checks := []struct {
		id       uuid.UUID
		expected string
	}{
		{overdue.Id, schema.PriorityHigh},
		{completed.Id, schema.PriorityLow},
		{critical.Id, schema.PriorityCritical},
	}
	for _, check := range checks {
		var wo schema.WorkOrder
		if err := db.First(&wo, "id = ?", check.id).Error; err != nil {
			t.Fatal(err)
		}
		if wo.Priority != check.expected {
			t.Fatalf("work order %v expected priority %v, got %v", check.id, check.expected, wo.Priority)
		}
	}
}
