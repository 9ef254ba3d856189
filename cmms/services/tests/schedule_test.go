package tests

import (
	"testing"
	"time"
)

func TestCreateAndListSchedules(t *testing.T) {
	env := setupTestEnv(t)

	manager, err := env.newManager("mgr")
	if err != nil {
		t.Fatal(err)
	}
	tech, err := env.newUser("tech")
	if err != nil {
		t.Fatal(err)
	}

	assetId, err := manager.createAsset(map[string]interface{}{"name": "HVAC", "tag": "HV-001"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = tech.createSchedule(map[string]interface{}{
		"asset_id": assetId, "title": "filter change", "interval_days": 30,
	})
	if err == nil {
		t.Fatal("technicians cannot create schedules")
	}

	_, err = manager.createSchedule(map[string]interface{}{
		"asset_id": assetId, "title": "filter change", "interval_days": 0,
	})
	if err == nil {
		t.Fatal("interval must be positive")
	}

	scheduleId, err := manager.createSchedule(map[string]interface{}{
		"asset_id": assetId, "title": "filter change", "interval_days": 30,
	})
	if err != nil {
		t.Fatal(err)
	}

	schedules, err := tech.listSchedules("")
	if err != nil {
		t.Fatal(err)
	}
	if len(schedules) != 1 || schedules[0].Id.String() != scheduleId || !schedules[0].Active {
		t.Fatalf("invalid schedules %v", schedules)
	}
	if schedules[0].IntervalDays != 30 {
		t.Fatalf("expected 30 day interval, got %d", schedules[0].IntervalDays)
	}
}

func TestPauseSchedule(t *testing.T) {
	env := setupTestEnv(t)

	manager, err := env.newManager("mgr")
	if err != nil {
		t.Fatal(err)
	}

	assetId, err := manager.createAsset(map[string]interface{}{"name": "HVAC", "tag": "HV-001"})
	if err != nil {
		t.Fatal(err)
	}

	scheduleId, err := manager.createSchedule(map[string]interface{}{
		"asset_id": assetId, "title": "coil cleaning", "interval_days": 90,
		"next_due_at": time.Now().UTC().Add(-time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}

	due, err := manager.listSchedules("?due=true")
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 {
		t.Fatalf("expected schedule to be due, got %v", due)
	}

	if err := manager.pauseSchedule(scheduleId); err != nil {
		t.Fatal(err)
	}

	due, err = manager.listSchedules("?due=true")
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 0 {
		t.Fatalf("paused schedules are never due, got %v", due)
	}
}

func TestDeleteScheduleKeepsWorkOrders(t *testing.T) {
	env := setupTestEnv(t)

	manager, err := env.newManager("mgr")
	if err != nil {
		t.Fatal(err)
	}

	assetId, err := manager.createAsset(map[string]interface{}{"name": "HVAC", "tag": "HV-001"})
	if err != nil {
		t.Fatal(err)
	}

	scheduleId, err := manager.createSchedule(map[string]interface{}{
		"asset_id": assetId, "title": "belt inspection", "interval_days": 60,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Simulate the scheduler having generated a work order for this schedule.
	workOrderId, err := manager.createWorkOrder(map[string]interface{}{
		"title": "belt inspection", "asset_id": assetId, "type": "preventive",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := manager.deleteSchedule(scheduleId); err != nil {
		t.Fatal(err)
	}

	schedules, err := manager.listSchedules("")
	if err != nil {
		t.Fatal(err)
	}
	if len(schedules) != 0 {
		t.Fatalf("schedule should be deleted, got %v", schedules)
	}

	workOrders, err := manager.listWorkOrders("")
	if err != nil {
		t.Fatal(err)
	}
	if len(workOrders) != 1 || workOrders[0].Id.String() != workOrderId {
		t.Fatalf("generated work orders survive schedule deletion, got %v", workOrders)
	}
}
