package tests

import (
	"testing"

	"chatterfix/cmms/schema"
)

func TestDashboard(t *testing.T) {
	env := setupTestEnv(t)

	manager, err := env.newManager("mgr")
	if err != nil {
		t.Fatal(err)
	}

	assetId, err := manager.createAsset(map[string]interface{}{"name": "Pump", "tag": "P-001"})
	if err != nil {
		t.Fatal(err)
	}
	downId, err := manager.createAsset(map[string]interface{}{"name": "Fan", "tag": "F-001"})
	if err != nil {
		t.Fatal(err)
	}
	if err := manager.setAssetStatus(downId, schema.AssetDown); err != nil {
		t.Fatal(err)
	}

	openId, err := manager.createWorkOrder(map[string]interface{}{
		"title": "fix fan", "asset_id": downId, "priority": "critical",
	})
	if err != nil {
		t.Fatal(err)
	}
	_ = openId

	doneId, err := manager.createWorkOrder(map[string]interface{}{
		"title": "grease pump", "asset_id": assetId,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := manager.setWorkOrderStatus(doneId, schema.WorkOrderInProgress); err != nil {
		t.Fatal(err)
	}
	if err := manager.setWorkOrderStatus(doneId, schema.WorkOrderCompleted); err != nil {
		t.Fatal(err)
	}

	_, err = manager.createPart(map[string]interface{}{
		"name": "Filter", "sku": "FILT-1", "quantity": 1, "min_quantity": 5,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Due in 3 days, inside the dashboard's 7 day horizon.
	_, err = manager.createSchedule(map[string]interface{}{
		"asset_id": assetId, "title": "weekly check", "interval_days": 3,
	})
	if err != nil {
		t.Fatal(err)
	}

	dashboard, err := manager.dashboard()
	if err != nil {
		t.Fatal(err)
	}

	byStatus := dashboard["work_orders_by_status"].(map[string]interface{})
	if byStatus["open"].(float64) != 1 || byStatus["completed"].(float64) != 1 {
		t.Fatalf("invalid work order counts %v", byStatus)
	}
	byPriority := dashboard["work_orders_by_priority"].(map[string]interface{})
	if byPriority["critical"].(float64) != 1 || byPriority["medium"].(float64) != 1 {
		t.Fatalf("invalid work order priority counts %v", byPriority)
	}

	if dashboard["assets_down"].(float64) != 1 {
		t.Fatalf("expected 1 asset down, got %v", dashboard["assets_down"])
	}
	if dashboard["low_stock_parts"].(float64) != 1 {
		t.Fatalf("expected 1 low stock part, got %v", dashboard["low_stock_parts"])
	}
	if dashboard["schedules_due"].(float64) != 1 {
		t.Fatalf("expected 1 schedule due within a week, got %v", dashboard["schedules_due"])
	}
	if dashboard["completed_last_week"].(float64) != 1 {
		t.Fatalf("expected 1 completed this week, got %v", dashboard["completed_last_week"])
	}

	// The down asset has been rescored below the healthy pump, so it leads the
	// worst assets list.
	worst := dashboard["worst_assets"].([]interface{})
	if len(worst) != 2 {
		t.Fatalf("expected 2 assets in worst assets list, got %d", len(worst))
	}
	if worst[0].(map[string]interface{})["tag"] != "F-001" {
		t.Fatalf("down asset should lead the worst assets list, got %v", worst)
	}
}
