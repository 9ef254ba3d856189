package tests

import (
	"testing"

	"chatterfix/cmms/schema"
)

func TestCreateAndListAssets(t *testing.T) {
	env := setupTestEnv(t)

	manager, err := env.newManager("mgr")
	if err != nil {
		t.Fatal(err)
	}
	tech, err := env.newUser("tech")
	if err != nil {
		t.Fatal(err)
	}

	_, err = tech.createAsset(map[string]interface{}{"name": "Pump 1", "tag": "P-001"})
	if err == nil {
		t.Fatal("technicians cannot create assets")
	}

	_, err = manager.createAsset(map[string]interface{}{"name": "Pump 1"})
	if err == nil {
		t.Fatal("asset tag is required")
	}

	pumpId, err := manager.createAsset(map[string]interface{}{
		"name": "Pump 1", "tag": "P-001", "category": "pump", "location": "Plant A", "criticality": "high",
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = manager.createAsset(map[string]interface{}{"name": "Pump 2", "tag": "P-001"})
	if err == nil {
		t.Fatal("duplicate asset tag should fail")
	}

	_, err = manager.createAsset(map[string]interface{}{
		"name": "Fan 1", "tag": "F-001", "category": "fan", "location": "Plant B",
	})
	if err != nil {
		t.Fatal(err)
	}

	assets, err := tech.listAssets("")
	if err != nil {
		t.Fatal(err)
	}
	if len(assets) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(assets))
	}

	assets, err = tech.listAssets("?category=pump")
	if err != nil {
		t.Fatal(err)
	}
	if len(assets) != 1 || assets[0].Id.String() != pumpId {
		t.Fatalf("category filter returned wrong assets: %v", assets)
	}

	info, err := tech.assetInfo(pumpId)
	if err != nil {
		t.Fatal(err)
	}
	if info.Criticality != schema.CriticalityHigh || info.Status != schema.AssetActive {
		t.Fatalf("invalid asset info %v", info)
	}
	if info.HealthScore != 100 || info.HealthBand != schema.HealthGood {
		t.Fatalf("new assets start with full health, got %v", info)
	}
}

func TestUpdateAssetAndStatus(t *testing.T) {
	env := setupTestEnv(t)

	manager, err := env.newManager("mgr")
	if err != nil {
		t.Fatal(err)
	}

	assetId, err := manager.createAsset(map[string]interface{}{"name": "Chiller", "tag": "C-001"})
	if err != nil {
		t.Fatal(err)
	}

	if err := manager.updateAsset(assetId, map[string]interface{}{"location": "Roof", "criticality": "high"}); err != nil {
		t.Fatal(err)
	}

	info, err := manager.assetInfo(assetId)
	if err != nil {
		t.Fatal(err)
	}
	if info.Location != "Roof" || info.Criticality != schema.CriticalityHigh {
		t.Fatalf("update not applied: %v", info)
	}

	if err := manager.setAssetStatus(assetId, "broken"); err == nil {
		t.Fatal("invalid status should be rejected")
	}
	if err := manager.setAssetStatus(assetId, schema.AssetRetired); err == nil {
		t.Fatal("retired status must go through the retire endpoint")
	}

	if err := manager.setAssetStatus(assetId, schema.AssetDown); err != nil {
		t.Fatal(err)
	}

	info, err = manager.assetInfo(assetId)
	if err != nil {
		t.Fatal(err)
	}
	if info.Status != schema.AssetDown {
		t.Fatalf("expected down status, got %v", info.Status)
	}
	if info.HealthScore == 100 {
		t.Fatal("down asset should be penalized in the health score")
	}
}

func TestRetireAsset(t *testing.T) {
	env := setupTestEnv(t)

	manager, err := env.newManager("mgr")
	if err != nil {
		t.Fatal(err)
	}

	assetId, err := manager.createAsset(map[string]interface{}{"name": "Old Press", "tag": "PR-001"})
	if err != nil {
		t.Fatal(err)
	}

	scheduleId, err := manager.createSchedule(map[string]interface{}{
		"asset_id": assetId, "title": "monthly check", "interval_days": 30,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := manager.retireAsset(assetId); err != nil {
		t.Fatal(err)
	}

	if err := manager.retireAsset(assetId); err == nil {
		t.Fatal("cannot retire twice")
	}

	info, err := manager.assetInfo(assetId)
	if err != nil {
		t.Fatal(err)
	}
	if info.Status != schema.AssetRetired || info.HealthScore != 0 || info.HealthBand != schema.HealthCritical {
		t.Fatalf("invalid retired asset %v", info)
	}

	schedules, err := manager.listSchedules("?asset_id=" + assetId)
	if err != nil {
		t.Fatal(err)
	}
	if len(schedules) != 1 || schedules[0].Id.String() != scheduleId || schedules[0].Active {
		t.Fatalf("retire should deactivate schedules, got %v", schedules)
	}

	_, err = manager.createWorkOrder(map[string]interface{}{"title": "fix press", "asset_id": assetId})
	if err == nil {
		t.Fatal("retired assets cannot accept new work")
	}
}

func TestMeterReadings(t *testing.T) {
	env := setupTestEnv(t)

	manager, err := env.newManager("mgr")
	if err != nil {
		t.Fatal(err)
	}
	tech, err := env.newUser("tech")
	if err != nil {
		t.Fatal(err)
	}

	assetId, err := manager.createAsset(map[string]interface{}{
		"name": "Compressor", "tag": "AC-001", "expected_life_hours": 1000.0,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := tech.addReading(assetId, 100); err != nil {
		t.Fatal(err)
	}
	if _, err := tech.addReading(assetId, 50); err == nil {
		t.Fatal("meter readings cannot go backwards")
	}
	if _, err := tech.addReading(assetId, 900); err != nil {
		t.Fatal(err)
	}

	// 90% of expected life is past the usage knee, score drops.
	res, err := tech.assetHealth(assetId)
	if err != nil {
		t.Fatal(err)
	}
	if res["usage_penalty"].(float64) <= 0 {
		t.Fatalf("expected usage penalty, got %v", res)
	}
	if res["score"].(float64) >= 100 {
		t.Fatalf("expected reduced score, got %v", res)
	}
}
