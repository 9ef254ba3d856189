package tests

import (
	"testing"
)

func TestCreateAndListParts(t *testing.T) {
	env := setupTestEnv(t)

	manager, err := env.newManager("mgr")
	if err != nil {
		t.Fatal(err)
	}
	tech, err := env.newUser("tech")
	if err != nil {
		t.Fatal(err)
	}

	_, err = tech.createPart(map[string]interface{}{"name": "Belt", "sku": "BELT-1"})
	if err == nil {
		t.Fatal("technicians cannot create parts")
	}

	_, err = manager.createPart(map[string]interface{}{"name": "Belt"})
	if err == nil {
		t.Fatal("sku is required")
	}

	beltId, err := manager.createPart(map[string]interface{}{
		"name": "Belt", "sku": "BELT-1", "quantity": 10, "min_quantity": 3, "unit_cost": 12.5,
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = manager.createPart(map[string]interface{}{"name": "Belt 2", "sku": "BELT-1"})
	if err == nil {
		t.Fatal("duplicate sku should fail")
	}

	_, err = manager.createPart(map[string]interface{}{
		"name": "Filter", "sku": "FILT-1", "quantity": 1, "min_quantity": 5,
	})
	if err != nil {
		t.Fatal(err)
	}

	parts, err := tech.listParts("")
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}

	lowStock, err := tech.listParts("?low_stock=true")
	if err != nil {
		t.Fatal(err)
	}
	if len(lowStock) != 1 || lowStock[0].Sku != "FILT-1" {
		t.Fatalf("low stock filter returned wrong parts: %v", lowStock)
	}

	info, err := tech.partInfo(beltId)
	if err != nil {
		t.Fatal(err)
	}
	if info.Quantity != 10 || info.UnitCost != 12.5 || info.LowStock {
		t.Fatalf("invalid part info %v", info)
	}
}

func TestAdjustStock(t *testing.T) {
	env := setupTestEnv(t)

	manager, err := env.newManager("mgr")
	if err != nil {
		t.Fatal(err)
	}
	tech, err := env.newUser("tech")
	if err != nil {
		t.Fatal(err)
	}

	partId, err := manager.createPart(map[string]interface{}{
		"name": "Bearing", "sku": "BRG-1", "quantity": 4,
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = tech.adjustStock(partId, 10, "received shipment")
	if err == nil {
		t.Fatal("technicians cannot adjust stock")
	}

	_, err = manager.adjustStock(partId, 10, "")
	if err == nil {
		t.Fatal("reason is required")
	}

	quantity, err := manager.adjustStock(partId, 10, "received shipment")
	if err != nil {
		t.Fatal(err)
	}
	if quantity != 14 {
		t.Fatalf("expected 14 after receiving, got %d", quantity)
	}

	_, err = manager.adjustStock(partId, -20, "physical count")
	if err == nil {
		t.Fatal("stock cannot go negative")
	}

	quantity, err = manager.adjustStock(partId, -14, "physical count")
	if err != nil {
		t.Fatal(err)
	}
	if quantity != 0 {
		t.Fatalf("expected 0 after reconcile, got %d", quantity)
	}

	adjustments, err := manager.listAdjustments(partId)
	if err != nil {
		t.Fatal(err)
	}
	// Initial stock entry plus two manual adjustments.
	if len(adjustments) != 3 {
		t.Fatalf("expected 3 adjustments, got %d", len(adjustments))
	}
}

func TestDeletePart(t *testing.T) {
	env := setupTestEnv(t)

	manager, err := env.newManager("mgr")
	if err != nil {
		t.Fatal(err)
	}

	assetId, err := manager.createAsset(map[string]interface{}{"name": "Pump", "tag": "P-001"})
	if err != nil {
		t.Fatal(err)
	}

	usedId, err := manager.createPart(map[string]interface{}{
		"name": "Seal", "sku": "SEAL-1", "quantity": 5,
	})
	if err != nil {
		t.Fatal(err)
	}
	unusedId, err := manager.createPart(map[string]interface{}{
		"name": "Gasket", "sku": "GSKT-1", "quantity": 5,
	})
	if err != nil {
		t.Fatal(err)
	}

	workOrderId, err := manager.createWorkOrder(map[string]interface{}{
		"title": "replace seal", "asset_id": assetId,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := manager.consumeParts(workOrderId, usedId, 1); err != nil {
		t.Fatal(err)
	}

	if err := manager.deletePart(usedId); err == nil {
		t.Fatal("parts referenced by work orders cannot be deleted")
	}

	if err := manager.deletePart(unusedId); err != nil {
		t.Fatal(err)
	}

	parts, err := manager.listParts("")
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 1 || parts[0].Id.String() != usedId {
		t.Fatalf("expected only the used part to remain, got %v", parts)
	}
}
