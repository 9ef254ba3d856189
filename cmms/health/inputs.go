package health

import (
	"fmt"
	"log/slog"
	"time"

	"chatterfix/cmms/schema"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CollectInputs queries the risk signals for one asset. Callers pass the asset
// row they already hold to avoid a redundant lookup.
func CollectInputs(db *gorm.DB, asset *schema.Asset, policy Policy, now time.Time) (Inputs, error) {
	inputs := Inputs{AssetStatus: asset.Status}

	windowStart := now.AddDate(0, 0, -policy.CorrectiveWindowDays)

	var correctiveCount int64
	result := db.Model(&schema.WorkOrder{}).
		Where("asset_id = ? AND type = ? AND created_at >= ?", asset.Id, schema.TypeCorrective, windowStart).
		Count(&correctiveCount)
	if result.Error != nil {
		slog.Error("sql error counting corrective work orders", "asset_id", asset.Id, "error", result.Error)
		return inputs, schema.ErrDbAccessFailed
	}
	inputs.CorrectiveCount = int(correctiveCount)

	var overdueCount int64
	result = db.Model(&schema.MaintenanceSchedule{}).
		Where("asset_id = ? AND active = ? AND next_due_at <= ?", asset.Id, true, now).
		Count(&overdueCount)
	if result.Error != nil {
		slog.Error("sql error counting overdue schedules", "asset_id", asset.Id, "error", result.Error)
		return inputs, schema.ErrDbAccessFailed
	}
	inputs.OverduePM = int(overdueCount)

	var criticalCount int64
	result = db.Model(&schema.WorkOrder{}).
		Where("asset_id = ? AND priority = ? AND status NOT IN ?",
			asset.Id, schema.PriorityCritical, []string{schema.WorkOrderCompleted, schema.WorkOrderCancelled}).
		Count(&criticalCount)
	if result.Error != nil {
		slog.Error("sql error counting open critical work orders", "asset_id", asset.Id, "error", result.Error)
		return inputs, schema.ErrDbAccessFailed
	}
	inputs.OpenCritical = int(criticalCount)

	if asset.ExpectedLifeHours > 0 {
		var latest schema.MeterReading
		result = db.Where("asset_id = ?", asset.Id).Order("recorded_at DESC").Limit(1).Find(&latest)
		if result.Error != nil {
			slog.Error("sql error loading latest meter reading", "asset_id", asset.Id, "error", result.Error)
			return inputs, schema.ErrDbAccessFailed
		}
		if result.RowsAffected > 0 {
			inputs.UsageRatio = latest.Reading / asset.ExpectedLifeHours
		}
	}

	return inputs, nil
}

// Rescore recomputes and persists the health score for a single asset.
func Rescore(db *gorm.DB, assetId uuid.UUID, policy Policy, now time.Time) (Result, error) {
	var res Result

	err := db.Transaction(func(txn *gorm.DB) error {
		asset, err := schema.GetAsset(assetId, txn)
		if err != nil {
			return err
		}

		inputs, err := CollectInputs(txn, &asset, policy, now)
		if err != nil {
			return err
		}

		res = Score(inputs, policy)

		result := txn.Model(&schema.Asset{Id: asset.Id}).
			Updates(map[string]interface{}{"health_score": res.Score, "health_band": res.Band})
		if result.Error != nil {
			slog.Error("sql error updating asset health score", "asset_id", asset.Id, "error", result.Error)
			return schema.ErrDbAccessFailed
		}

		return nil
	})

	if err != nil {
		return Result{}, fmt.Errorf("error rescoring asset %v: %w", assetId, err)
	}

	return res, nil
}

// RescoreAll recomputes health for every non-retired asset. Used by the
// background scheduler; failures on individual assets are logged and skipped so
// one bad row does not stall the sweep.
func RescoreAll(db *gorm.DB, policy Policy, now time.Time) {
	var assets []schema.Asset
	result := db.Where("status <> ?", schema.AssetRetired).Find(&assets)
	if result.Error != nil {
		slog.Error("sql error listing assets for health rescore", "error", result.Error)
		return
	}

	for _, asset := range assets {
		if _, err := Rescore(db, asset.Id, policy, now); err != nil {
			slog.Error("error rescoring asset", "asset_id", asset.Id, "error", err)
		}
	}
}
