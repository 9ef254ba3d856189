package schema

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrTeamNotFound      = errors.New("team not found")
	ErrUserTeamNotFound  = errors.New("user team relationship not found")
	ErrAssetNotFound     = errors.New("asset not found")
	ErrWorkOrderNotFound = errors.New("work order not found")
	ErrPartNotFound      = errors.New("part not found")
	ErrScheduleNotFound  = errors.New("maintenance schedule not found")
	ErrDbAccessFailed    = errors.New("db access failed")
)

func GetUser(userId uuid.UUID, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user", "user_id", userId, "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func GetTeam(teamId uuid.UUID, db *gorm.DB) (Team, error) {
	var team Team

	result := db.First(&team, "id = ?", teamId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return team, ErrTeamNotFound
		}
		slog.Error("sql error in get team", "team_id", teamId, "error", result.Error)
		return team, ErrDbAccessFailed
	}

	return team, nil
}

func GetUserTeam(teamId, userId uuid.UUID, db *gorm.DB) (UserTeam, error) {
	var team UserTeam
	result := db.First(&team, "team_id = ? and user_id = ?", teamId, userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return team, ErrUserTeamNotFound
		}
		slog.Error("sql error in get user team", "team_id", teamId, "user_id", userId, "error", result.Error)
		return team, ErrDbAccessFailed
	}

	return team, nil
}

func GetAsset(assetId uuid.UUID, db *gorm.DB) (Asset, error) {
	var asset Asset

	result := db.First(&asset, "id = ?", assetId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return asset, ErrAssetNotFound
		}
		slog.Error("sql error in get asset", "asset_id", assetId, "error", result.Error)
		return asset, ErrDbAccessFailed
	}

	return asset, nil
}

func GetWorkOrder(workOrderId uuid.UUID, db *gorm.DB, loadNotes, loadParts bool) (WorkOrder, error) {
	var workOrder WorkOrder

	query := db
	if loadNotes {
		query = query.Preload("Notes").Preload("Notes.User")
	}
	if loadParts {
		query = query.Preload("Parts").Preload("Parts.Part")
	}
	result := query.First(&workOrder, "id = ?", workOrderId)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return workOrder, ErrWorkOrderNotFound
		}
		slog.Error("sql error in get work order", "work_order_id", workOrderId, "error", result.Error)
		return workOrder, ErrDbAccessFailed
	}

	return workOrder, nil
}

func GetPart(partId uuid.UUID, db *gorm.DB) (Part, error) {
	var part Part

	result := db.First(&part, "id = ?", partId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return part, ErrPartNotFound
		}
		slog.Error("sql error in get part", "part_id", partId, "error", result.Error)
		return part, ErrDbAccessFailed
	}

	return part, nil
}

func GetSchedule(scheduleId uuid.UUID, db *gorm.DB) (MaintenanceSchedule, error) {
	var schedule MaintenanceSchedule

	result := db.First(&schedule, "id = ?", scheduleId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return schedule, ErrScheduleNotFound
		}
		slog.Error("sql error in get schedule", "schedule_id", scheduleId, "error", result.Error)
		return schedule, ErrDbAccessFailed
	}

	return schedule, nil
}

func CheckValidWorkOrderStatus(status string) error {
	switch status {
	case WorkOrderOpen, WorkOrderAssigned, WorkOrderInProgress, WorkOrderOnHold, WorkOrderCompleted, WorkOrderCancelled:
		return nil
	}
	return fmt.Errorf("invalid work order status '%v'", status)
}

func CheckValidPriority(priority string) error {
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return nil
	}
	return fmt.Errorf("invalid priority '%v'", priority)
}

func CheckValidWorkOrderType(workOrderType string) error {
	switch workOrderType {
	case TypeCorrective, TypePreventive, TypeInspection:
		return nil
	}
	return fmt.Errorf("invalid work order type '%v'", workOrderType)
}

func CheckValidAssetStatus(status string) error {
	switch status {
	case AssetActive, AssetDown, AssetRetired:
		return nil
	}
	return fmt.Errorf("invalid asset status '%v'", status)
}

func CheckValidCriticality(criticality string) error {
	switch criticality {
	case CriticalityLow, CriticalityMedium, CriticalityHigh:
		return nil
	}
	return fmt.Errorf("invalid criticality '%v'", criticality)
}

func CheckValidRole(role string) error {
	switch role {
	case RoleAdmin, RoleManager, RoleTechnician:
		return nil
	}
	return fmt.Errorf("invalid role '%v'", role)
}

// ValidNextStatus encodes the work order lifecycle. Completed and cancelled are
// terminal, on_hold can resume to in_progress, and cancellation is allowed from
// any non-terminal state.
func ValidNextStatus(current, next string) bool {
	if current == next {
		return true
	}
	switch current {
	case WorkOrderOpen:
		return next == WorkOrderAssigned || next == WorkOrderInProgress || next == WorkOrderCancelled
	case WorkOrderAssigned:
		return next == WorkOrderInProgress || next == WorkOrderOpen || next == WorkOrderCancelled
	case WorkOrderInProgress:
		return next == WorkOrderOnHold || next == WorkOrderCompleted || next == WorkOrderCancelled
	case WorkOrderOnHold:
		return next == WorkOrderInProgress || next == WorkOrderCancelled
	}
	return false
}
