package services

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"chatterfix/cmms/auth"
	"chatterfix/cmms/schema"
	"chatterfix/cmms/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReportService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *ReportService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/dashboard", s.Dashboard)

	return r
}

type dashboardAssetInfo struct {
	Id          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Tag         string    `json:"tag"`
	HealthScore float64   `json:"health_score"`
	HealthBand  string    `json:"health_band"`
}

type dashboardResponse struct {
	WorkOrdersByStatus   map[string]int       `json:"work_orders_by_status"`
	WorkOrdersByPriority map[string]int       `json:"work_orders_by_priority"`
	AssetsByBand         map[string]int       `json:"assets_by_band"`
	WorstAssets          []dashboardAssetInfo `json:"worst_assets"`
	AssetsDown           int                  `json:"assets_down"`
	OverdueWorkOrders    int                  `json:"overdue_work_orders"`
	LowStockParts        int                  `json:"low_stock_parts"`
	SchedulesDue         int                  `json:"schedules_due"`
	CompletedLastWeek    int                  `json:"completed_last_week"`
}

func (s *ReportService) Dashboard(w http.ResponseWriter, r *http.Request) {
	resp := dashboardResponse{
		WorkOrdersByStatus:   map[string]int{},
		WorkOrdersByPriority: map[string]int{},
		AssetsByBand:         map[string]int{},
	}

	type groupCount struct {
		Key   string
		Count int
	}

	var statusCounts []groupCount
	result := s.db.Model(&schema.WorkOrder{}).
		Select("status as key, count(*) as count").Group("status").Scan(&statusCounts)
	if result.Error != nil {
		slog.Error("sql error counting work orders by status", "error", result.Error)
		http.Error(w, fmt.Sprintf("error building dashboard: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}
	for _, c := range statusCounts {
		resp.WorkOrdersByStatus[c.Key] = c.Count
	}

	var priorityCounts []groupCount
	result = s.db.Model(&schema.WorkOrder{}).
		Select("priority as key, count(*) as count").Group("priority").Scan(&priorityCounts)
	if result.Error != nil {
		slog.Error("sql error counting work orders by priority", "error", result.Error)
		http.Error(w, fmt.Sprintf("error building dashboard: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}
	for _, c := range priorityCounts {
		resp.WorkOrdersByPriority[c.Key] = c.Count
	}

	var bandCounts []groupCount
	result = s.db.Model(&schema.Asset{}).
		Select("health_band as key, count(*) as count").
		Where("status <> ?", schema.AssetRetired).
		Group("health_band").Scan(&bandCounts)
	if result.Error != nil {
		slog.Error("sql error counting assets by health band", "error", result.Error)
		http.Error(w, fmt.Sprintf("error building dashboard: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}
	for _, c := range bandCounts {
		resp.AssetsByBand[c.Key] = c.Count
	}

	now := time.Now().UTC()

	counts := []struct {
		dest  *int
		query *gorm.DB
	}{
		{&resp.AssetsDown, s.db.Model(&schema.Asset{}).Where("status = ?", schema.AssetDown)},
		{&resp.OverdueWorkOrders, s.db.Model(&schema.WorkOrder{}).
			Where("due_date < ? AND status NOT IN ?", now, []string{schema.WorkOrderCompleted, schema.WorkOrderCancelled})},
		{&resp.LowStockParts, s.db.Model(&schema.Part{}).Where("quantity <= min_quantity")},
		{&resp.SchedulesDue, s.db.Model(&schema.MaintenanceSchedule{}).
			Where("active = ? AND next_due_at <= ?", true, now.AddDate(0, 0, 7))},
		{&resp.CompletedLastWeek, s.db.Model(&schema.WorkOrder{}).
			Where("status = ? AND completed_at >= ?", schema.WorkOrderCompleted, now.AddDate(0, 0, -7))},
	}

	for _, c := range counts {
		var n int64
		if result := c.query.Count(&n); result.Error != nil {
			slog.Error("sql error computing dashboard count", "error", result.Error)
			http.Error(w, fmt.Sprintf("error building dashboard: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
			return
		}
		*c.dest = int(n)
	}

	var worstAssets []schema.Asset
	result = s.db.Where("status <> ?", schema.AssetRetired).
		Order("health_score").Limit(5).Find(&worstAssets)
	if result.Error != nil {
		slog.Error("sql error listing worst health assets", "error", result.Error)
		http.Error(w, fmt.Sprintf("error building dashboard: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}
	resp.WorstAssets = make([]dashboardAssetInfo, 0, len(worstAssets))
	for _, asset := range worstAssets {
		resp.WorstAssets = append(resp.WorstAssets, dashboardAssetInfo{
			Id: asset.Id, Name: asset.Name, Tag: asset.Tag,
			HealthScore: asset.HealthScore, HealthBand: asset.HealthBand,
		})
	}

	utils.WriteJsonResponse(w, resp)
}
