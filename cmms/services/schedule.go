package services

import (
	"errors"
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

type ScheduleService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *ScheduleService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/list", s.List)

	r.Group(func(r chi.Router) {
		r.Use(auth.ManagerOnly(s.db))

		r.Post("/create", s.CreateSchedule)

		r.Route("/{schedule_id}", func(r chi.Router) {
			r.Post("/update", s.UpdateSchedule)
			r.Post("/pause", s.PauseSchedule)
			r.Post("/resume", s.ResumeSchedule)
			r.Delete("/", s.DeleteSchedule)
		})
	})

	r.Get("/{schedule_id}", s.GetSchedule)

	return r
}

type createScheduleRequest struct {
	AssetId      uuid.UUID `json:"asset_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Priority     string    `json:"priority"`
	IntervalDays int       `json:"interval_days"`
	NextDueAt    time.Time `json:"next_due_at"`
}

type createScheduleResponse struct {
	ScheduleId uuid.UUID `json:"schedule_id"`
}

func (s *ScheduleService) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var params createScheduleRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Title == "" {
		http.Error(w, "schedule title must be specified", http.StatusBadRequest)
		return
	}
	if params.IntervalDays <= 0 {
		http.Error(w, "interval_days must be positive", http.StatusUnprocessableEntity)
		return
	}

	priority := params.Priority
	if priority == "" {
		priority = schema.PriorityMedium
	}
	if err := schema.CheckValidPriority(priority); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	nextDueAt := params.NextDueAt
	if nextDueAt.IsZero() {
		nextDueAt = time.Now().UTC().AddDate(0, 0, params.IntervalDays)
	}

	newSchedule := schema.MaintenanceSchedule{
		Id:           uuid.New(),
		AssetId:      params.AssetId,
		Title:        params.Title,
		Description:  params.Description,
		Priority:     priority,
		IntervalDays: params.IntervalDays,
		NextDueAt:    nextDueAt,
		Active:       true,
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		asset, err := getAssetForUpdate(txn, params.AssetId)
		if err != nil {
			return err
		}
		if err := checkAssetAcceptsWork(&asset); err != nil {
			return err
		}

		result := txn.Create(&newSchedule)
		if result.Error != nil {
			slog.Error("sql error creating maintenance schedule", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating schedule: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, createScheduleResponse{ScheduleId: newSchedule.Id})
}

type ScheduleInfo struct {
	Id              uuid.UUID  `json:"id"`
	AssetId         uuid.UUID  `json:"asset_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Priority        string     `json:"priority"`
	IntervalDays    int        `json:"interval_days"`
	LastGeneratedAt *time.Time `json:"last_generated_at"`
	NextDueAt       time.Time  `json:"next_due_at"`
	Active          bool       `json:"active"`
}

func convertToScheduleInfo(schedule *schema.MaintenanceSchedule) ScheduleInfo {
	return ScheduleInfo{
		Id:              schedule.Id,
		AssetId:         schedule.AssetId,
		Title:           schedule.Title,
		Description:     schedule.Description,
		Priority:        schedule.Priority,
		IntervalDays:    schedule.IntervalDays,
		LastGeneratedAt: schedule.LastGeneratedAt,
		NextDueAt:       schedule.NextDueAt,
		Active:          schedule.Active,
	}
}

func (s *ScheduleService) List(w http.ResponseWriter, r *http.Request) {
	query := s.db
	if assetId := r.URL.Query().Get("asset_id"); assetId != "" {
		id, err := uuid.Parse(assetId)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid asset_id: %v", err), http.StatusBadRequest)
			return
		}
		query = query.Where("asset_id = ?", id)
	}
	if r.URL.Query().Get("due") == "true" {
		query = query.Where("active = ? AND next_due_at <= ?", true, time.Now().UTC())
	}

	var schedules []schema.MaintenanceSchedule
	result := query.Order("next_due_at").Find(&schedules)
	if result.Error != nil {
		slog.Error("sql error listing maintenance schedules", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing schedules: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]ScheduleInfo, 0, len(schedules))
	for _, schedule := range schedules {
		infos = append(infos, convertToScheduleInfo(&schedule))
	}
	utils.WriteJsonResponse(w, infos)
}

func (s *ScheduleService) GetSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleId, err := utils.URLParamUUID(r, "schedule_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	schedule, err := schema.GetSchedule(scheduleId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrScheduleNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("error getting schedule: %v", err), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, convertToScheduleInfo(&schedule))
}

type updateScheduleRequest struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Priority     *string    `json:"priority"`
	IntervalDays *int       `json:"interval_days"`
	NextDueAt    *time.Time `json:"next_due_at"`
}

func (s *ScheduleService) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleId, err := utils.URLParamUUID(r, "schedule_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateScheduleRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	updates := map[string]interface{}{}
	if params.Title != nil {
		updates["title"] = *params.Title
	}
	if params.Description != nil {
		updates["description"] = *params.Description
	}
	if params.Priority != nil {
		if err := schema.CheckValidPriority(*params.Priority); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		updates["priority"] = *params.Priority
	}
	if params.IntervalDays != nil {
		if *params.IntervalDays <= 0 {
			http.Error(w, "interval_days must be positive", http.StatusUnprocessableEntity)
			return
		}
		updates["interval_days"] = *params.IntervalDays
	}
	if params.NextDueAt != nil {
		updates["next_due_at"] = *params.NextDueAt
	}

	if len(updates) == 0 {
		http.Error(w, "no fields to update", http.StatusBadRequest)
		return
	}

	err = s.updateSchedule(scheduleId, updates)
	if err != nil {
		http.Error(w, fmt.Sprintf("error updating schedule: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *ScheduleService) updateSchedule(scheduleId uuid.UUID, updates map[string]interface{}) error {
	return s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetSchedule(scheduleId, txn); err != nil {
			if errors.Is(err, schema.ErrScheduleNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		result := txn.Model(&schema.MaintenanceSchedule{Id: scheduleId}).Updates(updates)
		if result.Error != nil {
			slog.Error("sql error updating maintenance schedule", "schedule_id", scheduleId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})
}

func (s *ScheduleService) PauseSchedule(w http.ResponseWriter, r *http.Request) {
	s.setActive(w, r, false)
}

func (s *ScheduleService) ResumeSchedule(w http.ResponseWriter, r *http.Request) {
	s.setActive(w, r, true)
}

func (s *ScheduleService) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	scheduleId, err := utils.URLParamUUID(r, "schedule_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.updateSchedule(scheduleId, map[string]interface{}{"active": active}); err != nil {
		http.Error(w, fmt.Sprintf("error updating schedule: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

// DeleteSchedule removes the schedule but keeps any work orders it generated.
// Their schedule_id is nulled so history survives.
func (s *ScheduleService) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleId, err := utils.URLParamUUID(r, "schedule_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetSchedule(scheduleId, txn); err != nil {
			if errors.Is(err, schema.ErrScheduleNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		result := txn.Model(&schema.WorkOrder{}).Where("schedule_id = ?", scheduleId).Update("schedule_id", nil)
		if result.Error != nil {
			slog.Error("sql error detaching schedule work orders", "schedule_id", scheduleId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Delete(&schema.MaintenanceSchedule{Id: scheduleId})
		if result.Error != nil {
			slog.Error("sql error deleting maintenance schedule", "schedule_id", scheduleId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting schedule: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}
