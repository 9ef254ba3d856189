package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"chatterfix/cmms/auth"
	"chatterfix/cmms/health"
	"chatterfix/cmms/schema"
	"chatterfix/cmms/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AssetService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
	policy   health.Policy
}

func (s *AssetService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/list", s.List)

	r.Group(func(r chi.Router) {
		r.Use(auth.ManagerOnly(s.db))

		r.Post("/create", s.CreateAsset)
	})

	r.Route("/{asset_id}", func(r chi.Router) {
		r.Get("/", s.GetAsset)
		r.Get("/readings", s.ListReadings)
		r.Get("/health", s.Health)

		r.Post("/readings", s.AddReading)

		r.Group(func(r chi.Router) {
			r.Use(auth.ManagerOnly(s.db))

			r.Post("/update", s.UpdateAsset)
			r.Post("/status", s.SetStatus)
			r.Post("/retire", s.RetireAsset)
		})
	})

	return r
}

type createAssetRequest struct {
	Name              string    `json:"name"`
	Tag               string    `json:"tag"`
	Category          string    `json:"category"`
	Location          string    `json:"location"`
	Criticality       string    `json:"criticality"`
	CommissionedAt    time.Time `json:"commissioned_at"`
	ExpectedLifeHours float64   `json:"expected_life_hours"`
}

type createAssetResponse struct {
	AssetId uuid.UUID `json:"asset_id"`
}

func (s *AssetService) CreateAsset(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params createAssetRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Name == "" || params.Tag == "" {
		http.Error(w, "asset name and tag must be specified", http.StatusBadRequest)
		return
	}

	criticality := params.Criticality
	if criticality == "" {
		criticality = schema.CriticalityMedium
	}
	if err := schema.CheckValidCriticality(criticality); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	newAsset := schema.Asset{
		Id:                uuid.New(),
		Name:              params.Name,
		Tag:               params.Tag,
		Category:          params.Category,
		Location:          params.Location,
		Status:            schema.AssetActive,
		Criticality:       criticality,
		CommissionedAt:    params.CommissionedAt,
		ExpectedLifeHours: params.ExpectedLifeHours,
		HealthScore:       100,
		HealthBand:        schema.HealthGood,
		UserId:            user.Id,
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		var existing schema.Asset
		result := txn.Limit(1).Find(&existing, "tag = ?", params.Tag)
		if result.Error != nil {
			slog.Error("sql error checking for duplicate asset tag", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(fmt.Errorf("asset with tag %v already exists", params.Tag), http.StatusConflict)
		}

		result = txn.Create(&newAsset)
		if result.Error != nil {
			slog.Error("sql error creating new asset", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating asset: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("created asset", "asset_id", newAsset.Id, "tag", newAsset.Tag)

	utils.WriteJsonResponse(w, createAssetResponse{AssetId: newAsset.Id})
}

type AssetInfo struct {
	Id                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Tag               string    `json:"tag"`
	Category          string    `json:"category"`
	Location          string    `json:"location"`
	Status            string    `json:"status"`
	Criticality       string    `json:"criticality"`
	CommissionedAt    time.Time `json:"commissioned_at"`
	ExpectedLifeHours float64   `json:"expected_life_hours"`
	HealthScore       float64   `json:"health_score"`
	HealthBand        string    `json:"health_band"`
}

func convertToAssetInfo(asset *schema.Asset) AssetInfo {
	return AssetInfo{
		Id:                asset.Id,
		Name:              asset.Name,
		Tag:               asset.Tag,
		Category:          asset.Category,
		Location:          asset.Location,
		Status:            asset.Status,
		Criticality:       asset.Criticality,
		CommissionedAt:    asset.CommissionedAt,
		ExpectedLifeHours: asset.ExpectedLifeHours,
		HealthScore:       asset.HealthScore,
		HealthBand:        asset.HealthBand,
	}
}

func (s *AssetService) List(w http.ResponseWriter, r *http.Request) {
	query := s.db
	if status := r.URL.Query().Get("status"); status != "" {
		if err := schema.CheckValidAssetStatus(status); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		query = query.Where("status = ?", status)
	}
	if category := r.URL.Query().Get("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if location := r.URL.Query().Get("location"); location != "" {
		query = query.Where("location = ?", location)
	}

	var assets []schema.Asset
	result := query.Order("name").Find(&assets)
	if result.Error != nil {
		slog.Error("sql error listing assets", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing assets: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]AssetInfo, 0, len(assets))
	for _, asset := range assets {
		infos = append(infos, convertToAssetInfo(&asset))
	}
	utils.WriteJsonResponse(w, infos)
}

func (s *AssetService) GetAsset(w http.ResponseWriter, r *http.Request) {
	assetId, err := utils.URLParamUUID(r, "asset_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	asset, err := schema.GetAsset(assetId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrAssetNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("error getting asset: %v", err), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, convertToAssetInfo(&asset))
}

type updateAssetRequest struct {
	Name              *string  `json:"name"`
	Category          *string  `json:"category"`
	Location          *string  `json:"location"`
	Criticality       *string  `json:"criticality"`
	ExpectedLifeHours *float64 `json:"expected_life_hours"`
}

func (s *AssetService) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	assetId, err := utils.URLParamUUID(r, "asset_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateAssetRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	updates := map[string]interface{}{}
	if params.Name != nil {
		updates["name"] = *params.Name
	}
	if params.Category != nil {
		updates["category"] = *params.Category
	}
	if params.Location != nil {
		updates["location"] = *params.Location
	}
	if params.Criticality != nil {
		if err := schema.CheckValidCriticality(*params.Criticality); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		updates["criticality"] = *params.Criticality
	}
	if params.ExpectedLifeHours != nil {
		updates["expected_life_hours"] = *params.ExpectedLifeHours
	}

	if len(updates) == 0 {
		http.Error(w, "no fields to update", http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := getAssetForUpdate(txn, assetId); err != nil {
			return err
		}

		result := txn.Model(&schema.Asset{Id: assetId}).Updates(updates)
		if result.Error != nil {
			slog.Error("sql error updating asset", "asset_id", assetId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating asset: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

type setAssetStatusRequest struct {
	Status string `json:"status"`
}

func (s *AssetService) SetStatus(w http.ResponseWriter, r *http.Request) {
	assetId, err := utils.URLParamUUID(r, "asset_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params setAssetStatusRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := schema.CheckValidAssetStatus(params.Status); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if params.Status == schema.AssetRetired {
		http.Error(w, "use the retire endpoint to retire an asset", http.StatusUnprocessableEntity)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		asset, err := getAssetForUpdate(txn, assetId)
		if err != nil {
			return err
		}

		if asset.Status == schema.AssetRetired {
			return CodedError(fmt.Errorf("asset %v is retired", assetId), http.StatusUnprocessableEntity)
		}

		result := txn.Model(&schema.Asset{Id: assetId}).Update("status", params.Status)
		if result.Error != nil {
			slog.Error("sql error updating asset status", "asset_id", assetId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating asset status: %v", err), GetResponseCode(err))
		return
	}

	// Down/up transitions change the health picture immediately.
	if _, err := health.Rescore(s.db, assetId, s.policy, time.Now().UTC()); err != nil {
		slog.Error("error rescoring asset after status change", "asset_id", assetId, "error", err)
	}

	utils.WriteSuccess(w)
}

// RetireAsset marks the asset retired and deactivates its maintenance
// schedules. Open work orders are left untouched so in-flight work can finish.
func (s *AssetService) RetireAsset(w http.ResponseWriter, r *http.Request) {
	assetId, err := utils.URLParamUUID(r, "asset_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		asset, err := getAssetForUpdate(txn, assetId)
		if err != nil {
			return err
		}

		if asset.Status == schema.AssetRetired {
			return CodedError(fmt.Errorf("asset %v is already retired", assetId), http.StatusUnprocessableEntity)
		}

		result := txn.Model(&schema.Asset{Id: assetId}).
			Updates(map[string]interface{}{
				"status":       schema.AssetRetired,
				"health_score": 0,
				"health_band":  schema.HealthCritical,
			})
		if result.Error != nil {
			slog.Error("sql error retiring asset", "asset_id", assetId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Model(&schema.MaintenanceSchedule{}).Where("asset_id = ?", assetId).Update("active", false)
		if result.Error != nil {
			slog.Error("sql error deactivating schedules for retired asset", "asset_id", assetId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error retiring asset: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("retired asset", "asset_id", assetId)

	utils.WriteSuccess(w)
}

type addReadingRequest struct {
	Reading    float64    `json:"reading"`
	RecordedAt *time.Time `json:"recorded_at"`
}

type addReadingResponse struct {
	ReadingId uuid.UUID `json:"reading_id"`
}

func (s *AssetService) AddReading(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	assetId, err := utils.URLParamUUID(r, "asset_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params addReadingRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	recordedAt := time.Now().UTC()
	if params.RecordedAt != nil {
		recordedAt = params.RecordedAt.UTC()
	}

	newReading := schema.MeterReading{
		Id:         uuid.New(),
		AssetId:    assetId,
		Reading:    params.Reading,
		RecordedAt: recordedAt,
		UserId:     user.Id,
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		asset, err := getAssetForUpdate(txn, assetId)
		if err != nil {
			return err
		}
		if err := checkAssetAcceptsWork(&asset); err != nil {
			return err
		}

		var latest schema.MeterReading
		result := txn.Where("asset_id = ?", assetId).Order("recorded_at DESC").Limit(1).Find(&latest)
		if result.Error != nil {
			slog.Error("sql error loading latest meter reading", "asset_id", assetId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected > 0 && params.Reading < latest.Reading {
			return CodedError(
				fmt.Errorf("meter reading %v is below the latest reading %v for asset %v", params.Reading, latest.Reading, assetId),
				http.StatusUnprocessableEntity,
			)
		}

		result = txn.Create(&newReading)
		if result.Error != nil {
			slog.Error("sql error creating meter reading", "asset_id", assetId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error adding meter reading: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, addReadingResponse{ReadingId: newReading.Id})
}

type MeterReadingInfo struct {
	Id         uuid.UUID `json:"id"`
	Reading    float64   `json:"reading"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (s *AssetService) ListReadings(w http.ResponseWriter, r *http.Request) {
	assetId, err := utils.URLParamUUID(r, "asset_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var readings []schema.MeterReading
	result := s.db.Where("asset_id = ?", assetId).Order("recorded_at DESC").Find(&readings)
	if result.Error != nil {
		slog.Error("sql error listing meter readings", "asset_id", assetId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing meter readings: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]MeterReadingInfo, 0, len(readings))
	for _, reading := range readings {
		infos = append(infos, MeterReadingInfo{Id: reading.Id, Reading: reading.Reading, RecordedAt: reading.RecordedAt})
	}
	utils.WriteJsonResponse(w, infos)
}

type assetHealthResponse struct {
	Score             float64 `json:"score"`
	Band              string  `json:"band"`
	CorrectivePenalty float64 `json:"corrective_penalty"`
	OverduePenalty    float64 `json:"overdue_penalty"`
	CriticalPenalty   float64 `json:"critical_penalty"`
	UsagePenalty      float64 `json:"usage_penalty"`
	StatusPenalty     float64 `json:"status_penalty"`
}

// Health recomputes the score on demand and returns the penalty breakdown so
// the UI can explain the number.
func (s *AssetService) Health(w http.ResponseWriter, r *http.Request) {
	assetId, err := utils.URLParamUUID(r, "asset_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := health.Rescore(s.db, assetId, s.policy, time.Now().UTC())
	if err != nil {
		if errors.Is(err, schema.ErrAssetNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("error computing asset health: %v", err), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, assetHealthResponse{
		Score:             res.Score,
		Band:              res.Band,
		CorrectivePenalty: res.CorrectivePenalty,
		OverduePenalty:    res.OverduePenalty,
		CriticalPenalty:   res.CriticalPenalty,
		UsagePenalty:      res.UsagePenalty,
		StatusPenalty:     res.StatusPenalty,
	})
}
