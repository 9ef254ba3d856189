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

type PartService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *PartService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/list", s.List)

	r.Group(func(r chi.Router) {
		r.Use(auth.ManagerOnly(s.db))

		r.Post("/create", s.CreatePart)
	})

	r.Route("/{part_id}", func(r chi.Router) {
		r.Get("/", s.GetPart)
		r.Get("/adjustments", s.ListAdjustments)

		r.Group(func(r chi.Router) {
			r.Use(auth.ManagerOnly(s.db))

			r.Post("/update", s.UpdatePart)
			r.Post("/adjust", s.AdjustStock)
			r.Delete("/", s.DeletePart)
		})
	})

	return r
}

type createPartRequest struct {
	Name        string  `json:"name"`
	Sku         string  `json:"sku"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	MinQuantity int     `json:"min_quantity"`
	UnitCost    float64 `json:"unit_cost"`
	Location    string  `json:"location"`
}

type createPartResponse struct {
	PartId uuid.UUID `json:"part_id"`
}

func (s *PartService) CreatePart(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params createPartRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Name == "" || params.Sku == "" {
		http.Error(w, "part name and sku must be specified", http.StatusBadRequest)
		return
	}
	if params.Quantity < 0 || params.MinQuantity < 0 {
		http.Error(w, "part quantities cannot be negative", http.StatusUnprocessableEntity)
		return
	}

	newPart := schema.Part{
		Id:          uuid.New(),
		Name:        params.Name,
		Sku:         params.Sku,
		Description: params.Description,
		Quantity:    params.Quantity,
		MinQuantity: params.MinQuantity,
		UnitCost:    params.UnitCost,
		Location:    params.Location,
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		var existing schema.Part
		result := txn.Limit(1).Find(&existing, "sku = ?", params.Sku)
		if result.Error != nil {
			slog.Error("sql error checking for duplicate part sku", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(fmt.Errorf("part with sku %v already exists", params.Sku), http.StatusConflict)
		}

		result = txn.Create(&newPart)
		if result.Error != nil {
			slog.Error("sql error creating new part", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		if params.Quantity > 0 {
			adjustment := schema.StockAdjustment{
				Id:     uuid.New(),
				PartId: newPart.Id,
				Delta:  params.Quantity,
				Reason: "initial stock",
				UserId: user.Id,
			}
			result = txn.Create(&adjustment)
			if result.Error != nil {
				slog.Error("sql error journaling initial stock", "part_id", newPart.Id, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating part: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, createPartResponse{PartId: newPart.Id})
}

type PartInfo struct {
	Id          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Sku         string    `json:"sku"`
	Description string    `json:"description"`
	Quantity    int       `json:"quantity"`
	MinQuantity int       `json:"min_quantity"`
	UnitCost    float64   `json:"unit_cost"`
	Location    string    `json:"location"`
	LowStock    bool      `json:"low_stock"`
}

func convertToPartInfo(part *schema.Part) PartInfo {
	return PartInfo{
		Id:          part.Id,
		Name:        part.Name,
		Sku:         part.Sku,
		Description: part.Description,
		Quantity:    part.Quantity,
		MinQuantity: part.MinQuantity,
		UnitCost:    part.UnitCost,
		Location:    part.Location,
		LowStock:    part.Quantity <= part.MinQuantity,
	}
}

func (s *PartService) List(w http.ResponseWriter, r *http.Request) {
	query := s.db
	if r.URL.Query().Get("low_stock") == "true" {
		query = query.Where("quantity <= min_quantity")
	}

	var parts []schema.Part
	result := query.Order("name").Find(&parts)
	if result.Error != nil {
		slog.Error("sql error listing parts", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing parts: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]PartInfo, 0, len(parts))
	for _, part := range parts {
		infos = append(infos, convertToPartInfo(&part))
	}
	utils.WriteJsonResponse(w, infos)
}

func (s *PartService) GetPart(w http.ResponseWriter, r *http.Request) {
	partId, err := utils.URLParamUUID(r, "part_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	part, err := schema.GetPart(partId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrPartNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("error getting part: %v", err), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, convertToPartInfo(&part))
}

type updatePartRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	MinQuantity *int     `json:"min_quantity"`
	UnitCost    *float64 `json:"unit_cost"`
	Location    *string  `json:"location"`
}

func (s *PartService) UpdatePart(w http.ResponseWriter, r *http.Request) {
	partId, err := utils.URLParamUUID(r, "part_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updatePartRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	updates := map[string]interface{}{}
	if params.Name != nil {
		updates["name"] = *params.Name
	}
	if params.Description != nil {
		updates["description"] = *params.Description
	}
	if params.MinQuantity != nil {
		if *params.MinQuantity < 0 {
			http.Error(w, "min_quantity cannot be negative", http.StatusUnprocessableEntity)
			return
		}
		updates["min_quantity"] = *params.MinQuantity
	}
	if params.UnitCost != nil {
		updates["unit_cost"] = *params.UnitCost
	}
	if params.Location != nil {
		updates["location"] = *params.Location
	}

	if len(updates) == 0 {
		http.Error(w, "no fields to update", http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetPart(partId, txn); err != nil {
			if errors.Is(err, schema.ErrPartNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		result := txn.Model(&schema.Part{Id: partId}).Updates(updates)
		if result.Error != nil {
			slog.Error("sql error updating part", "part_id", partId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating part: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

type adjustStockRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

type adjustStockResponse struct {
	Quantity int `json:"quantity"`
}

// AdjustStock applies a manual stock correction, e.g. receiving a shipment or
// reconciling after a physical count.
func (s *PartService) AdjustStock(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	partId, err := utils.URLParamUUID(r, "part_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params adjustStockRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Delta == 0 {
		http.Error(w, "delta must be nonzero", http.StatusBadRequest)
		return
	}
	if params.Reason == "" {
		http.Error(w, "reason must be specified", http.StatusBadRequest)
		return
	}

	var newQuantity int
	err = s.db.Transaction(func(txn *gorm.DB) error {
		part, err := schema.GetPart(partId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrPartNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if err := consumeStock(txn, &part, params.Delta, params.Reason, nil, user.Id); err != nil {
			return err
		}
		newQuantity = part.Quantity

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error adjusting stock: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, adjustStockResponse{Quantity: newQuantity})
}

type StockAdjustmentInfo struct {
	Id          uuid.UUID  `json:"id"`
	Delta       int        `json:"delta"`
	Reason      string     `json:"reason"`
	WorkOrderId *uuid.UUID `json:"work_order_id"`
	UserId      uuid.UUID  `json:"user_id"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (s *PartService) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	partId, err := utils.URLParamUUID(r, "part_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var adjustments []schema.StockAdjustment
	result := s.db.Where("part_id = ?", partId).Order("created_at DESC").Find(&adjustments)
	if result.Error != nil {
		slog.Error("sql error listing stock adjustments", "part_id", partId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing stock adjustments: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]StockAdjustmentInfo, 0, len(adjustments))
	for _, a := range adjustments {
		infos = append(infos, StockAdjustmentInfo{
			Id: a.Id, Delta: a.Delta, Reason: a.Reason, WorkOrderId: a.WorkOrderId, UserId: a.UserId, CreatedAt: a.CreatedAt,
		})
	}
	utils.WriteJsonResponse(w, infos)
}

func (s *PartService) DeletePart(w http.ResponseWriter, r *http.Request) {
	partId, err := utils.URLParamUUID(r, "part_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetPart(partId, txn); err != nil {
			if errors.Is(err, schema.ErrPartNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		var count int64
		result := txn.Model(&schema.WorkOrderPart{}).Where("part_id = ?", partId).Count(&count)
		if result.Error != nil {
			slog.Error("sql error checking part usage", "part_id", partId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if count > 0 {
			return CodedError(
				fmt.Errorf("part %v is referenced by %d work orders and cannot be deleted", partId, count),
				http.StatusConflict,
			)
		}

		result = txn.Where("part_id = ?", partId).Delete(&schema.StockAdjustment{})
		if result.Error != nil {
			slog.Error("sql error deleting stock adjustments", "part_id", partId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Delete(&schema.Part{Id: partId})
		if result.Error != nil {
			slog.Error("sql error deleting part", "part_id", partId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting part: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}
