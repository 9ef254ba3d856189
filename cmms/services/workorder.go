package services

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"chatterfix/cmms/auth"
	"chatterfix/cmms/schema"
	"chatterfix/cmms/storage"
	"chatterfix/cmms/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxAttachmentSize = 100 * 1024 * 1024

type WorkOrderService struct {
	db       *gorm.DB
	storage  storage.Storage
	userAuth auth.IdentityProvider
}

func (s *WorkOrderService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Post("/create", s.CreateWorkOrder)
	r.Get("/list", s.List)

	r.Route("/{work_order_id}", func(r chi.Router) {
		r.Get("/", s.GetWorkOrder)
		r.Post("/status", s.SetStatus)
		r.Post("/assign", s.Assign)

		r.Post("/notes", s.AddNote)
		r.Get("/notes", s.ListNotes)

		r.Post("/parts", s.ConsumeParts)

		r.With(checkSufficientStorage(s.storage)).Post("/attachments", s.UploadAttachment)
		r.Get("/attachments", s.ListAttachments)
		r.Get("/attachments/{attachment_id}", s.DownloadAttachment)

		r.With(auth.ManagerOnly(s.db)).Delete("/", s.DeleteWorkOrder)
	})

	return r
}

type createWorkOrderRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Type        string     `json:"type"`
	Priority    string     `json:"priority"`
	AssetId     uuid.UUID  `json:"asset_id"`
	TeamId      *uuid.UUID `json:"team_id"`
	AssignedTo  *uuid.UUID `json:"assigned_to"`
	DueDate     *time.Time `json:"due_date"`
}

type createWorkOrderResponse struct {
	WorkOrderId uuid.UUID `json:"work_order_id"`
	Number      int64     `json:"number"`
}

func (s *WorkOrderService) CreateWorkOrder(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params createWorkOrderRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Title == "" {
		http.Error(w, "work order title must be specified", http.StatusBadRequest)
		return
	}

	if params.Type == "" {
		params.Type = schema.TypeCorrective
	}
	if err := schema.CheckValidWorkOrderType(params.Type); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if params.Priority == "" {
		params.Priority = schema.PriorityMedium
	}
	if err := schema.CheckValidPriority(params.Priority); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	status := schema.WorkOrderOpen
	if params.AssignedTo != nil {
		status = schema.WorkOrderAssigned
	}

	newWorkOrder := schema.WorkOrder{
		Id:          uuid.New(),
		Title:       params.Title,
		Description: params.Description,
		Type:        params.Type,
		Status:      status,
		Priority:    params.Priority,
		AssetId:     params.AssetId,
		TeamId:      params.TeamId,
		AssignedTo:  params.AssignedTo,
		RequestedBy: user.Id,
		DueDate:     params.DueDate,
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		asset, err := getAssetForUpdate(txn, params.AssetId)
		if err != nil {
			return err
		}
		if err := checkAssetAcceptsWork(&asset); err != nil {
			return err
		}

		if params.TeamId != nil {
			if err := checkTeamExists(txn, *params.TeamId); err != nil {
				return err
			}
		}
		if params.AssignedTo != nil {
			if err := checkUserExists(txn, *params.AssignedTo); err != nil {
				return err
			}
		}

		result := txn.Create(&newWorkOrder)
		if result.Error != nil {
			slog.Error("sql error creating new work order", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating work order: %v", err), GetResponseCode(err))
		return
	}

	workOrdersCreated.WithLabelValues(newWorkOrder.Priority).Inc()

	slog.Info("created work order", "work_order_id", newWorkOrder.Id, "number", newWorkOrder.Number, "priority", newWorkOrder.Priority)

	utils.WriteJsonResponse(w, createWorkOrderResponse{WorkOrderId: newWorkOrder.Id, Number: newWorkOrder.Number})
}

type WorkOrderInfo struct {
	Id          uuid.UUID  `json:"id"`
	Number      int64      `json:"number"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	AssetId     uuid.UUID  `json:"asset_id"`
	TeamId      *uuid.UUID `json:"team_id"`
	AssignedTo  *uuid.UUID `json:"assigned_to"`
	RequestedBy uuid.UUID  `json:"requested_by"`
	ScheduleId  *uuid.UUID `json:"schedule_id"`
	DueDate     *time.Time `json:"due_date"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

func convertToWorkOrderInfo(workOrder *schema.WorkOrder) WorkOrderInfo {
	return WorkOrderInfo{
		Id:          workOrder.Id,
		Number:      workOrder.Number,
		Title:       workOrder.Title,
		Description: workOrder.Description,
		Type:        workOrder.Type,
		Status:      workOrder.Status,
		Priority:    workOrder.Priority,
		AssetId:     workOrder.AssetId,
		TeamId:      workOrder.TeamId,
		AssignedTo:  workOrder.AssignedTo,
		RequestedBy: workOrder.RequestedBy,
		ScheduleId:  workOrder.ScheduleId,
		DueDate:     workOrder.DueDate,
		StartedAt:   workOrder.StartedAt,
		CompletedAt: workOrder.CompletedAt,
		CreatedAt:   workOrder.CreatedAt,
	}
}

func (s *WorkOrderService) List(w http.ResponseWriter, r *http.Request) {
	query := s.db
	if status := r.URL.Query().Get("status"); status != "" {
		if err := schema.CheckValidWorkOrderStatus(status); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		query = query.Where("status = ?", status)
	}
	if priority := r.URL.Query().Get("priority"); priority != "" {
		if err := schema.CheckValidPriority(priority); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		query = query.Where("priority = ?", priority)
	}
	if assetId := r.URL.Query().Get("asset_id"); assetId != "" {
		id, err := uuid.Parse(assetId)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid asset_id: %v", err), http.StatusBadRequest)
			return
		}
		query = query.Where("asset_id = ?", id)
	}
	if assignedTo := r.URL.Query().Get("assigned_to"); assignedTo != "" {
		id, err := uuid.Parse(assignedTo)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid assigned_to: %v", err), http.StatusBadRequest)
			return
		}
		query = query.Where("assigned_to = ?", id)
	}

	var workOrders []schema.WorkOrder
	result := query.Order("created_at DESC").Find(&workOrders)
	if result.Error != nil {
		slog.Error("sql error listing work orders", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing work orders: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]WorkOrderInfo, 0, len(workOrders))
	for _, wo := range workOrders {
		infos = append(infos, convertToWorkOrderInfo(&wo))
	}
	utils.WriteJsonResponse(w, infos)
}

type WorkOrderNoteInfo struct {
	Id        uuid.UUID `json:"id"`
	UserId    uuid.UUID `json:"user_id"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

type WorkOrderPartInfo struct {
	PartId   uuid.UUID `json:"part_id"`
	Quantity int       `json:"quantity"`
}

type workOrderDetailResponse struct {
	WorkOrderInfo
	Notes []WorkOrderNoteInfo `json:"notes"`
	Parts []WorkOrderPartInfo `json:"parts"`
}

func (s *WorkOrderService) GetWorkOrder(w http.ResponseWriter, r *http.Request) {
	workOrderId, err := utils.URLParamUUID(r, "work_order_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	workOrder, err := schema.GetWorkOrder(workOrderId, s.db, true, true)
	if err != nil {
		if errors.Is(err, schema.ErrWorkOrderNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("error getting work order: %v", err), http.StatusInternalServerError)
		return
	}

	detail := workOrderDetailResponse{
		WorkOrderInfo: convertToWorkOrderInfo(&workOrder),
		Notes:         make([]WorkOrderNoteInfo, 0, len(workOrder.Notes)),
		Parts:         make([]WorkOrderPartInfo, 0, len(workOrder.Parts)),
	}
	for _, note := range workOrder.Notes {
		detail.Notes = append(detail.Notes, WorkOrderNoteInfo{
			Id: note.Id, UserId: note.UserId, Note: note.Note, CreatedAt: note.CreatedAt,
		})
	}
	for _, part := range workOrder.Parts {
		detail.Parts = append(detail.Parts, WorkOrderPartInfo{PartId: part.PartId, Quantity: part.Quantity})
	}

	utils.WriteJsonResponse(w, detail)
}

func (s *WorkOrderService) getWorkOrderForUpdate(txn *gorm.DB, workOrderId uuid.UUID, user schema.User) (schema.WorkOrder, error) {
	workOrder, err := schema.GetWorkOrder(workOrderId, txn, false, false)
	if err != nil {
		if errors.Is(err, schema.ErrWorkOrderNotFound) {
			return workOrder, CodedError(err, http.StatusNotFound)
		}
		return workOrder, CodedError(err, http.StatusInternalServerError)
	}

	allowed, err := auth.CanUpdateWorkOrder(&workOrder, user, txn)
	if err != nil {
		return workOrder, CodedError(err, http.StatusInternalServerError)
	}
	if !allowed {
		return workOrder, CodedError(errors.New("user does not have permission to update this work order"), http.StatusForbidden)
	}

	return workOrder, nil
}

type setWorkOrderStatusRequest struct {
	Status string `json:"status"`
}

func (s *WorkOrderService) SetStatus(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	workOrderId, err := utils.URLParamUUID(r, "work_order_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params setWorkOrderStatusRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := schema.CheckValidWorkOrderStatus(params.Status); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	var previousStatus string
	err = s.db.Transaction(func(txn *gorm.DB) error {
		workOrder, err := s.getWorkOrderForUpdate(txn, workOrderId, user)
		if err != nil {
			return err
		}
		previousStatus = workOrder.Status

		if !schema.ValidNextStatus(workOrder.Status, params.Status) {
			return CodedError(
				fmt.Errorf("work order cannot move from status %v to %v", workOrder.Status, params.Status),
				http.StatusUnprocessableEntity,
			)
		}

		updates := map[string]interface{}{"status": params.Status}
		now := time.Now().UTC()
		if params.Status == schema.WorkOrderInProgress && workOrder.StartedAt == nil {
			updates["started_at"] = now
		}
		if params.Status == schema.WorkOrderCompleted {
			updates["completed_at"] = now
		}

		result := txn.Model(&schema.WorkOrder{Id: workOrderId}).Updates(updates)
		if result.Error != nil {
			slog.Error("sql error updating work order status", "work_order_id", workOrderId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating work order status: %v", err), GetResponseCode(err))
		return
	}

	if previousStatus != params.Status {
		switch params.Status {
		case schema.WorkOrderCompleted:
			workOrdersCompleted.Inc()
		case schema.WorkOrderCancelled:
			workOrdersCancelled.Inc()
		}
	}

	slog.Info("updated work order status", "work_order_id", workOrderId, "from", previousStatus, "to", params.Status)

	utils.WriteSuccess(w)
}

type assignWorkOrderRequest struct {
	AssignedTo *uuid.UUID `json:"assigned_to"`
	TeamId     *uuid.UUID `json:"team_id"`
}

func (s *WorkOrderService) Assign(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	workOrderId, err := utils.URLParamUUID(r, "work_order_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params assignWorkOrderRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		workOrder, err := s.getWorkOrderForUpdate(txn, workOrderId, user)
		if err != nil {
			return err
		}

		if workOrder.Status == schema.WorkOrderCompleted || workOrder.Status == schema.WorkOrderCancelled {
			return CodedError(
				fmt.Errorf("cannot assign work order in status %v", workOrder.Status),
				http.StatusUnprocessableEntity,
			)
		}

		updates := map[string]interface{}{"assigned_to": params.AssignedTo, "team_id": params.TeamId}
		if params.AssignedTo != nil {
			if err := checkUserExists(txn, *params.AssignedTo); err != nil {
				return err
			}
			if workOrder.Status == schema.WorkOrderOpen {
				updates["status"] = schema.WorkOrderAssigned
			}
		} else if workOrder.Status == schema.WorkOrderAssigned {
			updates["status"] = schema.WorkOrderOpen
		}
		if params.TeamId != nil {
			if err := checkTeamExists(txn, *params.TeamId); err != nil {
				return err
			}
		}

		result := txn.Model(&schema.WorkOrder{Id: workOrderId}).Updates(updates)
		if result.Error != nil {
			slog.Error("sql error assigning work order", "work_order_id", workOrderId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error assigning work order: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

type addNoteRequest struct {
	Note string `json:"note"`
}

type addNoteResponse struct {
	NoteId uuid.UUID `json:"note_id"`
}

func (s *WorkOrderService) AddNote(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	workOrderId, err := utils.URLParamUUID(r, "work_order_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params addNoteRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Note == "" {
		http.Error(w, "note must not be empty", http.StatusBadRequest)
		return
	}

	newNote := schema.WorkOrderNote{
		Id:          uuid.New(),
		WorkOrderId: workOrderId,
		UserId:      user.Id,
		Note:        params.Note,
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := s.getWorkOrderForUpdate(txn, workOrderId, user); err != nil {
			return err
		}

		result := txn.Create(&newNote)
		if result.Error != nil {
			slog.Error("sql error creating work order note", "work_order_id", workOrderId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error adding note: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, addNoteResponse{NoteId: newNote.Id})
}

func (s *WorkOrderService) ListNotes(w http.ResponseWriter, r *http.Request) {
	workOrderId, err := utils.URLParamUUID(r, "work_order_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var notes []schema.WorkOrderNote
	result := s.db.Where("work_order_id = ?", workOrderId).Order("created_at").Find(&notes)
	if result.Error != nil {
		slog.Error("sql error listing work order notes", "work_order_id", workOrderId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing notes: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]WorkOrderNoteInfo, 0, len(notes))
	for _, note := range notes {
		infos = append(infos, WorkOrderNoteInfo{
			Id: note.Id, UserId: note.UserId, Note: note.Note, CreatedAt: note.CreatedAt,
		})
	}
	utils.WriteJsonResponse(w, infos)
}

type consumePartsRequest struct {
	PartId   uuid.UUID `json:"part_id"`
	Quantity int       `json:"quantity"`
}

func (s *WorkOrderService) ConsumeParts(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	workOrderId, err := utils.URLParamUUID(r, "work_order_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params consumePartsRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Quantity <= 0 {
		http.Error(w, "quantity must be positive", http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		workOrder, err := s.getWorkOrderForUpdate(txn, workOrderId, user)
		if err != nil {
			return err
		}

		if workOrder.Status == schema.WorkOrderCompleted || workOrder.Status == schema.WorkOrderCancelled {
			return CodedError(
				fmt.Errorf("cannot consume parts on work order in status %v", workOrder.Status),
				http.StatusUnprocessableEntity,
			)
		}

		part, err := schema.GetPart(params.PartId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrPartNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		reason := fmt.Sprintf("consumed on work order #%d", workOrder.Number)
		if err := consumeStock(txn, &part, -params.Quantity, reason, &workOrderId, user.Id); err != nil {
			return err
		}

		var usage schema.WorkOrderPart
		result := txn.Limit(1).Find(&usage, "work_order_id = ? AND part_id = ?", workOrderId, part.Id)
		if result.Error != nil {
			slog.Error("sql error loading work order part usage", "work_order_id", workOrderId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			result = txn.Create(&schema.WorkOrderPart{WorkOrderId: workOrderId, PartId: part.Id, Quantity: params.Quantity})
		} else {
			result = txn.Model(&schema.WorkOrderPart{}).
				Where("work_order_id = ? AND part_id = ?", workOrderId, part.Id).
				Update("quantity", usage.Quantity+params.Quantity)
		}
		if result.Error != nil {
			slog.Error("sql error recording work order part usage", "work_order_id", workOrderId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error consuming parts: %v", err), GetResponseCode(err))
		return
	}

	partsConsumed.Add(float64(params.Quantity))

	utils.WriteSuccess(w)
}

type AttachmentInfo struct {
	Id       uuid.UUID `json:"id"`
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`

	// Missing is set when the database row has no backing file on shared disk.
	Missing bool `json:"missing"`
}

func (s *WorkOrderService) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	workOrderId, err := utils.URLParamUUID(r, "work_order_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := r.ParseMultipartForm(maxAttachmentSize); err != nil {
		http.Error(w, fmt.Sprintf("error parsing multipart form: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("error reading uploaded file: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	attachment := schema.Attachment{
		Id:          uuid.New(),
		WorkOrderId: workOrderId,
		Filename:    header.Filename,
		Size:        header.Size,
		UploadedBy:  user.Id,
	}
	attachment.Path = storage.AttachmentPath(workOrderId, attachment.Id, header.Filename)

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := s.getWorkOrderForUpdate(txn, workOrderId, user); err != nil {
			return err
		}

		if err := s.storage.Write(attachment.Path, file); err != nil {
			slog.Error("error writing attachment to storage", "work_order_id", workOrderId, "error", err)
			return CodedError(errors.New("unable to store attachment"), http.StatusInternalServerError)
		}

		result := txn.Create(&attachment)
		if result.Error != nil {
			slog.Error("sql error creating attachment record", "work_order_id", workOrderId, "error", result.Error)
			if err := s.storage.Delete(attachment.Path); err != nil {
				slog.Error("error removing orphaned attachment file", "path", attachment.Path, "error", err)
			}
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error uploading attachment: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, AttachmentInfo{Id: attachment.Id, Filename: attachment.Filename, Size: attachment.Size})
}

func (s *WorkOrderService) ListAttachments(w http.ResponseWriter, r *http.Request) {
	workOrderId, err := utils.URLParamUUID(r, "work_order_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var attachments []schema.Attachment
	result := s.db.Where("work_order_id = ?", workOrderId).Order("created_at").Find(&attachments)
	if result.Error != nil {
		slog.Error("sql error listing attachments", "work_order_id", workOrderId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing attachments: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	// Reconcile against the files actually on shared disk so rows whose backing
	// file was lost are flagged instead of failing later on download.
	onDisk := map[string]bool{}
	dir := storage.AttachmentDir(workOrderId)
	if exists, err := s.storage.Exists(dir); err == nil && exists {
		entries, err := s.storage.List(dir)
		if err != nil {
			slog.Error("error listing attachment files", "work_order_id", workOrderId, "error", err)
		}
		for _, name := range entries {
			onDisk[filepath.Join(dir, name)] = true
		}
	}

	infos := make([]AttachmentInfo, 0, len(attachments))
	for _, a := range attachments {
		infos = append(infos, AttachmentInfo{
			Id: a.Id, Filename: a.Filename, Size: a.Size,
			Missing: !onDisk[a.Path],
		})
	}
	utils.WriteJsonResponse(w, infos)
}

func (s *WorkOrderService) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	workOrderId, err := utils.URLParamUUID(r, "work_order_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	attachmentId, err := utils.URLParamUUID(r, "attachment_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var attachment schema.Attachment
	result := s.db.Limit(1).Find(&attachment, "id = ? AND work_order_id = ?", attachmentId, workOrderId)
	if result.Error != nil {
		slog.Error("sql error loading attachment", "attachment_id", attachmentId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error loading attachment: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, "attachment not found", http.StatusNotFound)
		return
	}

	reader, err := s.storage.Read(attachment.Path)
	if err != nil {
		slog.Error("error reading attachment from storage", "path", attachment.Path, "error", err)
		http.Error(w, "unable to read attachment", http.StatusInternalServerError)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment.Filename))
	w.Header().Set("Content-Type", "application/octet-stream")
	// The on-disk size is authoritative, the recorded size is what the client
	// claimed at upload time.
	if size, err := s.storage.Size(attachment.Path); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	if _, err := io.Copy(w, reader); err != nil {
		slog.Error("error streaming attachment", "path", attachment.Path, "error", err)
	}
}

// DeleteWorkOrder removes a cancelled work order and its attachments. Other
// statuses must be cancelled first so history stays intact for completed work.
func (s *WorkOrderService) DeleteWorkOrder(w http.ResponseWriter, r *http.Request) {
	workOrderId, err := utils.URLParamUUID(r, "work_order_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		workOrder, err := schema.GetWorkOrder(workOrderId, txn, false, false)
		if err != nil {
			if errors.Is(err, schema.ErrWorkOrderNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if workOrder.Status != schema.WorkOrderCancelled {
			return CodedError(
				fmt.Errorf("only cancelled work orders can be deleted, status is %v", workOrder.Status),
				http.StatusUnprocessableEntity,
			)
		}

		for _, table := range []interface{}{&schema.WorkOrderNote{}, &schema.WorkOrderPart{}, &schema.Attachment{}} {
			result := txn.Where("work_order_id = ?", workOrderId).Delete(table)
			if result.Error != nil {
				slog.Error("sql error deleting work order records", "work_order_id", workOrderId, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
		}

		result := txn.Delete(&schema.WorkOrder{Id: workOrderId})
		if result.Error != nil {
			slog.Error("sql error deleting work order", "work_order_id", workOrderId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting work order: %v", err), GetResponseCode(err))
		return
	}

	if err := s.storage.Delete(storage.WorkOrderPath(workOrderId)); err != nil {
		slog.Error("error deleting work order storage", "work_order_id", workOrderId, "error", err)
	}

	utils.WriteSuccess(w)
}
