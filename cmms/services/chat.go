package services

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"chatterfix/cmms/auth"
	"chatterfix/cmms/chat"
	"chatterfix/cmms/schema"
	"chatterfix/cmms/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// chatHistoryTurns bounds how much prior conversation is replayed to the
// provider. A turn is a user message plus the assistant's reply.
const chatHistoryTurns = 10

type ChatService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
	llm      chat.LLM
}

func (s *ChatService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Post("/message", s.Message)
	r.Get("/sessions/{session_id}", s.GetSession)

	return r
}

type chatMessageRequest struct {
	SessionId *uuid.UUID `json:"session_id"`
	Message   string     `json:"message"`
}

type chatMessageResponse struct {
	SessionId uuid.UUID `json:"session_id"`
	Reply     string    `json:"reply"`
	Fallback  bool      `json:"fallback"`
}

// Message answers a user message with the LLM. Provider failures return the
// canned fallback reply with a 200 so the widget never shows an error state.
func (s *ChatService) Message(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params chatMessageRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Message == "" {
		http.Error(w, "message must not be empty", http.StatusBadRequest)
		return
	}

	chatRequests.Inc()

	sessionId := uuid.New()
	if params.SessionId != nil {
		sessionId = *params.SessionId
	}

	var history []schema.ChatMessage
	result := s.db.Where("session_id = ? AND user_id = ?", sessionId, user.Id).
		Order("created_at DESC").Limit(2 * chatHistoryTurns).Find(&history)
	if result.Error != nil {
		slog.Error("sql error loading chat history", "session_id", sessionId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error loading chat history: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	summary, err := s.collectContext()
	if err != nil {
		// The assistant still works without facility context, just less informed.
		slog.Error("error collecting chat context", "error", err)
		summary = chat.ContextSummary{}
	}

	messages := make([]chat.Message, 0, len(history)+2)
	messages = append(messages, chat.Message{Role: "system", Content: chat.BuildSystemPrompt(summary)})
	for i := len(history) - 1; i >= 0; i-- {
		messages = append(messages, chat.Message{Role: history[i].Role, Content: history[i].Content})
	}
	messages = append(messages, chat.Message{Role: schema.ChatRoleUser, Content: params.Message})

	fallback := false
	reply, err := s.llm.Generate(r.Context(), messages)
	if err != nil {
		slog.Error("chat provider error, using fallback reply", "session_id", sessionId, "error", err)
		reply = chat.FallbackReply
		fallback = true
		chatFallbacks.Inc()
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		rows := []schema.ChatMessage{
			{Id: uuid.New(), SessionId: sessionId, UserId: user.Id, Role: schema.ChatRoleUser, Content: params.Message},
			{Id: uuid.New(), SessionId: sessionId, UserId: user.Id, Role: schema.ChatRoleAssistant, Content: reply},
		}
		for i := range rows {
			// Creation order breaks ties when timestamps collide.
			rows[i].CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Microsecond)
			if result := txn.Create(&rows[i]); result.Error != nil {
				slog.Error("sql error saving chat message", "session_id", sessionId, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error saving chat messages: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, chatMessageResponse{SessionId: sessionId, Reply: reply, Fallback: fallback})
}

func (s *ChatService) collectContext() (chat.ContextSummary, error) {
	summary := chat.ContextSummary{AssetsByBand: map[string]int{}}

	type bandCount struct {
		HealthBand string
		Count      int
	}
	var bands []bandCount
	result := s.db.Model(&schema.Asset{}).
		Select("health_band, count(*) as count").
		Where("status <> ?", schema.AssetRetired).
		Group("health_band").Scan(&bands)
	if result.Error != nil {
		return summary, result.Error
	}
	for _, b := range bands {
		summary.AssetsByBand[b.HealthBand] = b.Count
	}

	var criticalOrders []schema.WorkOrder
	result = s.db.Where("priority = ? AND status NOT IN ?",
		schema.PriorityCritical, []string{schema.WorkOrderCompleted, schema.WorkOrderCancelled}).
		Order("created_at").Limit(10).Find(&criticalOrders)
	if result.Error != nil {
		return summary, result.Error
	}
	for _, wo := range criticalOrders {
		summary.OpenCriticalOrders = append(summary.OpenCriticalOrders, fmt.Sprintf("#%d %s (%s)", wo.Number, wo.Title, wo.Status))
	}

	var lowStock []schema.Part
	result = s.db.Where("quantity <= min_quantity").Order("name").Limit(10).Find(&lowStock)
	if result.Error != nil {
		return summary, result.Error
	}
	for _, part := range lowStock {
		summary.LowStockParts = append(summary.LowStockParts, fmt.Sprintf("%s (%s): %d on hand, min %d", part.Name, part.Sku, part.Quantity, part.MinQuantity))
	}

	var dueSoon []schema.MaintenanceSchedule
	result = s.db.Where("active = ? AND next_due_at <= ?", true, time.Now().UTC().AddDate(0, 0, 7)).
		Order("next_due_at").Limit(10).Find(&dueSoon)
	if result.Error != nil {
		return summary, result.Error
	}
	for _, schedule := range dueSoon {
		summary.SchedulesDueSoon = append(summary.SchedulesDueSoon, fmt.Sprintf("%s due %s", schedule.Title, schedule.NextDueAt.Format("2006-01-02")))
	}

	return summary, nil
}

type ChatMessageInfo struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *ChatService) GetSession(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	sessionId, err := utils.URLParamUUID(r, "session_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var messages []schema.ChatMessage
	result := s.db.Where("session_id = ? AND user_id = ?", sessionId, user.Id).Order("created_at").Find(&messages)
	if result.Error != nil {
		slog.Error("sql error loading chat session", "session_id", sessionId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error loading chat session: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]ChatMessageInfo, 0, len(messages))
	for _, msg := range messages {
		infos = append(infos, ChatMessageInfo{Role: msg.Role, Content: msg.Content, CreatedAt: msg.CreatedAt})
	}
	utils.WriteJsonResponse(w, infos)
}
