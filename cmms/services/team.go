package services

import (
	"fmt"
	"log/slog"
	"net/http"

	"chatterfix/cmms/auth"
	"chatterfix/cmms/schema"
	"chatterfix/cmms/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TeamService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *TeamService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.With(auth.AdminOnly(s.db)).Post("/create", s.CreateTeam)

	r.Get("/list", s.List)

	r.Route("/{team_id}", func(r chi.Router) {
		r.With(auth.AdminOnly(s.db)).Delete("/", s.DeleteTeam)

		r.Group(func(r chi.Router) {
			r.Use(auth.AdminOrTeamLeadOnly(s.db))

			r.Post("/users/{user_id}", s.AddUserToTeam)
			r.Delete("/users/{user_id}", s.RemoveUserFromTeam)

			r.Post("/leads/{user_id}", s.AddTeamLead)
			r.Delete("/leads/{user_id}", s.RemoveTeamLead)
		})

		r.With(auth.TeamMemberOnly(s.db)).Get("/users", s.TeamUsers)
		r.With(auth.TeamMemberOnly(s.db)).Get("/workorders", s.TeamWorkOrders)
	})

	return r
}

type createTeamRequest struct {
	Name string `json:"name"`
}

type createTeamResponse struct {
	TeamId uuid.UUID `json:"team_id"`
}

func (s *TeamService) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var params createTeamRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Name == "" {
		http.Error(w, "team name must be specified", http.StatusBadRequest)
		return
	}

	newTeam := schema.Team{Id: uuid.New(), Name: params.Name}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		var existingTeam schema.Team
		result := txn.Limit(1).Find(&existingTeam, "name = ?", params.Name)
		if result.Error != nil {
			slog.Error("sql error checking for duplicate team name", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(fmt.Errorf("team with name %v already exists", params.Name), http.StatusConflict)
		}

		result = txn.Create(&newTeam)
		if result.Error != nil {
			slog.Error("sql error creating new team", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating team: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, createTeamResponse{TeamId: newTeam.Id})
}

func (s *TeamService) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	teamId, err := utils.URLParamUUID(r, "team_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkTeamExists(txn, teamId); err != nil {
			return err
		}

		result := txn.Model(&schema.WorkOrder{}).Where("team_id = ?", teamId).Update("team_id", nil)
		if result.Error != nil {
			slog.Error("sql error unassigning team work orders", "team_id", teamId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Where("team_id = ?", teamId).Delete(&schema.UserTeam{})
		if result.Error != nil {
			slog.Error("sql error deleting team memberships", "team_id", teamId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Delete(&schema.Team{Id: teamId})
		if result.Error != nil {
			slog.Error("sql error deleting team", "team_id", teamId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting team: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *TeamService) AddUserToTeam(w http.ResponseWriter, r *http.Request) {
	teamId, err := utils.URLParamUUID(r, "team_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkTeamExists(txn, teamId); err != nil {
			return err
		}
		if err := checkUserExists(txn, userId); err != nil {
			return err
		}

		var existing schema.UserTeam
		result := txn.Limit(1).Find(&existing, "team_id = ? AND user_id = ?", teamId, userId)
		if result.Error != nil {
			slog.Error("sql error checking for existing team membership", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(fmt.Errorf("user %v is already a member of team %v", userId, teamId), http.StatusConflict)
		}

		result = txn.Create(&schema.UserTeam{UserId: userId, TeamId: teamId})
		if result.Error != nil {
			slog.Error("sql error adding user to team", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error adding user to team: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *TeamService) RemoveUserFromTeam(w http.ResponseWriter, r *http.Request) {
	teamId, err := utils.URLParamUUID(r, "team_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkTeamMember(txn, userId, teamId); err != nil {
			return err
		}

		result := txn.Where("team_id = ? AND user_id = ?", teamId, userId).Delete(&schema.UserTeam{})
		if result.Error != nil {
			slog.Error("sql error removing user from team", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error removing user from team: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *TeamService) setTeamLead(w http.ResponseWriter, r *http.Request, isLead bool) {
	teamId, err := utils.URLParamUUID(r, "team_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkTeamMember(txn, userId, teamId); err != nil {
			return err
		}

		result := txn.Model(&schema.UserTeam{}).
			Where("team_id = ? AND user_id = ?", teamId, userId).
			Update("is_team_lead", isLead)
		if result.Error != nil {
			slog.Error("sql error updating team lead flag", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating team lead: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *TeamService) AddTeamLead(w http.ResponseWriter, r *http.Request) {
	s.setTeamLead(w, r, true)
}

func (s *TeamService) RemoveTeamLead(w http.ResponseWriter, r *http.Request) {
	s.setTeamLead(w, r, false)
}

type TeamInfo struct {
	Id   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func (s *TeamService) List(w http.ResponseWriter, r *http.Request) {
	var teams []schema.Team
	result := s.db.Find(&teams)
	if result.Error != nil {
		slog.Error("sql error listing teams", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing teams: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]TeamInfo, 0, len(teams))
	for _, team := range teams {
		infos = append(infos, TeamInfo{Id: team.Id, Name: team.Name})
	}
	utils.WriteJsonResponse(w, infos)
}

type TeamUserInfo struct {
	UserId   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	TeamLead bool      `json:"team_lead"`
}

func (s *TeamService) TeamUsers(w http.ResponseWriter, r *http.Request) {
	teamId, err := utils.URLParamUUID(r, "team_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var memberships []schema.UserTeam
	result := s.db.Preload("User").Find(&memberships, "team_id = ?", teamId)
	if result.Error != nil {
		slog.Error("sql error listing team users", "team_id", teamId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing team users: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]TeamUserInfo, 0, len(memberships))
	for _, m := range memberships {
		info := TeamUserInfo{UserId: m.UserId, TeamLead: m.IsTeamLead}
		if m.User != nil {
			info.Username = m.User.Username
		}
		infos = append(infos, info)
	}
	utils.WriteJsonResponse(w, infos)
}

func (s *TeamService) TeamWorkOrders(w http.ResponseWriter, r *http.Request) {
	teamId, err := utils.URLParamUUID(r, "team_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var workOrders []schema.WorkOrder
	result := s.db.Find(&workOrders, "team_id = ?", teamId)
	if result.Error != nil {
		slog.Error("sql error listing team work orders", "team_id", teamId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing team work orders: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]WorkOrderInfo, 0, len(workOrders))
	for _, wo := range workOrders {
		infos = append(infos, convertToWorkOrderInfo(&wo))
	}
	utils.WriteJsonResponse(w, infos)
}
