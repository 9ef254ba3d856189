package auth

import (
	"errors"
	"fmt"
	"net/http"

	"chatterfix/cmms/schema"
	"chatterfix/cmms/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func AdminOnly(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if !user.IsAdmin {
				http.Error(w, fmt.Sprintf("user %v is not an admin", user.Id), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

// ManagerOnly admits managers and admins. Asset, part, and schedule mutation
// endpoints sit behind this.
func ManagerOnly(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if !user.IsAdmin && user.Role != schema.RoleManager {
				http.Error(w, fmt.Sprintf("user %v must be a manager or admin to access endpoint", user.Id), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

func isTeamLead(teamId, userId uuid.UUID, db *gorm.DB) (bool, error) {
	userTeam, err := schema.GetUserTeam(teamId, userId, db)
	if err != nil {
		if errors.Is(err, schema.ErrUserTeamNotFound) {
			return false, nil
		}
		return false, err
	}

	return userTeam.IsTeamLead, nil
}

func AdminOrTeamLeadOnly(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			teamId, err := utils.URLParamUUID(r, "team_id")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			isLead, err := isTeamLead(teamId, user.Id, db)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if !user.IsAdmin && !isLead {
				http.Error(w, "user must be admin or team lead to access endpoint", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

func isTeamMember(teamId, userId uuid.UUID, db *gorm.DB) (bool, error) {
	_, err := schema.GetUserTeam(teamId, userId, db)
	if err != nil {
		if errors.Is(err, schema.ErrUserTeamNotFound) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func TeamMemberOnly(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			teamId, err := utils.URLParamUUID(r, "team_id")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			isMember, err := isTeamMember(teamId, user.Id, db)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if !user.IsAdmin && !isMember {
				http.Error(w, "user must be team member to access endpoint", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

// CanUpdateWorkOrder reports whether a user may change the status or assignment
// of a work order: the assignee, a member of the assigned team, a manager, or an
// admin.
func CanUpdateWorkOrder(workOrder *schema.WorkOrder, user schema.User, db *gorm.DB) (bool, error) {
	if user.IsAdmin || user.Role == schema.RoleManager {
		return true, nil
	}

	if workOrder.AssignedTo != nil && *workOrder.AssignedTo == user.Id {
		return true, nil
	}

	if workOrder.TeamId != nil {
		return isTeamMember(*workOrder.TeamId, user.Id, db)
	}

	return false, nil
}
