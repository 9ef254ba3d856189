package services

import (
	"log"
	"net/http"
	"os"

	"chatterfix/cmms/auth"
	"chatterfix/cmms/chat"
	"chatterfix/cmms/health"
	"chatterfix/cmms/storage"
	"chatterfix/cmms/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

type ChatterFix struct {
	user      UserService
	team      TeamService
	asset     AssetService
	workOrder WorkOrderService
	part      PartService
	schedule  ScheduleService
	chat      ChatService
	report    ReportService

	db *gorm.DB
}

func NewChatterFix(
	db *gorm.DB, store storage.Storage, userAuth auth.IdentityProvider, llm chat.LLM, policy health.Policy,
) ChatterFix {
	return ChatterFix{
		user: UserService{db: db, userAuth: userAuth},
		team: TeamService{db: db, userAuth: userAuth},
		asset: AssetService{
			db:       db,
			userAuth: userAuth,
			policy:   policy,
		},
		workOrder: WorkOrderService{
			db:       db,
			storage:  store,
			userAuth: userAuth,
		},
		part: PartService{db: db, userAuth: userAuth},
		schedule: ScheduleService{
			db:       db,
			userAuth: userAuth,
		},
		chat: ChatService{
			db:       db,
			userAuth: userAuth,
			llm:      llm,
		},
		report: ReportService{db: db, userAuth: userAuth},
		db:     db,
	}
}

func (c *ChatterFix) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))

	r.Mount("/user", c.user.Routes())
	r.Mount("/team", c.team.Routes())
	r.Mount("/asset", c.asset.Routes())
	r.Mount("/workorder", c.workOrder.Routes())
	r.Mount("/part", c.part.Routes())
	r.Mount("/schedule", c.schedule.Routes())
	r.Mount("/chat", c.chat.Routes())
	r.Mount("/report", c.report.Routes())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w)
	})

	return r
}
