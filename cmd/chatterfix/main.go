package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chatterfix/cmms/auth"
	"chatterfix/cmms/chat"
	"chatterfix/cmms/health"
	"chatterfix/cmms/jobs"
	"chatterfix/cmms/schema"
	"chatterfix/cmms/services"
	"chatterfix/cmms/storage"
	"chatterfix/cmms/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogmulti "github.com/samber/slog-multi"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type chatterfixEnv struct {
	PublicHostname string
	ShareDir       string
	JwtSecret      string

	AdminUsername string
	AdminEmail    string
	AdminPassword string

	OpenaiApiKey string
	OpenaiModel  string

	HealthPolicyPath string

	SchedulerIntervalMinutes int
	AllowDirectSignup        bool

	DatabaseUri string
}

func loadEnvFile(envFile string) {
	slog.Info(fmt.Sprintf("loading env from file %v", envFile))
	err := godotenv.Load(envFile)
	if err != nil {
		log.Fatalf("error loading .env file '%v': %v", envFile, err)
	}
}

func loadEnv() chatterfixEnv {
	missingEnvs := []string{}

	requiredEnv := func(key string) string {
		env := os.Getenv(key)
		if env == "" {
			missingEnvs = append(missingEnvs, key)
			slog.Error("missing required env variable", "key", key)
		}
		return env
	}

	env := chatterfixEnv{
		PublicHostname: requiredEnv("PUBLIC_HOSTNAME"),
		ShareDir:       requiredEnv("SHARE_DIR"),
		JwtSecret:      requiredEnv("JWT_SECRET"),

		AdminUsername: requiredEnv("ADMIN_USERNAME"),
		AdminEmail:    requiredEnv("ADMIN_MAIL"),
		AdminPassword: requiredEnv("ADMIN_PASSWORD"),

		OpenaiApiKey: utils.OptionalEnv("OPENAI_API_KEY"),
		OpenaiModel:  utils.OptionalEnv("OPENAI_MODEL"),

		HealthPolicyPath: utils.OptionalEnv("HEALTH_POLICY_PATH"),

		SchedulerIntervalMinutes: utils.IntEnvVar("SCHEDULER_INTERVAL_MINUTES", 15),
		AllowDirectSignup:        utils.BoolEnvVar("ALLOW_DIRECT_SIGNUP"),

		DatabaseUri: requiredEnv("DATABASE_URI"),
	}

	if len(missingEnvs) > 0 {
		log.Fatalf("The following required env vars are missing: %s", strings.Join(missingEnvs, ", "))
	}

	return env
}

func (env *chatterfixEnv) postgresDsn() string {
	parts, err := url.Parse(env.DatabaseUri)
	if err != nil {
		log.Fatalf("error parsing db uri: %v", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v", parts.Hostname(), parts.User.Username(), pwd, dbname, parts.Port())
}

func initLogging(logFile *os.File) {
	handler := slogmulti.Fanout(
		slog.NewTextHandler(os.Stderr, nil),
		slog.NewJSONHandler(logFile, nil),
	)
	slog.SetDefault(slog.New(handler))
	slog.Info("logging initialized", "log_file", logFile.Name())
}

func initDb(env *chatterfixEnv) *gorm.DB {
	var dialector gorm.Dialector
	if strings.HasPrefix(env.DatabaseUri, "sqlite://") {
		dialector = sqlite.Open(strings.TrimPrefix(env.DatabaseUri, "sqlite://"))
	} else {
		dialector = postgres.Open(env.postgresDsn())
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
	}

	err = db.AutoMigrate(schema.AllTables()...)
	if err != nil {
		log.Fatalf("error migrating db schema: %v", err)
	}

	return db
}

func loadHealthPolicy(path string) health.Policy {
	if path == "" {
		return health.DefaultPolicy()
	}
	policy, err := health.LoadPolicy(path)
	if err != nil {
		log.Fatalf("error loading health policy from '%v': %v", path, err)
	}
	return policy
}

func main() {
	envFile := flag.String("env", "", "File to load env variables from. If not specified will just load them from the environment variables already defined.")
	skipScheduler := flag.Bool("skip_scheduler", false, "If specified will not run the background maintenance scheduler.")

	port := flag.Int("port", 8000, "Port to run server on")

	flag.Parse()

	if *envFile != "" {
		loadEnvFile(*envFile)
	}
	env := loadEnv()

	err := os.MkdirAll(filepath.Join(env.ShareDir, "logs/"), 0777)
	if err != nil {
		log.Fatalf("error creating log dir: %v", err)
	}

	logFile, err := os.OpenFile(filepath.Join(env.ShareDir, "logs/chatterfix.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer logFile.Close()

	auditLog, err := os.OpenFile(filepath.Join(env.ShareDir, "logs/audit.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Fatalf("error opening audit log file: %v", err)
	}
	defer auditLog.Close()

	initLogging(logFile)

	db := initDb(&env)

	sharedStorage := storage.NewSharedDisk(env.ShareDir)

	identityProvider, err := auth.NewBasicIdentityProvider(
		db,
		auth.NewAuditLogger(auditLog),
		auth.BasicProviderArgs{
			Secret:            []byte(env.JwtSecret),
			AdminUsername:     env.AdminUsername,
			AdminEmail:        env.AdminEmail,
			AdminPassword:     env.AdminPassword,
			AllowDirectSignup: env.AllowDirectSignup,
		},
	)
	if err != nil {
		log.Fatalf("error creating basic identity provider: %v", err)
	}

	var llm chat.LLM
	if env.OpenaiApiKey != "" {
		llm = chat.NewOpenAILLM(env.OpenaiApiKey, env.OpenaiModel)
	} else {
		slog.Warn("OPENAI_API_KEY not set, chat assistant will always return the fallback reply")
		llm = chat.Unavailable{}
	}

	policy := loadHealthPolicy(env.HealthPolicyPath)

	chatterfix := services.NewChatterFix(db, sharedStorage, identityProvider, llm, policy)

	scheduler := jobs.NewScheduler(db, policy, time.Duration(env.SchedulerIntervalMinutes)*time.Minute)
	if !*skipScheduler {
		go scheduler.Run()
		defer scheduler.Stop()
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{env.PublicHostname},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Mount("/api/v1", chatterfix.Routes())
	r.Handle("/metrics", promhttp.Handler())

	slog.Info("starting server", "port", *port)
	err = http.ListenAndServe(fmt.Sprintf(":%d", *port), r)
	if err != nil {
		log.Fatalf("listen and serve returned error: %v", err.Error())
	}
}
