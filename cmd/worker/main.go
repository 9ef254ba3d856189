package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"chatterfix/cmms/health"
	"chatterfix/cmms/jobs"

	"github.com/caarlos0/env/v10"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type WorkerEnv struct {
	DatabaseUri      string `env:"DATABASE_URI,required"`
	ShareDir         string `env:"SHARE_DIR,required"`
	HealthPolicyPath string `env:"HEALTH_POLICY_PATH"`
	IntervalMinutes  int    `env:"SCHEDULER_INTERVAL_MINUTES" envDefault:"15"`
}

func loadEnv() (*WorkerEnv, error) {
	cfg := &WorkerEnv{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func initLogging(logFile *os.File) {
	log.SetFlags(log.Lshortfile | log.Ltime | log.Ldate)
	log.SetOutput(io.MultiWriter(logFile, os.Stderr))
	slog.Info("logging initialized", "log_file", logFile.Name())
}

func postgresDsn(dbUri string) (string, error) {
	parts, err := url.Parse(dbUri)
	if err != nil {
		return "", fmt.Errorf("error parsing db uri: %w", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v", parts.Hostname(), parts.User.Username(), pwd, dbname, parts.Port()), nil
}

// runApp returns errors instead of calling log.Fatalf so defer calls run on
// the way out.
func runApp() error {
	env, err := loadEnv()
	if err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}

	logFile, err := os.OpenFile(filepath.Join(env.ShareDir, "logs/worker.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	defer logFile.Close()

	initLogging(logFile)

	var dialector gorm.Dialector
	if strings.HasPrefix(env.DatabaseUri, "sqlite://") {
		dialector = sqlite.Open(strings.TrimPrefix(env.DatabaseUri, "sqlite://"))
	} else {
		dsn, err := postgresDsn(env.DatabaseUri)
		if err != nil {
			return err
		}
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return fmt.Errorf("error opening database connection: %w", err)
	}

	policy := health.DefaultPolicy()
	if env.HealthPolicyPath != "" {
		policy, err = health.LoadPolicy(env.HealthPolicyPath)
		if err != nil {
			return fmt.Errorf("error loading health policy: %w", err)
		}
	}

	scheduler := jobs.NewScheduler(db, policy, time.Duration(env.IntervalMinutes)*time.Minute)
	go scheduler.Run()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutdown signal received")
	scheduler.Stop()

	return nil
}

func main() {
	if err := runApp(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}
