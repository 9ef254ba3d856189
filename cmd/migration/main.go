package main

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"

	"chatterfix/cmd/migration/versions"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func postgresDsn(dbUri string) string {
	parts, err := url.Parse(dbUri)
	if err != nil {
		log.Fatalf("error parsing db uri: %v", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v", parts.Hostname(), parts.User.Username(), pwd, dbname, parts.Port())
}

func openDb(dbUri string) *gorm.DB {
	var dialector gorm.Dialector
	if strings.HasPrefix(dbUri, "sqlite://") {
		dialector = sqlite.Open(strings.TrimPrefix(dbUri, "sqlite://"))
	} else {
		dialector = postgres.Open(postgresDsn(dbUri))
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
	}
	return db
}

func main() {
	envFile := flag.String("env", "", "File to load env variables from.")
	rollback := flag.Bool("rollback", false, "If specified will roll back the last applied migration.")

	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Fatalf("error loading .env file '%v': %v", *envFile, err)
		}
	}

	dbUri := os.Getenv("DATABASE_URI")
	if dbUri == "" {
		log.Fatal("DATABASE_URI env var must be specified")
	}

	db := openDb(dbUri)

	m := gormigrate.New(db, gormigrate.DefaultOptions, versions.All())

	if *rollback {
		if err := m.RollbackLast(); err != nil {
			log.Fatalf("error rolling back migration: %v", err)
		}
		log.Println("rollback complete")
		return
	}

	if err := m.Migrate(); err != nil {
		log.Fatalf("error applying migrations: %v", err)
	}
	log.Println("migrations complete")
}
