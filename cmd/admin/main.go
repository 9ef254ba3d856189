package main

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"chatterfix/cmd/migration/versions"
	"chatterfix/cmms/schema"

	"github.com/fatih/color"
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func postgresDsn(dbUri string) (string, error) {
	parts, err := url.Parse(dbUri)
	if err != nil {
		return "", fmt.Errorf("error parsing db uri: %w", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v", parts.Hostname(), parts.User.Username(), pwd, dbname, parts.Port()), nil
}

func openDb() (*gorm.DB, error) {
	dbUri := os.Getenv("DATABASE_URI")
	if dbUri == "" {
		return nil, fmt.Errorf("DATABASE_URI env var must be specified")
	}

	var dialector gorm.Dialector
	if strings.HasPrefix(dbUri, "sqlite://") {
		dialector = sqlite.Open(strings.TrimPrefix(dbUri, "sqlite://"))
	} else {
		dsn, err := postgresDsn(dbUri)
		if err != nil {
			return nil, err
		}
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("error opening database connection: %w", err)
	}
	return db, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDb()
			if err != nil {
				return err
			}

			m := gormigrate.New(db, gormigrate.DefaultOptions, versions.All())
			if err := m.Migrate(); err != nil {
				return fmt.Errorf("error applying migrations: %w", err)
			}

			fmt.Println(color.New(color.FgGreen).Sprint("migrations complete"))
			return nil
		},
	}
}

func createAdminCmd() *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin user",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDb()
			if err != nil {
				return err
			}

			hashedPwd, err := bcrypt.GenerateFromPassword([]byte(password), 10)
			if err != nil {
				return fmt.Errorf("error encrypting password: %w", err)
			}

			newUser := schema.User{
				Id:       uuid.New(),
				Username: username,
				Email:    email,
				Password: hashedPwd,
				Role:     schema.RoleAdmin,
				IsAdmin:  true,
				Active:   true,
			}

			err = db.Transaction(func(txn *gorm.DB) error {
				var existing schema.User
				result := txn.Limit(1).Find(&existing, "username = ? or email = ?", username, email)
				if result.Error != nil {
					return result.Error
				}
				if result.RowsAffected != 0 {
					return fmt.Errorf("user with username %v or email %v already exists", username, email)
				}
				return txn.Create(&newUser).Error
			})
			if err != nil {
				return fmt.Errorf("error creating admin user: %w", err)
			}

			fmt.Printf("%s admin user %v (%v)\n", color.New(color.FgGreen).Sprint("created"), username, newUser.Id)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username for the new admin")
	cmd.Flags().StringVar(&email, "email", "", "Email for the new admin")
	cmd.Flags().StringVar(&password, "password", "", "Password for the new admin")
	for _, flag := range []string{"username", "email", "password"} {
		if err := cmd.MarkFlagRequired(flag); err != nil {
			log.Fatalf("error marking flag %v required: %v", flag, err)
		}
	}

	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the database with demo assets, parts, and schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDb()
			if err != nil {
				return err
			}

			var admin schema.User
			result := db.Limit(1).Find(&admin, "is_admin = ?", true)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("no admin user found, run create-admin first")
			}

			now := time.Now().UTC()

			assets := []schema.Asset{
				{Id: uuid.New(), Name: "Air Compressor 1", Tag: "AC-001", Category: "compressor", Location: "Plant A", Status: schema.AssetActive, Criticality: schema.CriticalityHigh, CommissionedAt: now.AddDate(-3, 0, 0), ExpectedLifeHours: 40000, HealthScore: 100, HealthBand: schema.HealthGood, UserId: admin.Id},
				{Id: uuid.New(), Name: "Conveyor Belt 2", Tag: "CB-002", Category: "conveyor", Location: "Plant A", Status: schema.AssetActive, Criticality: schema.CriticalityMedium, CommissionedAt: now.AddDate(-1, 0, 0), ExpectedLifeHours: 25000, HealthScore: 100, HealthBand: schema.HealthGood, UserId: admin.Id},
				{Id: uuid.New(), Name: "HVAC Unit 3", Tag: "HV-003", Category: "hvac", Location: "Plant B", Status: schema.AssetActive, Criticality: schema.CriticalityLow, CommissionedAt: now.AddDate(-5, 0, 0), ExpectedLifeHours: 60000, HealthScore: 100, HealthBand: schema.HealthGood, UserId: admin.Id},
			}

			parts := []schema.Part{
				{Id: uuid.New(), Name: "Drive Belt", Sku: "BELT-100", Quantity: 12, MinQuantity: 4, UnitCost: 35.50, Location: "Storeroom 1"},
				{Id: uuid.New(), Name: "Air Filter", Sku: "FILT-200", Quantity: 30, MinQuantity: 10, UnitCost: 12.00, Location: "Storeroom 1"},
				{Id: uuid.New(), Name: "Bearing Assembly", Sku: "BRG-300", Quantity: 6, MinQuantity: 2, UnitCost: 89.99, Location: "Storeroom 2"},
			}

			err = db.Transaction(func(txn *gorm.DB) error {
				for i := range assets {
					if err := txn.Create(&assets[i]).Error; err != nil {
						return err
					}
				}
				for i := range parts {
					if err := txn.Create(&parts[i]).Error; err != nil {
						return err
					}
				}
				for i := range assets {
					schedule := schema.MaintenanceSchedule{
						Id:           uuid.New(),
						AssetId:      assets[i].Id,
						Title:        fmt.Sprintf("Quarterly inspection: %v", assets[i].Name),
						Priority:     schema.PriorityMedium,
						IntervalDays: 90,
						NextDueAt:    now.AddDate(0, 0, 90),
						Active:       true,
					}
					if err := txn.Create(&schedule).Error; err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("error seeding database: %w", err)
			}

			fmt.Printf("%s %d assets, %d parts, %d schedules\n",
				color.New(color.FgGreen).Sprint("seeded"), len(assets), len(parts), len(assets))
			return nil
		},
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "chatterfix-admin",
		Short: "Operator tooling for the maintenance platform",
	}

	var envFile string
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "File to load env variables from")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("error loading .env file '%v': %w", envFile, err)
			}
		}
		return nil
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(createAdminCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
