package tests

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"chatterfix/cmms/auth"
	"chatterfix/cmms/chat"
	"chatterfix/cmms/health"
	"chatterfix/cmms/schema"
	"chatterfix/cmms/services"
	"chatterfix/cmms/storage"

	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type llmStub struct {
	reply string
	fail  bool
	calls [][]chat.Message
}

func (l *llmStub) Generate(ctx context.Context, messages []chat.Message) (string, error) {
	l.calls = append(l.calls, messages)
	if l.fail {
		return "", errors.New("llm stub configured to fail")
	}
	return l.reply, nil
}

type testEnv struct {
	chatterfix services.ChatterFix
	api        chi.Router
	db         *gorm.DB
	storage    storage.Storage
	llm        *llmStub
}

const (
	adminUsername = "admin123"
	adminEmail    = "admin123@mail.com"
	adminPassword = "admin_password123"
)

func setupTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}

	err = db.AutoMigrate(schema.AllTables()...)
	if err != nil {
		t.Fatal(err)
	}

	tmpDir := t.TempDir()
	storagePath := filepath.Join(tmpDir, "/storage")
	err = os.MkdirAll(storagePath, 0777)
	if err != nil {
		t.Fatalf("error creating storage directory: %v", err)
	}

	store := storage.NewSharedDisk(storagePath)

	secret := []byte("290zcv02ai249")

	userAuth, err := auth.NewBasicIdentityProvider(
		db,
		auth.NewAuditLogger(new(bytes.Buffer)),
		auth.BasicProviderArgs{
			Secret:            secret,
			AdminUsername:     adminUsername,
			AdminEmail:        adminEmail,
			AdminPassword:     adminPassword,
			AllowDirectSignup: true,
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	llm := &llmStub{reply: "check the pump bearings"}

	chatterfix := services.NewChatterFix(db, store, userAuth, llm, health.DefaultPolicy())

	return &testEnv{chatterfix: chatterfix, api: chatterfix.Routes(), db: db, storage: store, llm: llm}
}

func (t *testEnv) newClient() client {
	return client{api: t.api}
}

func (t *testEnv) newUser(username string) (client, error) {
	c := t.newClient()
	login, err := c.signup(username, username+"@mail.com", username+"_password")
	if err != nil {
		return client{}, err
	}

	err = c.login(login)
	if err != nil {
		return client{}, err
	}

	return c, nil
}

func (t *testEnv) adminClient() (client, error) {
	c := t.newClient()
	err := c.login(loginInfo{Email: adminEmail, Password: adminPassword})
	return c, err
}

// newManager creates a user and has the admin bump their role to manager.
func (t *testEnv) newManager(username string) (client, error) {
	c, err := t.newUser(username)
	if err != nil {
		return client{}, err
	}

	admin, err := t.adminClient()
	if err != nil {
		return client{}, err
	}

	if err := admin.setRole(c.userId, schema.RoleManager); err != nil {
		return client{}, err
	}

	return c, nil
}
