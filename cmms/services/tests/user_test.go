package tests

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"chatterfix/cmms/schema"
)

func TestSignupAndLogin(t *testing.T) {
	env := setupTestEnv(t)

	for i := 0; i < 5; i++ {
		username := fmt.Sprintf("user%d", i)
		email := fmt.Sprintf("user%d@mail.com", i)
		password := fmt.Sprintf("user%d_password", i)

		client := env.newClient()
		login, err := client.signup(username, email, password)
		if err != nil {
			t.Fatal(err)
		}

		_, err = client.signup(username, email, password)
		if err == nil {
			t.Fatal("duplicate signup should fail")
		}

		err = client.login(loginInfo{Email: "user@mail.com", Password: password})
		if err == nil {
			t.Fatal("login should fail with wrong email")
		}

		err = client.login(loginInfo{Email: email, Password: "password"})
		if err == nil {
			t.Fatal("login should fail with wrong password")
		}

		err = client.login(login)
		if err != nil {
			t.Fatal(err)
		}

		info, err := client.userInfo()
		if err != nil {
			t.Fatal(err)
		}

		if info.Username != username || info.Email != email || info.Id.String() != client.userId || info.Admin {
			t.Fatalf("invalid info %v", info)
		}

		if info.Role != schema.RoleTechnician {
			t.Fatalf("self signup should create technicians, got %v", info.Role)
		}
	}
}

func TestUserInfoReportsTokenExpiration(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	var res map[string]interface{}
	if err := user.Get("/user/info").Do(&res); err != nil {
		t.Fatal(err)
	}

	expiration, err := time.Parse(time.RFC3339, res["token_expires_at"].(string))
	if err != nil {
		t.Fatal(err)
	}
	if !expiration.After(time.Now()) || time.Until(expiration) > time.Hour {
		t.Fatalf("token expiration should be shortly in the future, got %v", expiration)
	}
}

func TestAddUserWithRole(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	client := env.newClient()

	_, err = user.addUser("xyz", "xyz@mail.com", "123", schema.RoleManager)
	if err == nil {
		t.Fatal("users cannot add users")
	}

	err = client.login(loginInfo{Email: "xyz@mail.com", Password: "123"})
	if err == nil {
		t.Fatal("no login should be created")
	}

	_, err = admin.addUser("xyz", "xyz@mail.com", "123", schema.RoleManager)
	if err != nil {
		t.Fatal(err)
	}

	err = client.login(loginInfo{Email: "xyz@mail.com", Password: "123"})
	if err != nil {
		t.Fatal("new user should be created")
	}

	info, err := client.userInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Role != schema.RoleManager {
		t.Fatalf("expected manager role, got %v", info.Role)
	}
}

func TestSetRole(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	err = user.setRole(user.userId, schema.RoleManager)
	if err == nil {
		t.Fatal("non admins cannot change roles")
	}

	err = admin.setRole(user.userId, "superuser")
	if err == nil || !strings.Contains(err.Error(), "invalid role") {
		t.Fatalf("invalid role should be rejected: %v", err)
	}

	err = admin.setRole(user.userId, schema.RoleAdmin)
	if err == nil {
		t.Fatal("admin role must go through the promotion endpoint")
	}

	err = admin.setRole(user.userId, schema.RoleManager)
	if err != nil {
		t.Fatal(err)
	}

	info, err := user.userInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Role != schema.RoleManager {
		t.Fatalf("expected manager role, got %v", info.Role)
	}
}

func TestPromoteAndDemoteAdmin(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	err = user.promoteAdmin(user.userId)
	if err == nil {
		t.Fatal("users cannot promote themselves")
	}

	err = admin.demoteAdmin(admin.userId)
	if err == nil {
		t.Fatal("cannot demote the last admin")
	}

	err = admin.promoteAdmin(user.userId)
	if err != nil {
		t.Fatal(err)
	}

	info, err := user.userInfo()
	if err != nil {
		t.Fatal(err)
	}
	if !info.Admin || info.Role != schema.RoleAdmin {
		t.Fatalf("expected admin, got %v", info)
	}

	err = admin.demoteAdmin(user.userId)
	if err != nil {
		t.Fatal(err)
	}

	info, err = user.userInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Admin {
		t.Fatal("user should no longer be admin")
	}
}

func TestDeactivateUserReassignsWork(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	manager, err := env.newManager("mgr")
	if err != nil {
		t.Fatal(err)
	}
	tech, err := env.newUser("tech")
	if err != nil {
		t.Fatal(err)
	}

	assetId, err := manager.createAsset(map[string]interface{}{"name": "Pump 1", "tag": "P-001"})
	if err != nil {
		t.Fatal(err)
	}

	workOrderId, err := tech.createWorkOrder(map[string]interface{}{
		"title": "fix pump", "asset_id": assetId, "assigned_to": tech.userId,
	})
	if err != nil {
		t.Fatal(err)
	}

	err = admin.deactivateUser(tech.userId)
	if err != nil {
		t.Fatal(err)
	}

	err = tech.login(loginInfo{Email: "tech@mail.com", Password: "tech_password"})
	if err == nil {
		t.Fatal("deactivated user should not be able to log in")
	}

	workOrders, err := admin.listWorkOrders("?assigned_to=" + admin.userId)
	if err != nil {
		t.Fatal(err)
	}
	if len(workOrders) != 1 || workOrders[0].Id.String() != workOrderId {
		t.Fatalf("open work order should be reassigned to the admin, got %v", workOrders)
	}
}

func TestCannotDeactivateLastAdmin(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	err = admin.deactivateUser(admin.userId)
	if err == nil || !strings.Contains(err.Error(), "no active admins") {
		t.Fatalf("deactivating the only active admin should be rejected: %v", err)
	}

	// The admin account is untouched and can still log in.
	if err := admin.login(loginInfo{Email: adminEmail, Password: adminPassword}); err != nil {
		t.Fatal(err)
	}
}

func TestListUsersHidesInactive(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	userA, err := env.newUser("aaa")
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.newUser("bbb")
	if err != nil {
		t.Fatal(err)
	}

	err = admin.deactivateUser(userA.userId)
	if err != nil {
		t.Fatal(err)
	}

	adminView, err := admin.listUsers()
	if err != nil {
		t.Fatal(err)
	}
	if len(adminView) != 3 {
		t.Fatalf("admins see all users, got %d", len(adminView))
	}

	bbb := env.newClient()
	if err := bbb.login(loginInfo{Email: "bbb@mail.com", Password: "bbb_password"}); err != nil {
		t.Fatal(err)
	}

	userView, err := bbb.listUsers()
	if err != nil {
		t.Fatal(err)
	}
	if len(userView) != 2 {
		t.Fatalf("inactive users should be hidden from non admins, got %d", len(userView))
	}
}
