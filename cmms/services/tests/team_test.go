package tests

import (
	"testing"
)

func TestCreateAndListTeams(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	_, err = user.createTeam("mechanical")
	if err == nil {
		t.Fatal("only admins can create teams")
	}

	teamId, err := admin.createTeam("mechanical")
	if err != nil {
		t.Fatal(err)
	}

	_, err = admin.createTeam("mechanical")
	if err == nil {
		t.Fatal("duplicate team name should fail")
	}

	teams, err := user.listTeams()
	if err != nil {
		t.Fatal(err)
	}
	if len(teams) != 1 || teams[0].Id.String() != teamId || teams[0].Name != "mechanical" {
		t.Fatalf("invalid teams %v", teams)
	}
}

func TestTeamMembership(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	lead, err := env.newUser("lead")
	if err != nil {
		t.Fatal(err)
	}
	member, err := env.newUser("member")
	if err != nil {
		t.Fatal(err)
	}
	outsider, err := env.newUser("outsider")
	if err != nil {
		t.Fatal(err)
	}

	teamId, err := admin.createTeam("electrical")
	if err != nil {
		t.Fatal(err)
	}

	if err := admin.addUserToTeam(teamId, lead.userId); err != nil {
		t.Fatal(err)
	}
	if err := admin.addUserToTeam(teamId, lead.userId); err == nil {
		t.Fatal("duplicate membership should fail")
	}
	if err := admin.addTeamLead(teamId, lead.userId); err != nil {
		t.Fatal(err)
	}

	// Team leads can manage membership, regular members cannot.
	if err := lead.addUserToTeam(teamId, member.userId); err != nil {
		t.Fatal(err)
	}
	if err := member.addUserToTeam(teamId, outsider.userId); err == nil {
		t.Fatal("members cannot manage membership")
	}

	users, err := member.listTeamUsers(teamId)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 team users, got %d", len(users))
	}

	_, err = outsider.listTeamUsers(teamId)
	if err == nil {
		t.Fatal("outsiders cannot view team users")
	}

	if err := lead.removeUserFromTeam(teamId, member.userId); err != nil {
		t.Fatal(err)
	}

	users, err = lead.listTeamUsers(teamId)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 team user after removal, got %d", len(users))
	}
}

func TestDeleteTeamDetachesWorkOrders(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	manager, err := env.newManager("mgr")
	if err != nil {
		t.Fatal(err)
	}

	teamId, err := admin.createTeam("facilities")
	if err != nil {
		t.Fatal(err)
	}
	if err := admin.addUserToTeam(teamId, manager.userId); err != nil {
		t.Fatal(err)
	}

	assetId, err := manager.createAsset(map[string]interface{}{"name": "Boiler", "tag": "B-001"})
	if err != nil {
		t.Fatal(err)
	}

	workOrderId, err := manager.createWorkOrder(map[string]interface{}{
		"title": "inspect boiler", "asset_id": assetId, "team_id": teamId,
	})
	if err != nil {
		t.Fatal(err)
	}

	teamOrders, err := manager.listTeamWorkOrders(teamId)
	if err != nil {
		t.Fatal(err)
	}
	if len(teamOrders) != 1 {
		t.Fatalf("expected 1 team work order, got %d", len(teamOrders))
	}

	err = manager.deleteTeam(teamId)
	if err == nil {
		t.Fatal("only admins can delete teams")
	}

	if err := admin.deleteTeam(teamId); err != nil {
		t.Fatal(err)
	}

	workOrders, err := admin.listWorkOrders("")
	if err != nil {
		t.Fatal(err)
	}
	if len(workOrders) != 1 || workOrders[0].Id.String() != workOrderId || workOrders[0].TeamId != nil {
		t.Fatalf("work order should survive with team detached, got %v", workOrders)
	}
}
