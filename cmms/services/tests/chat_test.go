package tests

import (
	"fmt"
	"testing"

	"chatterfix/cmms/chat"
	"chatterfix/cmms/schema"
)

func TestChatConversation(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	reply, err := user.sendChatMessage("", "why is the pump vibrating?")
	if err != nil {
		t.Fatal(err)
	}
	if reply.Fallback || reply.Reply != "check the pump bearings" {
		t.Fatalf("invalid reply %v", reply)
	}
	if reply.SessionId == "" {
		t.Fatal("server should assign a session id")
	}

	reply2, err := user.sendChatMessage(reply.SessionId, "which bearings?")
	if err != nil {
		t.Fatal(err)
	}
	if reply2.SessionId != reply.SessionId {
		t.Fatal("follow up should stay in the same session")
	}

	history, err := user.chatSession(reply.SessionId)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 messages in session, got %d", len(history))
	}
	if history[0].Role != schema.ChatRoleUser || history[1].Role != schema.ChatRoleAssistant {
		t.Fatalf("messages out of order: %v", history)
	}
}

func TestChatHistoryReplayIsBounded(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	sessionId := ""
	for i := 0; i < 12; i++ {
		reply, err := user.sendChatMessage(sessionId, fmt.Sprintf("message %d", i))
		if err != nil {
			t.Fatal(err)
		}
		sessionId = reply.SessionId
	}

	// After 11 exchanges the session holds 22 messages, but only the last 10
	// turns go to the provider: system prompt + 20 history + the new message.
	last := env.llm.calls[len(env.llm.calls)-1]
	if len(last) != 22 {
		t.Fatalf("expected 22 messages sent to the provider, got %d", len(last))
	}
	if last[0].Role != "system" {
		t.Fatalf("first replayed message should be the system prompt, got %v", last[0].Role)
	}
	if last[1].Content == "message 0" {
		t.Fatal("oldest turns should be dropped from the replayed history")
	}
}

func TestChatFallback(t *testing.T) {
	env := setupTestEnv(t)
	env.llm.fail = true

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	// Provider failures are not surfaced as errors; the widget gets a canned
	// reply with a 200.
	reply, err := user.sendChatMessage("", "hello?")
	if err != nil {
		t.Fatal(err)
	}
	if !reply.Fallback || reply.Reply != chat.FallbackReply {
		t.Fatalf("expected fallback reply, got %v", reply)
	}

	history, err := user.chatSession(reply.SessionId)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[1].Content != chat.FallbackReply {
		t.Fatalf("fallback reply should be persisted, got %v", history)
	}
}

func TestChatSessionsArePrivate(t *testing.T) {
	env := setupTestEnv(t)

	userA, err := env.newUser("aaa")
	if err != nil {
		t.Fatal(err)
	}
	userB, err := env.newUser("bbb")
	if err != nil {
		t.Fatal(err)
	}

	reply, err := userA.sendChatMessage("", "secret question")
	if err != nil {
		t.Fatal(err)
	}

	history, err := userB.chatSession(reply.SessionId)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 0 {
		t.Fatalf("users cannot read other users' sessions, got %v", history)
	}
}
