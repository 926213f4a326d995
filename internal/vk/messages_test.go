package vk

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/spigell/love-machine/internal/models"
)

func TestSendSuggestion(t *testing.T) {
	api, client := newFakeAPI(t)
	client.Keyboard = NewKeyboard([]string{"next"}, []string{"favorite", "blacklist"})
	api.handle("messages.send", func(map[string]string) any { return ok(1) })

	err := client.SendSuggestion(context.Background(), 3, models.Suggestion{
		CandidateID: 9,
		Name:        "Анна Петрова",
		ProfileLink: "https://vk.com/id9",
		MediaRefs:   []string{"photo9_1", "photo9_2", "photo9_3"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	form := api.lastForm("messages.send")
	if form["user_id"] != "3" || form["access_token"] != "group" {
		t.Fatalf("unexpected form %v", form)
	}
	if form["message"] != "Анна Петрова\nhttps://vk.com/id9" {
		t.Fatalf("unexpected message %q", form["message"])
	}
	if form["attachment"] != "photo9_1,photo9_2,photo9_3" {
		t.Fatalf("unexpected attachment %q", form["attachment"])
	}
	if form["random_id"] == "" {
		t.Fatal("random_id is required")
	}

	var kb Keyboard
	if err := json.Unmarshal([]byte(form["keyboard"]), &kb); err != nil {
		t.Fatalf("keyboard is not valid json: %v", err)
	}
	if len(kb.Buttons) != 2 || kb.Buttons[1][1].Action.Label != "blacklist" {
		t.Fatalf("unexpected keyboard %#v", kb)
	}
}

func TestSendWithoutKeyboard(t *testing.T) {
	api, client := newFakeAPI(t)
	api.handle("messages.send", func(map[string]string) any { return ok(1) })

	if err := client.Send(context.Background(), 3, "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	form := api.lastForm("messages.send")
	if _, ok := form["keyboard"]; ok {
		t.Fatal("keyboard must be omitted")
	}
	if _, ok := form["attachment"]; ok {
		t.Fatal("attachment must be omitted")
	}
}
