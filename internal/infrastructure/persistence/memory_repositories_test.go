package persistence

import (
	"context"
	"testing"

	"github.com/cipherroom/gateway/internal/domain/entity"
)

func TestMemoryRoomRepositoryRoundTripsMembers(t *testing.T) {
	repo := NewMemoryRoomRepository()
	room, err := entity.NewRoom("room-1", "General", []byte("sealed"))
	if err != nil {
		t.Fatalf("new room: %v", err)
	}
	if err := room.AddMember(entity.NewMember("mem-1", "user-1", "room-1")); err != nil {
		t.Fatalf("add member: %v", err)
	}

	ctx := context.Background()
	if err := repo.Save(ctx, room); err != nil {
		t.Fatalf("save: %v", err)
	}

	found, err := repo.FindByID(ctx, "room-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !found.HasMember("user-1") {
		t.Fatal("expected the saved membership to round-trip")
	}

	if err := repo.Delete(ctx, "room-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.FindByID(ctx, "room-1"); err == nil {
		t.Fatal("expected deleted room to be gone")
	}
}

func TestMemoryWorkflowRepositoryFindsByTriggerService(t *testing.T) {
	repo := NewMemoryWorkflowRepository()
	wf, err := entity.NewWorkflowDefinition("wf-1", "daily-digest", "", []entity.Trigger{
		{Type: entity.TriggerWebhook, Service: "whatsapp", Event: "message_received"},
	}, []entity.Step{
		{ID: "step-1", Service: "mailgun", Action: "send_email"},
	}, nil)
	if err != nil {
		t.Fatalf("new workflow: %v", err)
	}

	ctx := context.Background()
	if err := repo.Save(ctx, wf); err != nil {
		t.Fatalf("save: %v", err)
	}

	matches, err := repo.FindByTriggerService(ctx, "whatsapp")
	if err != nil {
		t.Fatalf("find by trigger service: %v", err)
	}
	if len(matches) != 1 || matches[0].Name() != "daily-digest" {
		t.Fatalf("expected one matching workflow, got %v", matches)
	}

	if _, err := repo.FindByTriggerService(ctx, "gmail"); err != nil {
		t.Fatalf("unexpected error for a service with no matches: %v", err)
	}
}

func TestMemoryIntegrationRepositoryScopesByUserAndType(t *testing.T) {
	repo := NewMemoryIntegrationRepository()
	integration := entity.NewIntegration("user-1", entity.IntegrationGmail)
	integration.Connect([]byte("sealed-creds"))

	ctx := context.Background()
	if err := repo.Save(ctx, integration); err != nil {
		t.Fatalf("save: %v", err)
	}

	found, err := repo.Find(ctx, "user-1", entity.IntegrationGmail)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !found.IsConnected {
		t.Fatal("expected connected integration to round-trip")
	}

	if _, err := repo.Find(ctx, "user-2", entity.IntegrationGmail); err == nil {
		t.Fatal("expected lookup for a different user to miss")
	}
}

func TestMemoryDeferredExecutionRepositoryFindDueOrdersByNextAttempt(t *testing.T) {
	repo := NewMemoryDeferredExecutionRepository()
	ctx := context.Background()

	early := entity.NewDeferredExecution("d-1", "wf-1", entity.TriggerManual, nil)
	late := entity.NewDeferredExecution("d-2", "wf-1", entity.TriggerManual, nil)
	late.ScheduleRetry("transient failure", 0) // nextAttemptAt becomes "now", still due immediately

	if err := repo.Save(ctx, early); err != nil {
		t.Fatalf("save early: %v", err)
	}
	if err := repo.Save(ctx, late); err != nil {
		t.Fatalf("save late: %v", err)
	}

	due, err := repo.FindDue(ctx, 10)
	if err != nil {
		t.Fatalf("find due: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected both executions to be due, got %d", len(due))
	}
	if due[0].ID() != "d-1" {
		t.Fatalf("expected d-1 (earliest next attempt) first, got %s", due[0].ID())
	}
}
