package service

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/saiquwi/Support-chat/internal/errors"
	"github.com/saiquwi/Support-chat/internal/model"
)

func TestDirectory_CreateChat(t *testing.T) {
	deps := setupServiceTest(t)
	ctx := context.Background()

	alice := deps.newUser(t, model.RoleClient)
	bob := deps.newUser(t, model.RoleClient)
	carol := deps.newUser(t, model.RoleClient)

	// 两人会话是 DIRECT
	direct, err := deps.directory.CreateChat(ctx, alice.ID, &CreateChatRequest{
		ParticipantIDs: []int64{bob.ID},
	})
	if err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}
	deps.trackChat(direct.ID)
	if direct.Type != model.ChatDirect {
		t.Errorf("Expected DIRECT, got %s", direct.Type)
	}
	if len(direct.Participants) != 2 {
		t.Errorf("Expected 2 participants, got %d", len(direct.Participants))
	}

	// 三人以上是 GROUP，空标题得到默认值
	group, err := deps.directory.CreateChat(ctx, alice.ID, &CreateChatRequest{
		ParticipantIDs: []int64{bob.ID, carol.ID},
	})
	if err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}
	deps.trackChat(group.ID)
	if group.Type != model.ChatGroup {
		t.Errorf("Expected GROUP, got %s", group.Type)
	}
	if group.Title != "Group Chat" {
		t.Errorf("Expected default title, got %q", group.Title)
	}

	// 创建者重复出现在成员列表里会被去重
	dup, err := deps.directory.CreateChat(ctx, alice.ID, &CreateChatRequest{
		ParticipantIDs: []int64{alice.ID, bob.ID},
	})
	if err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}
	deps.trackChat(dup.ID)
	if len(dup.Participants) != 2 {
		t.Errorf("Expected deduped 2 participants, got %d", len(dup.Participants))
	}

	// 凑不齐两个有效成员
	if _, err := deps.directory.CreateChat(ctx, alice.ID, &CreateChatRequest{
		ParticipantIDs: []int64{deps.sfNode.Generate().Int64()},
	}); !errors.Is(err, apperrors.ErrNoParticipants) {
		t.Errorf("Expected ErrNoParticipants, got %v", err)
	}
}

func TestDirectory_ListForUser(t *testing.T) {
	deps := setupServiceTest(t)
	ctx := context.Background()

	alice := deps.newUser(t, model.RoleClient)
	bob := deps.newUser(t, model.RoleClient)
	carol := deps.newUser(t, model.RoleClient)

	first := deps.newChat(t, alice, bob)
	second := deps.newChat(t, alice, carol)

	// 往 first 发消息会刷新其 updated_at，列表里应排到最前
	if _, err := deps.messages.Append(ctx, first.ID, bob.ID, "bump"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	summaries, err := deps.directory.ListForUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("Expected 2 chats, got %d", len(summaries))
	}
	if summaries[0].ID != first.ID {
		t.Errorf("Most recently updated chat should come first")
	}
	if summaries[0].UnreadCount != 1 {
		t.Errorf("Alice unread in first chat should be 1, got %d", summaries[0].UnreadCount)
	}
	if summaries[0].LastMessage == nil || summaries[0].LastMessage.Content != "bump" {
		t.Errorf("LastMessage not populated")
	}
	if summaries[1].ID != second.ID || summaries[1].LastMessage != nil {
		t.Errorf("Empty chat should have nil LastMessage")
	}

	// bob 看同一个会话，未读数是 bob 自己的视角
	bobView, err := deps.directory.ListForUser(ctx, bob.ID)
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if len(bobView) != 1 {
		t.Fatalf("Expected 1 chat for bob, got %d", len(bobView))
	}
	if bobView[0].UnreadCount != 0 {
		t.Errorf("Bob sent the message, his unread should be 0, got %d", bobView[0].UnreadCount)
	}
}

func TestDirectory_GetDetail(t *testing.T) {
	deps := setupServiceTest(t)
	ctx := context.Background()

	alice := deps.newUser(t, model.RoleClient)
	bob := deps.newUser(t, model.RoleClient)
	eve := deps.newUser(t, model.RoleClient)
	chat := deps.newChat(t, alice, bob)

	if _, err := deps.messages.Append(ctx, chat.ID, alice.ID, "hello"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	detail, err := deps.directory.GetDetail(ctx, chat.ID, bob.ID)
	if err != nil {
		t.Fatalf("GetDetail failed: %v", err)
	}
	if len(detail.Participants) != 2 {
		t.Errorf("Expected 2 participants, got %d", len(detail.Participants))
	}
	if len(detail.Messages) != 1 {
		t.Errorf("Expected 1 message, got %d", len(detail.Messages))
	}
	if detail.UnreadCount != 1 {
		t.Errorf("Bob unread should be 1, got %d", detail.UnreadCount)
	}

	if _, err := deps.directory.GetDetail(ctx, chat.ID, eve.ID); !errors.Is(err, apperrors.ErrAccessDenied) {
		t.Errorf("Expected ErrAccessDenied for non-member, got %v", err)
	}
	if _, err := deps.directory.GetDetail(ctx, deps.sfNode.Generate().Int64(), bob.ID); !errors.Is(err, apperrors.ErrChatNotFound) {
		t.Errorf("Expected ErrChatNotFound, got %v", err)
	}
}

func TestDirectory_SupportChat(t *testing.T) {
	deps := setupServiceTest(t)
	ctx := context.Background()

	client := deps.newUser(t, model.RoleClient)
	agent := deps.newUser(t, model.RoleSupport)

	// 在线客服才会被自动匹配
	if _, err := deps.users.UpdateStatus(ctx, agent.ID, model.StatusOnline); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	chat, err := deps.directory.CreateSupportChat(ctx, client.ID, 0)
	if err != nil {
		t.Fatalf("CreateSupportChat failed: %v", err)
	}
	deps.trackChat(chat.ID)
	if chat.Type != model.ChatSupport {
		t.Errorf("Expected SUPPORT, got %s", chat.Type)
	}
	if chat.Title != "Support Chat - "+client.Username {
		t.Errorf("Unexpected title %q", chat.Title)
	}

	found := false
	for _, p := range chat.Participants {
		if p.ID == agent.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("Assigned agent missing from participants")
	}

	// 客服角色不能发起客服会话
	if _, err := deps.directory.CreateSupportChat(ctx, agent.ID, 0); !errors.Is(err, apperrors.ErrOnlyClientAllowed) {
		t.Errorf("Expected ErrOnlyClientAllowed, got %v", err)
	}

	// 指定非客服用户做客服
	other := deps.newUser(t, model.RoleClient)
	if _, err := deps.directory.CreateSupportChat(ctx, client.ID, other.ID); !errors.Is(err, apperrors.ErrNotSupportAgent) {
		t.Errorf("Expected ErrNotSupportAgent, got %v", err)
	}

	// 客服视角能看到这条客服会话
	supportChats, err := deps.directory.SupportChatsForViewer(ctx, agent.ID)
	if err != nil {
		t.Fatalf("SupportChatsForViewer failed: %v", err)
	}
	if len(supportChats) != 1 || supportChats[0].ID != chat.ID {
		t.Errorf("Agent should see the support chat")
	}

	// 普通客户无权走客服视角接口
	if _, err := deps.directory.SupportChatsForViewer(ctx, client.ID); !errors.Is(err, apperrors.ErrAccessDenied) {
		t.Errorf("Expected ErrAccessDenied for client viewer, got %v", err)
	}
}

func TestDirectory_SupportChat_NoAgentOnline(t *testing.T) {
	deps := setupServiceTest(t)
	ctx := context.Background()

	client := deps.newUser(t, model.RoleClient)
	// 建一个离线客服，自动匹配不到
	deps.newUser(t, model.RoleSupport)

	if _, err := deps.directory.CreateSupportChat(ctx, client.ID, 0); !errors.Is(err, apperrors.ErrNoAgentAvailable) {
		t.Errorf("Expected ErrNoAgentAvailable, got %v", err)
	}
}

func TestDirectory_DeleteChat(t *testing.T) {
	deps := setupServiceTest(t)
	ctx := context.Background()

	alice := deps.newUser(t, model.RoleClient)
	bob := deps.newUser(t, model.RoleClient)
	eve := deps.newUser(t, model.RoleClient)
	chat := deps.newChat(t, alice, bob)

	if err := deps.directory.DeleteChat(ctx, chat.ID, eve.ID); !errors.Is(err, apperrors.ErrAccessDenied) {
		t.Errorf("Expected ErrAccessDenied for non-member delete, got %v", err)
	}

	if err := deps.directory.DeleteChat(ctx, chat.ID, alice.ID); err != nil {
		t.Fatalf("DeleteChat failed: %v", err)
	}

	// 停用后从目录消失，成员关系级联失效
	summaries, err := deps.directory.ListForUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	for _, s := range summaries {
		if s.ID == chat.ID {
			t.Errorf("Deactivated chat still listed")
		}
	}

	if _, err := deps.messages.Append(ctx, chat.ID, bob.ID, "too late"); !errors.Is(err, apperrors.ErrChatNotFound) {
		t.Errorf("Expected ErrChatNotFound on deactivated chat, got %v", err)
	}
}
