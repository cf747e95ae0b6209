package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"mindbridge/internal/db/dbtest"
	"mindbridge/internal/model"
)

type fixture struct {
	users    UserRepository
	convs    ConversationRepository
	messages MessageRepository
}

func newFixture(t *testing.T) fixture {
	gormDB := dbtest.Open(t)
	return fixture{
		users:    NewUserRepository(gormDB),
		convs:    NewConversationRepository(gormDB),
		messages: NewMessageRepository(gormDB),
	}
}

func (f fixture) user(t *testing.T, name string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{Username: name, PasswordHash: "x", Role: role, IsActive: true}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f fixture) conversation(t *testing.T, owner *model.User, urgency model.Urgency, assignee *model.User) *model.Conversation {
	t.Helper()
	conv := &model.Conversation{UserID: owner.ID, Category: model.CategoryAcademic, Urgency: urgency}
	if assignee != nil {
		id := assignee.ID
		conv.AssignedTo = &id
		conv.Status = model.StatusInProgress
	}
	first := &model.Message{SenderID: owner.ID, SenderType: model.SenderStudent, Content: "hello"}
	require.NoError(t, f.convs.CreateWithMessage(context.Background(), conv, first))
	return conv
}

func (f fixture) message(t *testing.T, conv *model.Conversation, sender *model.User, st model.SenderType) *model.Message {
	t.Helper()
	msg := &model.Message{ConversationID: conv.ID, SenderID: sender.ID, SenderType: st, Content: "reply"}
	require.NoError(t, f.messages.Create(context.Background(), msg))
	return msg
}

func TestConversationRepository_CreateWithMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.user(t, "student", model.RoleStudent)

	conv := f.conversation(t, student, "", nil)

	loaded, err := f.convs.FindByIDWithMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNew, loaded.Status)
	assert.Equal(t, model.UrgencyMedium, loaded.Urgency)
	assert.Nil(t, loaded.AssignedTo)
	require.NotNil(t, loaded.User)
	assert.Equal(t, "student", loaded.User.Username)
	require.Len(t, loaded.Messages, 1)
	assert.Equal(t, conv.ID, loaded.Messages[0].ConversationID)
}

func TestConversationRepository_ListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "a", model.RoleStudent)
	b := f.user(t, "b", model.RoleStudent)
	c := f.user(t, "c", model.RoleCounselor)
	d := f.user(t, "d", model.RoleCounselor)

	open := f.conversation(t, a, model.UrgencyLow, nil)
	mine := f.conversation(t, b, model.UrgencyHigh, c)
	theirs := f.conversation(t, b, model.UrgencyEmergency, d)
	require.NoError(t, f.convs.UpdateFields(ctx, theirs.ID, map[string]interface{}{"status": model.StatusClosed}))

	owned, err := f.convs.List(ctx, ConversationFilter{UserID: &b.ID})
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	visible, err := f.convs.List(ctx, ConversationFilter{VisibleTo: &c.ID, OldestFirst: true})
	require.NoError(t, err)
	require.Len(t, visible, 2)
	assert.Equal(t, open.ID, visible[0].ID)
	assert.Equal(t, mine.ID, visible[1].ID)

	openOnly, err := f.convs.List(ctx, ConversationFilter{Statuses: model.OpenStatuses()})
	require.NoError(t, err)
	assert.Len(t, openOnly, 2)

	byUrgency, err := f.convs.List(ctx, ConversationFilter{Urgency: model.UrgencyEmergency})
	require.NoError(t, err)
	require.Len(t, byUrgency, 1)
	assert.Equal(t, theirs.ID, byUrgency[0].ID)
}

func TestConversationRepository_CountByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "a", model.RoleStudent)
	c := f.user(t, "c", model.RoleCounselor)

	f.conversation(t, a, model.UrgencyLow, nil)
	f.conversation(t, a, model.UrgencyLow, nil)
	f.conversation(t, a, model.UrgencyHigh, c)

	rows, err := f.convs.CountByStatus(ctx, ConversationFilter{UserID: &a.ID})
	require.NoError(t, err)

	counts := map[string]int64{}
	for _, row := range rows {
		counts[row.Bucket] = row.Total
	}
	assert.Equal(t, int64(2), counts[string(model.StatusNew)])
	assert.Equal(t, int64(1), counts[string(model.StatusInProgress)])
}

func TestConversationRepository_UpdateFieldsMissing(t *testing.T) {
	f := newFixture(t)
	err := f.convs.UpdateFields(context.Background(), uuid.New(), map[string]interface{}{"status": model.StatusClosed})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestMessageRepository_MarkAllReadIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.user(t, "s", model.RoleStudent)
	counselor := f.user(t, "c", model.RoleCounselor)
	conv := f.conversation(t, student, model.UrgencyHigh, counselor)

	f.message(t, conv, counselor, model.SenderCounselor)
	f.message(t, conv, counselor, model.SenderCounselor)

	n, err := f.messages.MarkAllRead(ctx, conv.ID, model.SenderCounselor)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = f.messages.MarkAllRead(ctx, conv.ID, model.SenderCounselor)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	msgs, err := f.messages.ListByConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for _, m := range msgs {
		if m.SenderType == model.SenderCounselor {
			assert.True(t, m.IsRead)
		} else {
			assert.False(t, m.IsRead, "the student's own opening message is untouched")
		}
	}
}

func TestMessageRepository_CountUnread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s1 := f.user(t, "s1", model.RoleStudent)
	s2 := f.user(t, "s2", model.RoleStudent)
	c := f.user(t, "c", model.RoleCounselor)

	conv1 := f.conversation(t, s1, model.UrgencyHigh, c)
	f.conversation(t, s2, model.UrgencyLow, nil)
	f.message(t, conv1, c, model.SenderCounselor)

	forStudent, err := f.messages.CountUnread(ctx, UnreadScope{OwnerID: &s1.ID}, model.SenderCounselor)
	require.NoError(t, err)
	assert.Equal(t, int64(1), forStudent)

	forCounselor, err := f.messages.CountUnread(ctx, UnreadScope{AssignedTo: &c.ID}, model.SenderStudent)
	require.NoError(t, err)
	assert.Equal(t, int64(1), forCounselor, "only the opening message of the assigned conversation")
}

func TestMessageRepository_FindInConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.user(t, "s", model.RoleStudent)
	conv := f.conversation(t, s, model.UrgencyLow, nil)
	other := f.conversation(t, s, model.UrgencyLow, nil)
	msg := f.message(t, conv, s, model.SenderStudent)

	found, err := f.messages.FindInConversation(ctx, conv.ID, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, found.ID)

	_, err = f.messages.FindInConversation(ctx, other.ID, msg.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepository_UniqueUsername(t *testing.T) {
	f := newFixture(t)
	f.user(t, "taken", model.RoleStudent)

	err := f.users.Create(context.Background(), &model.User{Username: "taken", PasswordHash: "x", Role: model.RoleStudent})
	assert.Error(t, err)
}

func TestUserRepository_DeleteCascade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.user(t, "s", model.RoleStudent)
	t2 := f.user(t, "t", model.RoleStudent)
	c := f.user(t, "c", model.RoleCounselor)

	owned := f.conversation(t, s, model.UrgencyLow, nil)
	assigned := f.conversation(t, t2, model.UrgencyHigh, c)
	untouched := f.conversation(t, t2, model.UrgencyLow, nil)
	reply := f.message(t, assigned, c, model.SenderCounselor)

	require.NoError(t, f.users.DeleteCascade(ctx, c.ID))

	_, err := f.users.FindByID(ctx, c.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = f.convs.FindByID(ctx, assigned.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = f.messages.FindInConversation(ctx, assigned.ID, reply.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	msgs, err := f.messages.ListByConversation(ctx, assigned.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, err = f.convs.FindByID(ctx, owned.ID)
	assert.NoError(t, err)
	_, err = f.convs.FindByID(ctx, untouched.ID)
	assert.NoError(t, err)

	require.NoError(t, f.users.DeleteCascade(ctx, s.ID))
	_, err = f.convs.FindByID(ctx, owned.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepository_DeleteCascadeUnknown(t *testing.T) {
	f := newFixture(t)
	err := f.users.DeleteCascade(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepository_ListAndActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "s", model.RoleStudent)
	zed := f.user(t, "zed", model.RoleCounselor)
	f.user(t, "amy", model.RoleCounselor)

	all, err := f.users.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, f.users.SetActive(ctx, zed.ID, false))
	active, err := f.users.ListActiveByRole(ctx, model.RoleCounselor)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "amy", active[0].Username)

	assert.ErrorIs(t, f.users.SetActive(ctx, uuid.New(), true), gorm.ErrRecordNotFound)
}
