package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/chatterbox/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatFixture(t *testing.T) (*ChatService, *memStore) {
	t.Helper()
	store := newMemStore()
	for _, id := range []string{"a", "b", "c", "d"} {
		store.addUser(id, "user "+id, id+"@example.com")
	}
	return NewChatService(newTxDB(t), store, nopLog), store
}

func userIDs(views []UserView) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.ID)
	}
	return out
}

func TestAccessDirect_Idempotent(t *testing.T) {
	ctx := context.Background()
	s, store := newChatFixture(t)

	first, err := s.AccessDirect(ctx, "a", "b")
	require.NoError(t, err)
	assert.False(t, first.IsGroupChat)
	assert.Equal(t, "sender", first.ChatName)
	assert.ElementsMatch(t, []string{"a", "b"}, userIDs(first.Users))
	assert.Nil(t, first.GroupAdmin)

	again, err := s.AccessDirect(ctx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Len(t, store.chats, 1)
}

func TestAccessDirect_ConcurrentCreatesOneChat(t *testing.T) {
	ctx := context.Background()
	s, store := newChatFixture(t)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			caller, other := "a", "b"
			if i%2 == 1 {
				caller, other = other, caller
			}
			v, err := s.AccessDirect(ctx, caller, other)
			if assert.NoError(t, err) {
				ids[i] = v.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, store.chats, 1)
}

func TestAccessDirect_Errors(t *testing.T) {
	ctx := context.Background()
	s, _ := newChatFixture(t)

	_, err := s.AccessDirect(ctx, "a", "a")
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = s.AccessDirect(ctx, "a", "")
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = s.AccessDirect(ctx, "a", "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestCreateGroup(t *testing.T) {
	ctx := context.Background()
	s, _ := newChatFixture(t)

	t.Run("needs two others", func(t *testing.T) {
		_, err := s.CreateGroup(ctx, "a", "g", []string{"b", "b", "a"})
		assert.ErrorIs(t, err, common.ErrorValidation)
		assert.Contains(t, err.Error(), "at least 2 users besides you")
	})

	t.Run("unknown member", func(t *testing.T) {
		_, err := s.CreateGroup(ctx, "a", "g", []string{"b", "ghost"})
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := s.CreateGroup(ctx, "a", "  ", []string{"b", "c"})
		assert.ErrorIs(t, err, common.ErrorValidation)
	})

	t.Run("ok", func(t *testing.T) {
		g, err := s.CreateGroup(ctx, "a", "friends", []string{"b", "c", "b"})
		require.NoError(t, err)
		assert.True(t, g.IsGroupChat)
		assert.Equal(t, []string{"b", "c", "a"}, userIDs(g.Users))
		require.NotNil(t, g.GroupAdmin)
		assert.Equal(t, "a", g.GroupAdmin.ID)
	})
}

func TestGroup_RenameAndMembership(t *testing.T) {
	ctx := context.Background()
	s, _ := newChatFixture(t)

	g, err := s.CreateGroup(ctx, "a", "friends", []string{"b", "c"})
	require.NoError(t, err)

	renamed, err := s.RenameGroup(ctx, "b", g.ID, "pals")
	require.NoError(t, err)
	assert.Equal(t, "pals", renamed.ChatName)

	_, err = s.RenameGroup(ctx, "d", g.ID, "x")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = s.AddMember(ctx, "a", g.ID, "b")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	_, err = s.AddMember(ctx, "a", g.ID, "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	added, err := s.AddMember(ctx, "a", g.ID, "d")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a", "d"}, userIDs(added.Users))

	_, err = s.RemoveMember(ctx, "a", g.ID, "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGroup_OperationsRejectDirectChats(t *testing.T) {
	ctx := context.Background()
	s, _ := newChatFixture(t)

	dm, err := s.AccessDirect(ctx, "a", "b")
	require.NoError(t, err)

	_, err = s.RenameGroup(ctx, "a", dm.ID, "x")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = s.AddMember(ctx, "a", dm.ID, "c")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = s.RemoveMember(ctx, "a", dm.ID, "b")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRemoveMember_AdminReassigned(t *testing.T) {
	ctx := context.Background()
	s, store := newChatFixture(t)

	g, err := s.CreateGroup(ctx, "a", "friends", []string{"b", "c"})
	require.NoError(t, err)

	out, err := s.RemoveMember(ctx, "a", g.ID, "a")
	require.NoError(t, err)
	require.NotNil(t, out.GroupAdmin)
	assert.Equal(t, "b", out.GroupAdmin.ID)
	assert.Equal(t, []string{"b", "c"}, userIDs(out.Users))
	assert.Equal(t, "b", store.chats[g.ID].AdminID)

	_, err = s.RemoveMember(ctx, "b", g.ID, "c")
	require.NoError(t, err)

	_, err = s.RemoveMember(ctx, "b", g.ID, "b")
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestListChats_NewestActivityFirst(t *testing.T) {
	ctx := context.Background()
	s, store := newChatFixture(t)

	older, err := s.AccessDirect(ctx, "a", "b")
	require.NoError(t, err)
	newer, err := s.AccessDirect(ctx, "a", "c")
	require.NoError(t, err)
	_, err = s.AccessDirect(ctx, "b", "c")
	require.NoError(t, err)

	store.chats[older.ID].UpdatedAt = time.Now().Add(-time.Hour)
	store.chats[newer.ID].UpdatedAt = time.Now()

	got, err := s.List(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Equal(t, older.ID, got[1].ID)
}
