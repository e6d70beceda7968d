package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibeteen/mural/internal/domain/model"
)

var signedIn = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func setupRedis(t *testing.T, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), "redis://"+mr.Addr(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func stores(t *testing.T) map[string]Store {
	r, _ := setupRedis(t)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  r,
	}
}

func TestStoreContract(t *testing.T) {
	ana := model.Member{ID: "user_ana", FirstName: "Ana", LastName: "Souza", AvatarColor: "#4ECDC4", Role: model.RoleRegular, XP: 40}
	vis := model.Member{ID: "user_vis", FirstName: "Visitante", Role: model.RoleVisitor}

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := s.Load(ctx, ana.ID)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Save(ctx, RecordOf(ana, signedIn)))
			require.NoError(t, s.Save(ctx, RecordOf(vis, signedIn)))

			rec, ok, err := s.Load(ctx, ana.ID)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "Souza", rec.LastName)
			assert.True(t, rec.SignedInAt.Equal(signedIn))

			m := rec.Member()
			assert.Equal(t, ana.ID, m.ID)
			assert.Equal(t, "#4ECDC4", m.AvatarColor)
			assert.Zero(t, m.XP, "gamification is not remembered")

			all, err := s.List(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, "user_ana", all[0].MemberID)
			assert.Equal(t, model.RoleVisitor, all[1].Role)

			require.NoError(t, s.Clear(ctx, ana.ID))
			require.NoError(t, s.Clear(ctx, "nobody"))
			_, ok, err = s.Load(ctx, ana.ID)
			require.NoError(t, err)
			assert.False(t, ok)

			assert.ErrorIs(t, s.Save(ctx, Record{}), ErrInvalidRecord)
		})
	}
}

func TestRedisNamespace(t *testing.T) {
	s, mr := setupRedis(t, WithNamespace("youth_group"))
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, RecordOf(model.Member{ID: "user_bia", FirstName: "Bia"}, signedIn)))
	assert.True(t, mr.Exists("youth_group:user_bia"))
	assert.False(t, mr.Exists(DefaultNamespace+":user_bia"))

	// Foreign keys in the same namespace that are not sessions are ignored.
	require.NoError(t, mr.Set("youth_group:garbage", "not json"))
	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "user_bia", all[0].MemberID)
}

func TestRedisTTL(t *testing.T) {
	s, mr := setupRedis(t, WithTTL(time.Hour))
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, RecordOf(model.Member{ID: "user_caio"}, signedIn)))
	assert.Equal(t, time.Hour, mr.TTL(DefaultNamespace+":user_caio"))

	mr.FastForward(2 * time.Hour)
	_, ok, err := s.Load(ctx, "user_caio")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRedisStoreErrors(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "://bad")
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = NewRedisStore(context.Background(), "redis://"+addr)
	assert.Error(t, err)
}
