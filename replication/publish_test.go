package replication_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"dosage/game"
	"dosage/game/balance"
	"dosage/replication"
	"dosage/replication/mocks"
)

func TestReplicator_PublishFailureKeepsLocalState(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockPublisher(ctrl)

	engine, err := game.NewEngine(balance.Default())
	require.NoError(t, err)
	store := game.NewStore(engine, nil)

	var failures []error
	rep, err := replication.NewReplicator(replication.Config{
		Role:      replication.RoleGuest,
		Room:      replication.Room{Code: "ABCDEF"},
		Self:      game.PlayerSpec{ID: "p2", Name: "Bob"},
		Store:     store,
		Publisher: pub,
		Now:       func() time.Time { return time.Unix(100, 0) },
		Hooks:     replication.Hooks{PublishFailed: func(err error) { failures = append(failures, err) }},
	})
	require.NoError(t, err)

	store.Replace(context.Background(), mustStart(t, engine))

	boom := errors.New("socket closed")
	pub.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, env replication.Envelope) error {
			assert.Equal(t, replication.EventSelectionConfirmed, env.Type)
			assert.Equal(t, "p2", env.PlayerID)
			assert.Equal(t, uint64(1), env.Sequence)
			return boom
		})

	require.NoError(t, rep.Perform(context.Background(), game.ConfirmSelection{PlayerID: "p2"}))
	assert.True(t, store.State().Confirmed["p2"])
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], boom)
}

func TestReplicator_RejectedIntentPublishesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockPublisher(ctrl)
	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	engine, err := game.NewEngine(balance.Default())
	require.NoError(t, err)
	rep, err := replication.NewReplicator(replication.Config{
		Role:      replication.RoleHost,
		Self:      game.PlayerSpec{ID: "p1"},
		Store:     game.NewStore(engine, nil),
		Publisher: pub,
	})
	require.NoError(t, err)

	require.NoError(t, rep.Perform(context.Background(), game.ConsumePill{PlayerID: "p1", PillID: "nope"}))
}

func mustStart(t *testing.T, engine *game.Engine) game.State {
	t.Helper()
	s, err := engine.Reduce(game.NewState(), game.StartGame{
		Players: []game.PlayerSpec{{ID: "p1", Name: "Alice"}, {ID: "p2", Name: "Bob"}},
		Seed:    8,
	})
	require.NoError(t, err)
	return s
}
