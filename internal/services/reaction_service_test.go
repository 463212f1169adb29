package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/yaruyo/internal/models"
	apperrors "github.com/charlesng35/yaruyo/pkg/errors"
)

func TestReactionLikeNotifiesOwnerOnce(t *testing.T) {
	env := newTestEnv(t)
	env.mustUser(t, "P1", "パパ")
	env.mustUser(t, "C1", "はなこ")
	env.mustFamily(t, "P1", "C1")
	ctx := context.Background()

	plan := declareAt(t, env, "C1", nil, "math")
	before := len(env.sender.PushesTo("C1"))

	liked, err := env.reactions.Like(ctx, "P1", models.ReactionTargetPlan, plan.ID)
	require.NoError(t, err)
	require.True(t, liked.Liked)
	require.True(t, liked.Created)
	require.True(t, liked.Notified)

	pushes := env.sender.PushesTo("C1")
	require.Len(t, pushes, before+1)
	require.Equal(t, "パパがあなたの「やるよ」に👍しました", pushes[len(pushes)-1].Text)

	again, err := env.reactions.Like(ctx, "P1", models.ReactionTargetPlan, plan.ID)
	require.NoError(t, err)
	require.True(t, again.Liked)
	require.False(t, again.Created)
	require.Len(t, env.sender.PushesTo("C1"), before+1)

	var count int64
	require.NoError(t, env.db.Model(&models.Reaction{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestReactionLikeOnRecordAndSelf(t *testing.T) {
	env := newTestEnv(t)
	env.mustUser(t, "P1", "パパ")
	env.mustUser(t, "C1", "はなこ")
	env.mustFamily(t, "P1", "C1")
	ctx := context.Background()

	plan := declareAt(t, env, "C1", nil, "math")
	recorded, err := env.plans.Record(ctx, "C1", plan.ID, models.ResultAsPlanned, nil)
	require.NoError(t, err)

	before := len(env.sender.Pushes())
	self, err := env.reactions.Like(ctx, "C1", models.ReactionTargetRecord, recorded.Record.ID)
	require.NoError(t, err)
	require.True(t, self.Created)
	require.False(t, self.Notified)
	require.Len(t, env.sender.Pushes(), before)

	_, err = env.reactions.Like(ctx, "P1", models.ReactionTargetRecord, recorded.Record.ID)
	require.NoError(t, err)
	pushes := env.sender.PushesTo("C1")
	require.Equal(t, "パパがあなたの「やったよ」に👍しました", pushes[len(pushes)-1].Text)
}

func TestReactionLikeErrors(t *testing.T) {
	env := newTestEnv(t)
	env.mustUser(t, "P1", "")
	env.mustUser(t, "P2", "")
	env.mustUser(t, "X", "")
	env.mustFamily(t, "P1")
	env.mustFamily(t, "P2")
	ctx := context.Background()

	plan := declareAt(t, env, "P1", nil, "math")

	_, err := env.reactions.Like(ctx, "P2", models.ReactionTargetPlan, plan.ID)
	require.ErrorIs(t, err, ErrFamilyMismatch)

	_, err = env.reactions.Like(ctx, "P1", models.ReactionTargetPlan, "missing")
	require.ErrorIs(t, err, ErrTargetNotFound)

	_, err = env.reactions.Like(ctx, "P1", "draft", plan.ID)
	require.Equal(t, apperrors.CodeInvalidArgument, apperrors.KindOf(err))

	_, err = env.reactions.Like(ctx, "P1", models.ReactionTargetPlan, " ")
	require.Equal(t, apperrors.CodeInvalidArgument, apperrors.KindOf(err))

	_, err = env.reactions.Like(ctx, "X", models.ReactionTargetPlan, plan.ID)
	require.ErrorIs(t, err, ErrNotInFamily)
}

func TestReactionListMine(t *testing.T) {
	env := newTestEnv(t)
	env.mustUser(t, "P1", "")
	env.mustUser(t, "C1", "")
	env.mustFamily(t, "P1", "C1")
	ctx := context.Background()

	a := declareAt(t, env, "C1", nil, "math")
	b := declareAt(t, env, "C1", nil, "en")

	_, err := env.reactions.Like(ctx, "P1", models.ReactionTargetPlan, b.ID)
	require.NoError(t, err)

	liked, err := env.reactions.ListMine(ctx, "P1", models.ReactionTargetPlan, []string{a.ID, " " + b.ID + " ", ""})
	require.NoError(t, err)
	require.Equal(t, []string{b.ID}, liked)

	liked, err = env.reactions.ListMine(ctx, "C1", models.ReactionTargetPlan, []string{a.ID, b.ID})
	require.NoError(t, err)
	require.Empty(t, liked)

	liked, err = env.reactions.ListMine(ctx, "P1", models.ReactionTargetRecord, []string{b.ID})
	require.NoError(t, err)
	require.Empty(t, liked)

	ids := make([]string, 11)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}
	_, err = env.reactions.ListMine(ctx, "P1", models.ReactionTargetPlan, ids)
	require.Equal(t, apperrors.CodeInvalidArgument, apperrors.KindOf(err))
}
