package voteview

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/docdesk/internal/backend"
	"github.com/starford/docdesk/internal/models"
	"github.com/starford/docdesk/internal/testutil"
)

type staticSource struct {
	votes []models.Vote
	err   error
}

func (s staticSource) VoteResults(context.Context) ([]models.Vote, error) {
	return s.votes, s.err
}

func vote(doc string, version int, t models.VoteType) models.Vote {
	return models.Vote{DocID: doc, Version: version, VoteType: t, VoterInfo: "10.0.0.1", CreatedAt: "2024-01-01"}
}

func TestAggregate_SingleGroup(t *testing.T) {
	groups := Aggregate([]models.Vote{
		vote("A", 1, models.VoteGood),
		vote("A", 1, models.VoteBad),
		vote("A", 1, models.VoteGood),
	})

	require.Len(t, groups, 1)
	assert.Equal(t, Key{DocID: "A", Version: 1}, groups[0].Key)
	assert.Equal(t, 2, groups[0].GoodVotes)
	assert.Equal(t, 1, groups[0].BadVotes)
	assert.Len(t, groups[0].Votes, 3)
}

func TestAggregate_FirstAppearanceOrderAndDistinctKeys(t *testing.T) {
	groups := Aggregate([]models.Vote{
		vote("B", 2, models.VoteGood),
		vote("A", 1, models.VoteBad),
		vote("B", 1, models.VoteGood),
		vote("B", 2, models.VoteBad),
		vote("A-1", 2, models.VoteGood),
		vote("A", 12, models.VoteGood),
	})

	var keys []string
	for _, g := range groups {
		keys = append(keys, g.Key.String())
	}
	assert.Equal(t, []string{"B@2", "A@1", "B@1", "A-1@2", "A@12"}, keys)
	assert.Equal(t, 1, groups[0].GoodVotes)
	assert.Equal(t, 1, groups[0].BadVotes)
}

func TestAggregate_UnknownTypeKeptButNotCounted(t *testing.T) {
	groups := Aggregate([]models.Vote{vote("A", 1, "abstain")})
	require.Len(t, groups, 1)
	assert.Zero(t, groups[0].GoodVotes)
	assert.Zero(t, groups[0].BadVotes)
	assert.Len(t, groups[0].Votes, 1)
}

func TestAggregate_Idempotent(t *testing.T) {
	votes := []models.Vote{vote("A", 1, models.VoteGood), vote("B", 1, models.VoteBad)}
	assert.Equal(t, Aggregate(votes), Aggregate(votes))
	assert.Nil(t, Aggregate(nil))
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("doc@with@at@7")
	require.NoError(t, err)
	assert.Equal(t, Key{DocID: "doc@with@at", Version: 7}, k)

	_, err = ParseKey("nokey")
	assert.Error(t, err)
	_, err = ParseKey("A@x")
	assert.Error(t, err)
}

func TestView_EmptyListRendersSingleInfoRow(t *testing.T) {
	v := NewViewer(staticSource{votes: []models.Vote{}}, nil)
	require.NoError(t, v.Load(context.Background()))

	table := v.View()
	assert.Equal(t, "No vote results available.", table.Notice)
	assert.Equal(t, 5, table.ColSpan)
	assert.False(t, table.Failed)
	assert.Empty(t, table.Rows)
}

func TestView_LoadFailureRendersErrorRow(t *testing.T) {
	v := NewViewer(staticSource{err: errors.New("boom")}, nil)
	assert.Error(t, v.Load(context.Background()))

	table := v.View()
	assert.Equal(t, "Error loading vote results.", table.Notice)
	assert.True(t, table.Failed)
	assert.Empty(t, table.Rows)
}

func TestView_ToggleFlipsOneGroupAndLabel(t *testing.T) {
	v := NewViewer(staticSource{votes: []models.Vote{
		vote("A", 1, models.VoteGood),
		vote("B", 1, models.VoteBad),
	}}, nil)
	require.NoError(t, v.Load(context.Background()))

	table := v.View()
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "Show Details", table.Rows[0].ToggleLabel)
	assert.False(t, table.Rows[0].Expanded)

	assert.True(t, v.Toggle(Key{DocID: "A", Version: 1}))
	table = v.View()
	assert.True(t, table.Rows[0].Expanded)
	assert.Equal(t, "Hide Details", table.Rows[0].ToggleLabel)
	assert.False(t, table.Rows[1].Expanded)
	assert.Equal(t, "Show Details", table.Rows[1].ToggleLabel)

	assert.False(t, v.Toggle(Key{DocID: "A", Version: 1}))
	assert.Equal(t, "Show Details", v.View().Rows[0].ToggleLabel)
}

func TestViewer_AgainstBackend(t *testing.T) {
	fb := testutil.NewBackend(t)
	fb.SetVotes(
		vote("A", 1, models.VoteGood),
		vote("A", 1, models.VoteBad),
		vote("A", 1, models.VoteGood),
	)
	c, err := backend.New(fb.URL())
	require.NoError(t, err)

	v := NewViewer(c, nil)
	require.NoError(t, v.Load(context.Background()))

	table := v.View()
	require.Len(t, table.Rows, 1)
	assert.Equal(t, 2, table.Rows[0].GoodVotes)
	assert.Equal(t, 1, table.Rows[0].BadVotes)
	require.Len(t, table.Rows[0].Details, 3)
	assert.Equal(t, Detail{VoteType: "bad", VoterInfo: "10.0.0.1", CreatedAt: "2024-01-01"}, table.Rows[0].Details[1])
	assert.Equal(t, []string{"GET /vote_results"}, fb.Requests())
}
