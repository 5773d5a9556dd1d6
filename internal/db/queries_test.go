package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qlscan/internal/models"
)

func TestUpsertAndGetProject(t *testing.T) {
	ctx := context.Background()
	lastCommit := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	project := models.ProjectDescriptor{
		FullName:    "acme/widget",
		URL:         "https://github.com/acme/widget",
		Stars:       1200,
		Language:    "javascript",
		Description: "A widget",
		Topics:      []string{"web", "ui"},
		LastCommit:  &lastCommit,
	}
	require.NoError(t, testDB.UpsertProject(ctx, project))

	got, err := testDB.GetProjectByName(ctx, "acme/widget")
	require.NoError(t, err)
	assert.Equal(t, project.FullName, got.FullName)
	assert.Equal(t, project.URL, got.URL)
	assert.Equal(t, project.Stars, got.Stars)
	assert.Equal(t, project.Language, got.Language)
	assert.Equal(t, project.Topics, got.Topics)
	require.NotNil(t, got.LastCommit)
	assert.True(t, got.LastCommit.Equal(lastCommit))
	assert.False(t, got.FetchedAt.IsZero())

	// Upserting again updates in place instead of duplicating.
	project.Stars = 1300
	require.NoError(t, testDB.UpsertProject(ctx, project))
	got, err = testDB.GetProjectByName(ctx, "acme/widget")
	require.NoError(t, err)
	assert.Equal(t, 1300, got.Stars)
}

func TestGetProjectByNameNotFound(t *testing.T) {
	_, err := testDB.GetProjectByName(context.Background(), "nobody/nothing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListProjectsOrderedByStars(t *testing.T) {
	ctx := context.Background()
	for name, stars := range map[string]int{
		"order/low":  10,
		"order/high": 9000,
		"order/mid":  500,
	} {
		require.NoError(t, testDB.UpsertProject(ctx, models.ProjectDescriptor{
			FullName: name,
			URL:      "https://github.com/" + name,
			Stars:    stars,
		}))
	}

	projects, err := testDB.ListProjects(ctx, 0)
	require.NoError(t, err)

	positions := map[string]int{}
	for i, p := range projects {
		positions[p.FullName] = i
	}
	assert.Less(t, positions["order/high"], positions["order/mid"])
	assert.Less(t, positions["order/mid"], positions["order/low"])

	limited, err := testDB.ListProjects(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	count, err := testDB.CountProjects(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 3)
}

func TestUnitStatusRoundTrip(t *testing.T) {
	ctx := context.Background()
	const key = "lang=javascript|queries=id_10"

	// Absent unit reads as nil, not an error.
	got, err := testDB.GetUnitStatus(ctx, "acme/unit", key)
	require.NoError(t, err)
	assert.Nil(t, got)

	res := models.BatchUnitResult{
		Project: "acme/unit",
		Stage:   "querying",
		Status:  models.UnitError,
		Error:   "query timed out",
		Elapsed: 90 * time.Second,
	}
	require.NoError(t, testDB.CommitUnitResult(ctx, key, res))

	got, err = testDB.GetUnitStatus(ctx, "acme/unit", key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, res.Project, got.Project)
	assert.Equal(t, res.Stage, got.Stage)
	assert.Equal(t, res.Status, got.Status)
	assert.Equal(t, res.Error, got.Error)
	assert.Equal(t, res.Elapsed, got.Elapsed)

	// Committing again replaces the record: one row per (project, config).
	res.Status = models.UnitCreated
	res.Stage = "aggregating"
	res.Error = ""
	require.NoError(t, testDB.CommitUnitResult(ctx, key, res))

	got, err = testDB.GetUnitStatus(ctx, "acme/unit", key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.UnitCreated, got.Status)
	assert.Empty(t, got.Error)

	// A different configuration is a distinct unit record.
	other, err := testDB.GetUnitStatus(ctx, "acme/unit", "lang=python")
	require.NoError(t, err)
	assert.Nil(t, other)
}
