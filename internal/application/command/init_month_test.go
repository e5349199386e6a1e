package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizhub/rewards-hub/internal/domain/ranking"
	"github.com/quizhub/rewards-hub/internal/domain/user"
	"github.com/quizhub/rewards-hub/internal/infrastructure/persistence/memory"
)

func TestInitMonthDoubleInitReusesEverything(t *testing.T) {
	p := newPipeline(t)
	p.seedStudents(t, 5)
	ctx := context.Background()

	first, err := p.init.Handle(ctx, InitMonthCommand{
		Month:      2,
		Year:       2025,
		Categories: []ranking.Category{ranking.CategoryStudents},
	})
	require.NoError(t, err)
	require.Len(t, first.Categories, 1)
	assert.True(t, first.Categories[0].SnapshotCreated)
	assert.True(t, first.Categories[0].JobCreated)

	second, err := p.init.Handle(ctx, InitMonthCommand{
		Month:      2,
		Year:       2025,
		Categories: []ranking.Category{ranking.CategoryStudents},
	})
	require.NoError(t, err)
	require.Len(t, second.Categories, 1)
	assert.False(t, second.Categories[0].SnapshotCreated)
	assert.False(t, second.Categories[0].JobCreated)
	assert.Equal(t, first.Categories[0].SnapshotID, second.Categories[0].SnapshotID)
	assert.Equal(t, first.Categories[0].JobID, second.Categories[0].JobID)
}

func TestInitMonthDefaultsToPreviousPeriod(t *testing.T) {
	p := newPipeline(t)
	p.seedStudents(t, 3)

	result, err := p.init.Handle(context.Background(), InitMonthCommand{
		Categories: []ranking.Category{ranking.CategoryStudents},
	})
	require.NoError(t, err)
	assert.NotZero(t, result.Month)
	assert.NotZero(t, result.Year)

	// The snapshot landed on the reported period.
	_, err = p.snapshots.FindByPeriod(context.Background(), ranking.CategoryStudents, result.Month, result.Year)
	assert.NoError(t, err)
}

func TestInitMonthValidation(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	_, err := p.init.Handle(ctx, InitMonthCommand{Month: 2})
	assert.Error(t, err, "month without year must be rejected")

	_, err = p.init.Handle(ctx, InitMonthCommand{Month: 13, Year: 2025})
	assert.Error(t, err)

	_, err = p.init.Handle(ctx, InitMonthCommand{Categories: []ranking.Category{"referees"}})
	assert.Error(t, err)
}

// flakyEntries fails ranking for one category and delegates the rest.
type flakyEntries struct {
	inner   ranking.EntrySource
	failFor ranking.Category
}

func (f *flakyEntries) LiveEntries(ctx context.Context, category ranking.Category) ([]ranking.Entry, error) {
	if category == f.failFor {
		return nil, errors.New("ranking query timed out")
	}
	return f.inner.LiveEntries(ctx, category)
}

func TestInitMonthCategoryErrorDoesNotAbortOthers(t *testing.T) {
	users := memory.NewUserRepository()
	snapshots := memory.NewSnapshotRepository()
	jobs := memory.NewRewardJobRepository()

	u, err := user.NewUser(user.NewUserParams{ID: 1, DisplayName: "s", Role: user.RoleStudent})
	require.NoError(t, err)
	u.Student.TotalTests = 4
	users.Add(u)

	handler := NewInitMonthHandler(
		&flakyEntries{inner: users, failFor: ranking.CategoryTeachers},
		snapshots, jobs, nil, quietLogger(), InitMonthHandlerConfig{},
	)

	result, err := handler.Handle(context.Background(), InitMonthCommand{Month: 2, Year: 2025})
	require.NoError(t, err)
	require.Len(t, result.Categories, 2)
	assert.False(t, result.Failed())

	byCategory := map[ranking.Category]CategoryInit{}
	for _, c := range result.Categories {
		byCategory[c.Category] = c
	}

	assert.Empty(t, byCategory[ranking.CategoryStudents].Error)
	assert.True(t, byCategory[ranking.CategoryStudents].JobCreated)
	assert.Contains(t, byCategory[ranking.CategoryTeachers].Error, "timed out")
	assert.Empty(t, byCategory[ranking.CategoryTeachers].JobID)
}

func TestInitMonthEmptyCategoryStillCreatesJob(t *testing.T) {
	// No teachers at all: the snapshot freezes empty and the job has
	// zero batches, completing on its first process pass.
	p := newPipeline(t)

	result, err := p.init.Handle(context.Background(), InitMonthCommand{
		Month:      2,
		Year:       2025,
		Categories: []ranking.Category{ranking.CategoryTeachers},
	})
	require.NoError(t, err)
	require.Len(t, result.Categories, 1)
	assert.Empty(t, result.Categories[0].Error)
	assert.Zero(t, result.Categories[0].TotalUsers)
	assert.Zero(t, result.Categories[0].TotalBatches)

	processResult, err := p.process.Handle(context.Background(), ProcessJobsCommand{})
	require.NoError(t, err)
	assert.Equal(t, 1, processResult.Completed)
}
