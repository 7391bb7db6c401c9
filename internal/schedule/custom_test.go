package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/opoplan/internal/theme"
)

func block(n int, start, end string, pattern WeeklyPattern) BlockConfig {
	return BlockConfig{
		BlockNumber:   n,
		StartDate:     NewDate(date(start)),
		EndDate:       NewDate(date(end)),
		WeeklyPattern: pattern,
	}
}

func TestValidateBlocks_ReportsEveryProblem(t *testing.T) {
	var crowded []Activity
	for i := 0; i < 11; i++ {
		crowded = append(crowded, Activity{ThemeID: theme.Ref{BaseID: 1}, ActivityType: TypeStudy, DurationMinutes: 30})
	}
	blocks := []BlockConfig{
		block(1, "2025-01-01", "2025-01-30", WeeklyPattern{Monday: crowded}),
		block(2, "2025-03-01", "2025-02-01", WeeklyPattern{
			Tuesday: []Activity{{ThemeID: theme.Ref{BaseID: 9}, ActivityType: TypeReview, DurationMinutes: 0}},
		}),
	}
	known := map[theme.Ref]bool{{BaseID: 1}: true}

	err := ValidateBlocks(blocks, 240, 10, known)
	var bve *BlockValidationError
	require.True(t, errors.As(err, &bve), "got %v", err)

	byBlock := bve.ByBlock()
	// Block 1: too many activities and 330 minutes over a 240 budget.
	assert.Len(t, byBlock[1], 2)
	// Block 2: dates reversed, zero duration and unknown theme.
	assert.Len(t, byBlock[2], 3)
	assert.Contains(t, err.Error(), "block 1 (monday)")
}

func TestValidateBlocks_Overlap(t *testing.T) {
	study := WeeklyPattern{Monday: []Activity{{ThemeID: theme.Ref{BaseID: 1}, ActivityType: TypeStudy, DurationMinutes: 60}}}
	err := ValidateBlocks([]BlockConfig{
		block(1, "2025-01-01", "2025-01-30", study),
		block(2, "2025-01-20", "2025-02-20", study),
	}, 120, 10, nil)
	var bve *BlockValidationError
	require.True(t, errors.As(err, &bve))
	require.Len(t, bve.Problems, 1)
	assert.Equal(t, 2, bve.Problems[0].Block)

	assert.NoError(t, ValidateBlocks([]BlockConfig{block(1, "2025-01-01", "2025-01-30", study)}, 120, 10, nil))
}

func TestCustomBlocks_Generate(t *testing.T) {
	in := Input{
		PlanID: testPlanID,
		Start:  date("2025-01-06"),
		// Cutoff is 2025-01-14.
		Exam: date("2025-02-13"),
		Topics: []Topic{
			{Ref: theme.Ref{BaseID: 1}, Hours: 5},
			{Ref: theme.Ref{BaseID: 2}, Hours: 5},
			{Ref: theme.Ref{BaseID: 3}, Hours: 5},
		},
		Blocks: []BlockConfig{block(1, "2025-01-06", "2025-01-19", WeeklyPattern{
			Monday:    []Activity{{ThemeID: theme.Ref{BaseID: 1}, ActivityType: TypeStudy, DurationMinutes: 60}},
			Wednesday: []Activity{{ThemeID: theme.Ref{BaseID: 2}, ActivityType: TypeReview, DurationMinutes: 90}},
		})},
		AvailableDailyMinutes: 120,
	}

	res, err := NewCustomBlocks(DefaultConfig()).Generate(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, KindCustomBlocks, res.Strategy)

	require.Len(t, res.Sessions, 3)
	assert.Equal(t, date("2025-01-06"), res.Sessions[0].Date)
	assert.Equal(t, 1.0, res.Sessions[0].Hours)
	assert.Equal(t, date("2025-01-08"), res.Sessions[1].Date)
	assert.Equal(t, TypeReview, res.Sessions[1].Type)
	assert.Equal(t, 1.5, res.Sessions[1].Hours)
	assert.Equal(t, date("2025-01-13"), res.Sessions[2].Date)

	require.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[0], "buffer cutoff")
	assert.Contains(t, res.Warnings[1], "3")
}

func TestCustomBlocks_FailFast(t *testing.T) {
	in := Input{
		PlanID: testPlanID,
		Start:  date("2025-01-06"),
		Exam:   date("2025-06-01"),
		Blocks: []BlockConfig{block(1, "2025-01-06", "2025-01-19", WeeklyPattern{
			Monday: []Activity{{ThemeID: theme.Ref{BaseID: 1}, ActivityType: TypeStudy, DurationMinutes: 300}},
		})},
		AvailableDailyMinutes: 120,
	}
	res, err := NewCustomBlocks(DefaultConfig()).Generate(context.Background(), in)
	assert.Nil(t, res)
	var bve *BlockValidationError
	assert.True(t, errors.As(err, &bve))
}

func TestCustomBlocks_DefaultBudgetIsOneDay(t *testing.T) {
	in := Input{
		PlanID: testPlanID,
		Start:  date("2025-01-06"),
		Exam:   date("2025-06-01"),
		Blocks: []BlockConfig{block(1, "2025-01-06", "2025-01-19", WeeklyPattern{
			Monday: []Activity{{ThemeID: theme.Ref{BaseID: 1}, ActivityType: TypeStudy, DurationMinutes: 3000}},
		})},
	}
	res, err := NewCustomBlocks(DefaultConfig()).Generate(context.Background(), in)
	assert.Nil(t, res)
	var bve *BlockValidationError
	require.True(t, errors.As(err, &bve), "got %v", err)
	require.Len(t, bve.Problems, 1)
	assert.Equal(t, "monday", bve.Problems[0].Day)
	assert.Contains(t, bve.Problems[0].Message, "3000 minutes exceed the daily budget of 1440")

	in.Blocks[0].WeeklyPattern.Monday[0].DurationMinutes = MinutesPerDay
	_, err = NewCustomBlocks(DefaultConfig()).Generate(context.Background(), in)
	assert.NoError(t, err)
}

func TestBlockConfigJSON(t *testing.T) {
	raw := `{
		"blockNumber": 1,
		"startDate": "2025-01-06",
		"endDate": "2025-02-04",
		"weeklyPattern": {
			"monday": [{"themeId": "6-2", "activityType": "flash-review", "durationMinutes": 45}]
		}
	}`
	var b BlockConfig
	require.NoError(t, json.Unmarshal([]byte(raw), &b))
	require.Len(t, b.WeeklyPattern.Monday, 1)
	act := b.WeeklyPattern.Monday[0]
	assert.Equal(t, theme.Ref{BaseID: 6, Part: 2}, act.ThemeID)
	assert.Equal(t, TypeFlashReview, act.ActivityType)
	assert.Equal(t, "2025-02-04", b.EndDate.String())
}
