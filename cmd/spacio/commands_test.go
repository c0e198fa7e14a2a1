package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnuel1/spacio-backend/internal/dto"
	"github.com/mnuel1/spacio-backend/internal/models"
)

func TestBlocksCommandIsReproducibleWithSeed(t *testing.T) {
	run := func() string {
		var out bytes.Buffer
		cmd := newBlocksCommand()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--lecture", "5", "--lab", "3", "--seed", "42"})
		require.NoError(t, cmd.Execute())
		return out.String()
	}

	first := run()
	assert.Equal(t, first, run())
	assert.Contains(t, first, "Lab")
	assert.Contains(t, first, "total")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(first), "8"))
}

func TestBlocksCommandRejectsNegativeHours(t *testing.T) {
	cmd := newBlocksCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--lecture", "-1"})
	assert.Error(t, cmd.Execute())
}

func TestWriteBlockPlan(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeBlockPlan(&out, []models.Block{
		{Type: models.RoomTypeLecture, Hours: 2},
		{Type: models.RoomTypeLab, Hours: 3},
	}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"1", "Lec", "2"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"2", "Lab", "3"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"total", "5"}, strings.Fields(lines[3]))
}

func TestWriteConflictTable(t *testing.T) {
	var out bytes.Buffer
	report := &models.ConflictReport{
		Scope:    models.ConflictScopePeriod,
		PeriodID: "p1",
		Conflicts: []models.ConflictRecord{
			{Type: models.ConflictRoom, Message: "Room R1 double booked", MeetingIDs: []string{"m1", "m2"}, Days: "MW"},
			{Type: models.ConflictUnassigned, Message: "CS101 has no meetings"},
		},
	}
	require.NoError(t, writeConflictTable(&out, report))

	text := out.String()
	assert.Contains(t, text, "period p1")
	assert.Contains(t, text, "m1,m2")
	assert.Contains(t, text, "ROOM_CONFLICT")
	assert.Contains(t, text, "UNASSIGNED_SUBJECT")
	assert.Contains(t, text, "CS101 has no meetings")
}

func TestWriteConflictTableEmpty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeConflictTable(&out, &models.ConflictReport{Scope: models.ConflictScopeAllPeriods}))
	assert.NotContains(t, out.String(), "TYPE")
	assert.Contains(t, out.String(), "0")
}

func TestWriteRunSummary(t *testing.T) {
	var out bytes.Buffer
	result := &dto.AutoScheduleResult{
		RunID:        "run-1",
		PeriodID:     "p1",
		Placements:   []dto.Placement{{TeacherID: "t1"}},
		BlocksPlaced: 2,
		Unassigned: []dto.UnassignedPairing{
			{SubjectCode: "CS102", SectionName: "BSCS 1A", Reason: "no qualified teacher"},
		},
		PersistenceErrors: []dto.PersistenceFailure{{TeacherID: "t1", SubjectID: "s1", SectionID: "sec1", Error: "insert failed"}},
	}
	require.NoError(t, writeRunSummary(&out, result))

	text := out.String()
	assert.Contains(t, text, "run-1")
	assert.Contains(t, text, "no qualified teacher")
	assert.Contains(t, text, "insert failed")
}

func TestWriteJSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeJSON(&out, map[string]int{"blocks": 2}))
	assert.JSONEq(t, `{"blocks":2}`, out.String())
}
