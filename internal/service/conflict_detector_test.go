package service

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnuel1/spacio-backend/internal/models"
	"github.com/mnuel1/spacio-backend/pkg/timeutil"
)

func filterConflicts(conflicts []models.ConflictRecord, kind models.ConflictType) []models.ConflictRecord {
	var out []models.ConflictRecord
	for _, c := range conflicts {
		if c.Type == kind {
			out = append(out, c)
		}
	}
	return out
}

func TestConflictDetectorTouchingRangesAreNotConflicts(t *testing.T) {
	meetings := []models.Meeting{
		committed("m1", "t1", "s1", "sec1", "r1", "M", "09:00", "10:00"),
		committed("m2", "t1", "s2", "sec2", "r1", "M", "10:00", "11:00"),
	}
	conflicts := NewConflictDetector().Detect(meetings, nil)
	assert.Empty(t, conflicts)
}

func TestConflictDetectorRoomAndTeacherPairs(t *testing.T) {
	meetings := []models.Meeting{
		committed("m1", "t1", "s1", "sec1", "r1", "MW", "09:00", "10:30"),
		committed("m2", "t2", "s2", "sec2", "r1", "WF", "10:00", "11:00"),
		committed("m3", "t1", "s3", "sec3", "r2", "TTh", "09:00", "10:00"),
		committed("m4", "t1", "s4", "sec4", "r3", "Th", "09:30", "11:00"),
	}
	conflicts := NewConflictDetector().Detect(meetings, nil)

	rooms := filterConflicts(conflicts, models.ConflictRoom)
	require.Len(t, rooms, 1)
	assert.Equal(t, []string{"m1", "m2"}, rooms[0].MeetingIDs)
	assert.Equal(t, "W", rooms[0].Days)
	assert.Equal(t, "r1", rooms[0].RoomID)

	teachers := filterConflicts(conflicts, models.ConflictTeacher)
	require.Len(t, teachers, 1)
	assert.Equal(t, []string{"m3", "m4"}, teachers[0].MeetingIDs)
	assert.Equal(t, "Th", teachers[0].Days)
}

func TestConflictDetectorTuesdayDoesNotClashWithThursday(t *testing.T) {
	meetings := []models.Meeting{
		committed("m1", "t1", "s1", "sec1", "r1", "T", "09:00", "10:00"),
		committed("m2", "t1", "s2", "sec2", "r1", "Th", "09:00", "10:00"),
	}
	assert.Empty(t, NewConflictDetector().Detect(meetings, nil))
}

func TestConflictDetectorDuplicatesReportedPerLaterOccurrence(t *testing.T) {
	meetings := []models.Meeting{
		committed("m1", "t1", "s1", "sec1", "r1", "MW", "08:00", "09:00"),
		committed("m2", "t2", "s1", "sec1", "r2", "MW", "13:00", "14:00"),
		committed("m3", "t3", "s1", "sec1", "r3", "MW", "15:00", "16:00"),
		committed("m4", "t4", "s1", "sec1", "r4", "F", "08:00", "09:00"),
	}
	dups := filterConflicts(NewConflictDetector().Detect(meetings, nil), models.ConflictDuplicate)
	require.Len(t, dups, 2)
	assert.Equal(t, []string{"m1", "m2"}, dups[0].MeetingIDs)
	assert.Equal(t, []string{"m1", "m3"}, dups[1].MeetingIDs)
}

func TestConflictDetectorUnassignedSubjects(t *testing.T) {
	meetings := []models.Meeting{committed("m1", "t1", "s1", "sec1", "r1", "M", "08:00", "09:00")}
	subjects := []models.Subject{
		{ID: "s2", Code: "CS102"},
		{ID: "s1", Code: "CS101"},
		{ID: "s3", Code: "CS100"},
	}
	unassigned := filterConflicts(NewConflictDetector().Detect(meetings, subjects), models.ConflictUnassigned)
	require.Len(t, unassigned, 2)
	assert.Equal(t, "s3", unassigned[0].SubjectID)
	assert.Equal(t, "s2", unassigned[1].SubjectID)
}

func TestConflictDetectorSeparatesPeriods(t *testing.T) {
	a := committed("m1", "t1", "s1", "sec1", "r1", "M", "08:00", "09:00")
	b := committed("m2", "t1", "s1", "sec1", "r1", "M", "08:00", "09:00")
	b.PeriodID = "p2"
	assert.Empty(t, NewConflictDetector().Detect([]models.Meeting{a, b}, nil))
}

func TestConflictDetectorIsIdempotent(t *testing.T) {
	meetings := randomMeetings(rand.New(rand.NewSource(3)), 40)
	snapshot := append([]models.Meeting(nil), meetings...)
	detector := NewConflictDetector()

	first := detector.Detect(meetings, nil)
	second := detector.Detect(meetings, nil)
	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, meetings)
}

func randomMeetings(rng *rand.Rand, n int) []models.Meeting {
	codes := []string{"M", "T", "W", "Th", "F", "MW", "TTh", "MWF"}
	meetings := make([]models.Meeting, n)
	for i := range meetings {
		start := 7*60 + rng.Intn(20)*30
		end := start + 30*(1+rng.Intn(6))
		meetings[i] = models.Meeting{
			ID:        fmt.Sprintf("m%03d", i),
			PeriodID:  "p1",
			TeacherID: fmt.Sprintf("t%d", rng.Intn(4)),
			SubjectID: fmt.Sprintf("s%d", rng.Intn(6)),
			SectionID: fmt.Sprintf("sec%d", rng.Intn(5)),
			RoomID:    fmt.Sprintf("r%d", rng.Intn(3)),
			Days:      models.MustParseDaySet(codes[rng.Intn(len(codes))]),
			StartTime: timeutil.ToHHMM(start),
			EndTime:   timeutil.ToHHMM(end),
		}
	}
	return meetings
}

func TestConflictDetectorMatchesBruteForceOracle(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 50; trial++ {
		meetings := randomMeetings(rng, 2+rng.Intn(25))

		wantRooms := map[string]bool{}
		wantTeachers := map[string]bool{}
		for i := range meetings {
			for j := i + 1; j < len(meetings); j++ {
				a, b := meetings[i], meetings[j]
				sharedDay := false
				for _, day := range models.AllWeekdays {
					if a.Days.Contains(day) && b.Days.Contains(day) {
						sharedDay = true
					}
				}
				aStart, aEnd := timeutil.MustMinutes(a.StartTime), timeutil.MustMinutes(a.EndTime)
				bStart, bEnd := timeutil.MustMinutes(b.StartTime), timeutil.MustMinutes(b.EndTime)
				if !sharedDay || !(aStart < bEnd && bStart < aEnd) {
					continue
				}
				pair := a.ID + "," + b.ID
				if a.RoomID == b.RoomID {
					wantRooms[pair] = true
				}
				if a.TeacherID == b.TeacherID {
					wantTeachers[pair] = true
				}
			}
		}

		gotRooms := map[string]bool{}
		gotTeachers := map[string]bool{}
		for _, c := range NewConflictDetector().Detect(meetings, nil) {
			pair := c.MeetingIDs[0] + "," + c.MeetingIDs[1]
			switch c.Type {
			case models.ConflictRoom:
				gotRooms[pair] = true
			case models.ConflictTeacher:
				gotTeachers[pair] = true
			}
		}
		assert.Equal(t, wantRooms, gotRooms, "trial %d", trial)
		assert.Equal(t, wantTeachers, gotTeachers, "trial %d", trial)
	}
}

func TestCountConflictsIncludesZeroes(t *testing.T) {
	counts := CountConflicts([]models.ConflictRecord{{Type: models.ConflictRoom}, {Type: models.ConflictRoom}})
	assert.Equal(t, 2, counts[models.ConflictRoom])
	assert.Equal(t, 0, counts[models.ConflictUnassigned])
	assert.Len(t, counts, 4)
}
