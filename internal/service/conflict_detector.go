package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/mnuel1/spacio-backend/internal/models"
	"github.com/mnuel1/spacio-backend/pkg/timeutil"
)

// ConflictDetector scans committed meetings for violations. It never mutates its input.
type ConflictDetector struct{}

// NewConflictDetector returns a detector.
func NewConflictDetector() *ConflictDetector {
	return &ConflictDetector{}
}

type scannedMeeting struct {
	models.Meeting
	span  timeutil.Range
	valid bool
}

// Detect returns room, teacher, duplicate and unassigned-subject conflicts in that order.
// Meetings are only compared with meetings of the same period.
func (d *ConflictDetector) Detect(meetings []models.Meeting, subjects []models.Subject) []models.ConflictRecord {
	scanned := make([]scannedMeeting, len(meetings))
	for i, m := range meetings {
		span, err := m.TimeRange()
		scanned[i] = scannedMeeting{Meeting: m, span: span, valid: err == nil}
	}
	sort.SliceStable(scanned, func(i, j int) bool { return scanned[i].ID < scanned[j].ID })

	var rooms, teachers []models.ConflictRecord
	for i := 0; i < len(scanned); i++ {
		a := scanned[i]
		for j := i + 1; j < len(scanned); j++ {
			b := scanned[j]
			shared, ok := clash(a, b)
			if !ok {
				continue
			}
			if a.RoomID == b.RoomID {
				rooms = append(rooms, models.ConflictRecord{
					Type:       models.ConflictRoom,
					Message:    fmt.Sprintf("room %s is double booked on %s: %s and %s", a.RoomID, strings.Join(shared.Names(), ", "), a.span, b.span),
					MeetingIDs: []string{a.ID, b.ID},
					RoomID:     a.RoomID,
					Days:       shared.String(),
				})
			}
			if a.TeacherID == b.TeacherID {
				teachers = append(teachers, models.ConflictRecord{
					Type:       models.ConflictTeacher,
					Message:    fmt.Sprintf("teacher %s has overlapping classes on %s: %s and %s", a.TeacherID, strings.Join(shared.Names(), ", "), a.span, b.span),
					MeetingIDs: []string{a.ID, b.ID},
					TeacherID:  a.TeacherID,
					Days:       shared.String(),
				})
			}
		}
	}

	conflicts := append(rooms, teachers...)
	conflicts = append(conflicts, duplicates(scanned)...)
	conflicts = append(conflicts, unassignedSubjects(scanned, subjects)...)
	return conflicts
}

func clash(a, b scannedMeeting) (models.DaySet, bool) {
	if !a.valid || !b.valid || a.PeriodID != b.PeriodID {
		return 0, false
	}
	shared := a.Days.Intersection(b.Days)
	if shared.IsEmpty() || !a.span.Overlaps(b.span) {
		return 0, false
	}
	return shared, true
}

func duplicates(scanned []scannedMeeting) []models.ConflictRecord {
	var out []models.ConflictRecord
	first := map[string]string{}
	for _, m := range scanned {
		key := strings.Join([]string{m.PeriodID, m.SectionID, m.SubjectID, m.Days.String()}, "|")
		original, seen := first[key]
		if !seen {
			first[key] = m.ID
			continue
		}
		out = append(out, models.ConflictRecord{
			Type:       models.ConflictDuplicate,
			Message:    fmt.Sprintf("section %s has subject %s more than once on %s", m.SectionID, m.SubjectID, m.Days),
			MeetingIDs: []string{original, m.ID},
			SectionID:  m.SectionID,
			SubjectID:  m.SubjectID,
			Days:       m.Days.String(),
		})
	}
	return out
}

func unassignedSubjects(scanned []scannedMeeting, subjects []models.Subject) []models.ConflictRecord {
	scheduled := lo.Associate(scanned, func(m scannedMeeting) (string, bool) { return m.SubjectID, true })
	ordered := append([]models.Subject(nil), subjects...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Code != ordered[j].Code {
			return ordered[i].Code < ordered[j].Code
		}
		return ordered[i].ID < ordered[j].ID
	})

	var out []models.ConflictRecord
	for _, s := range ordered {
		if scheduled[s.ID] {
			continue
		}
		out = append(out, models.ConflictRecord{
			Type:      models.ConflictUnassigned,
			Message:   fmt.Sprintf("subject %s has no scheduled meetings", s.Code),
			SubjectID: s.ID,
		})
	}
	return out
}

// CountConflicts tallies records per type, including zero counts.
func CountConflicts(conflicts []models.ConflictRecord) map[models.ConflictType]int {
	counts := make(map[models.ConflictType]int, len(models.ConflictTypes))
	for _, kind := range models.ConflictTypes {
		counts[kind] = 0
	}
	for _, c := range conflicts {
		counts[c.Type]++
	}
	return counts
}
