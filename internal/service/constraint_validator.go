package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mnuel1/spacio-backend/internal/models"
	"github.com/mnuel1/spacio-backend/pkg/timeutil"
)

// ViolationRule names the check that rejected a proposal.
type ViolationRule string

const (
	RuleLoad             ViolationRule = "load"
	RuleSpecialization   ViolationRule = "specialization"
	RuleAvailabilityDays ViolationRule = "availability_days"
	RuleAvailabilityTime ViolationRule = "availability_time"
	RuleRoomOverlap      ViolationRule = "room_overlap"
	RuleSectionOverlap   ViolationRule = "section_overlap"
	RuleTeacherOverlap   ViolationRule = "teacher_overlap"
	RuleDuplicate        ViolationRule = "duplicate_section_subject_day"
)

// MeetingProposal is a candidate meeting with its resolved teacher and subject.
type MeetingProposal struct {
	PeriodID  string
	MeetingID string
	Teacher   models.Teacher
	Subject   models.Subject
	SectionID string
	RoomID    string
	Days      models.DaySet
	Time      timeutil.Range
	// LoadCredit is what the meeting being reassigned already credited to Teacher.
	LoadCredit int
	// Charge overrides the units this meeting credits. Nil means Subject.Units.
	Charge *int
}

func (p MeetingProposal) charge() int {
	if p.Charge != nil {
		return *p.Charge
	}
	return p.Subject.Units
}

// Violation describes the first failed check.
type Violation struct {
	Rule       ViolationRule
	Message    string
	MeetingIDs []string
	Days       models.DaySet
}

func (v *Violation) Error() string {
	return v.Message
}

// Details returns a map suitable for error payloads.
func (v *Violation) Details() map[string]any {
	details := map[string]any{"rule": string(v.Rule)}
	if len(v.MeetingIDs) > 0 {
		details["meeting_ids"] = v.MeetingIDs
	}
	if !v.Days.IsEmpty() {
		details["days"] = v.Days.String()
	}
	return details
}

// ConstraintValidator checks a proposal against a period timetable.
type ConstraintValidator struct{}

// NewConstraintValidator returns a validator.
func NewConstraintValidator() *ConstraintValidator {
	return &ConstraintValidator{}
}

// Validate runs the checks in order and returns the first violation, or nil.
func (v *ConstraintValidator) Validate(p MeetingProposal, timetable []models.Meeting) *Violation {
	checks := []func(MeetingProposal, []models.Meeting) *Violation{
		checkLoad,
		checkSpecialization,
		checkAvailableDays,
		checkPreferredWindow,
		checkRoomOverlap,
		checkSectionOverlap,
		checkTeacherOverlap,
		checkDuplicate,
	}
	for _, check := range checks {
		if violation := check(p, timetable); violation != nil {
			return violation
		}
	}
	return nil
}

func checkLoad(p MeetingProposal, _ []models.Meeting) *Violation {
	charge := p.charge()
	projected := p.Teacher.CurrentLoad - p.LoadCredit + charge
	maxLoad := p.Teacher.EffectiveMaxLoad()
	if charge > p.LoadCredit && projected > maxLoad {
		return &Violation{
			Rule:    RuleLoad,
			Message: fmt.Sprintf("%s exceeds allowed load (%d of %d units)", p.Teacher.FullName, projected, maxLoad),
		}
	}
	return nil
}

func checkSpecialization(p MeetingProposal, _ []models.Meeting) *Violation {
	if !p.Teacher.HasSpecialization(p.Subject.Specialization) {
		return &Violation{
			Rule:    RuleSpecialization,
			Message: fmt.Sprintf("%s is not specialized in %s", p.Teacher.FullName, strings.TrimSpace(p.Subject.Specialization)),
		}
	}
	return nil
}

func checkAvailableDays(p MeetingProposal, _ []models.Meeting) *Violation {
	missing := p.Days.Difference(p.Teacher.AvailableDays())
	if missing.IsEmpty() {
		return nil
	}
	day := missing.Days()[0]
	return &Violation{
		Rule:    RuleAvailabilityDays,
		Message: fmt.Sprintf("%s is not available on %s", p.Teacher.FullName, day.Name()),
		Days:    missing,
	}
}

func checkPreferredWindow(p MeetingProposal, _ []models.Meeting) *Violation {
	window, err := p.Teacher.PreferredWindow()
	if errors.Is(err, models.ErrNoPreferredWindow) {
		return &Violation{
			Rule:    RuleAvailabilityTime,
			Message: fmt.Sprintf("%s has no preferred time window", p.Teacher.FullName),
		}
	}
	if err != nil || !window.Contains(p.Time) {
		return &Violation{
			Rule:    RuleAvailabilityTime,
			Message: fmt.Sprintf("meeting must be within preferred time window %s-%s", p.Teacher.PrefStart, p.Teacher.PrefEnd),
		}
	}
	return nil
}

func checkRoomOverlap(p MeetingProposal, timetable []models.Meeting) *Violation {
	ids, days := overlapping(p, timetable, func(m models.Meeting) bool { return m.RoomID == p.RoomID })
	if len(ids) == 0 {
		return nil
	}
	return &Violation{
		Rule:       RuleRoomOverlap,
		Message:    fmt.Sprintf("room already booked on %s", strings.Join(days.Names(), ", ")),
		MeetingIDs: ids,
		Days:       days,
	}
}

func checkSectionOverlap(p MeetingProposal, timetable []models.Meeting) *Violation {
	ids, days := overlapping(p, timetable, func(m models.Meeting) bool { return m.SectionID == p.SectionID })
	if len(ids) == 0 {
		return nil
	}
	return &Violation{
		Rule:       RuleSectionOverlap,
		Message:    "section already has another subject at this time",
		MeetingIDs: ids,
		Days:       days,
	}
}

func checkTeacherOverlap(p MeetingProposal, timetable []models.Meeting) *Violation {
	ids, days := overlapping(p, timetable, func(m models.Meeting) bool { return m.TeacherID == p.Teacher.ID })
	if len(ids) == 0 {
		return nil
	}
	return &Violation{
		Rule:       RuleTeacherOverlap,
		Message:    "teacher already has another class at this time",
		MeetingIDs: ids,
		Days:       days,
	}
}

func checkDuplicate(p MeetingProposal, timetable []models.Meeting) *Violation {
	for _, m := range timetable {
		if !samePeriodPeer(p, m) {
			continue
		}
		if m.SectionID == p.SectionID && m.SubjectID == p.Subject.ID && m.Days == p.Days {
			return &Violation{
				Rule:       RuleDuplicate,
				Message:    "same subject already on same day for this section",
				MeetingIDs: []string{m.ID},
				Days:       p.Days,
			}
		}
	}
	return nil
}

// overlapping collects peers matching sameResource that share a day and overlap in time.
func overlapping(p MeetingProposal, timetable []models.Meeting, sameResource func(models.Meeting) bool) ([]string, models.DaySet) {
	var ids []string
	var days models.DaySet
	for _, m := range timetable {
		if !samePeriodPeer(p, m) || !sameResource(m) || !m.Days.Intersects(p.Days) {
			continue
		}
		r, err := m.TimeRange()
		if err != nil || !r.Overlaps(p.Time) {
			continue
		}
		ids = append(ids, m.ID)
		days |= m.Days.Intersection(p.Days)
	}
	return ids, days
}

func samePeriodPeer(p MeetingProposal, m models.Meeting) bool {
	if p.MeetingID != "" && m.ID == p.MeetingID {
		return false
	}
	return p.PeriodID == "" || m.PeriodID == "" || m.PeriodID == p.PeriodID
}
