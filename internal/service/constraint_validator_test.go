package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnuel1/spacio-backend/internal/models"
	"github.com/mnuel1/spacio-backend/pkg/timeutil"
)

func validatorTeacher() models.Teacher {
	return models.Teacher{
		ID:              "t1",
		FullName:        "Ana Cruz",
		Specializations: []string{"Programming", " Databases "},
		AvailDays:       models.MustParseDaySet("MWF"),
		PrefStart:       "08:00",
		PrefEnd:         "12:00",
		MaxLoad:         18,
	}
}

func validatorSubject() models.Subject {
	return models.Subject{ID: "s1", Code: "CS101", Specialization: "Programming", Units: 3}
}

func proposal(days, start, end string) MeetingProposal {
	return MeetingProposal{
		PeriodID:  "p1",
		Teacher:   validatorTeacher(),
		Subject:   validatorSubject(),
		SectionID: "sec1",
		RoomID:    "r1",
		Days:      models.MustParseDaySet(days),
		Time:      timeutil.Range{Start: timeutil.MustMinutes(start), End: timeutil.MustMinutes(end)},
	}
}

func committed(id, teacher, subject, section, room, days, start, end string) models.Meeting {
	return models.Meeting{
		ID: id, PeriodID: "p1", TeacherID: teacher, SubjectID: subject, SectionID: section, RoomID: room,
		Days: models.MustParseDaySet(days), StartTime: start, EndTime: end,
	}
}

func TestConstraintValidatorAcceptsWithinConstraints(t *testing.T) {
	v := NewConstraintValidator()
	assert.Nil(t, v.Validate(proposal("M", "08:00", "11:00"), nil))
}

func TestConstraintValidatorRuleOrder(t *testing.T) {
	v := NewConstraintValidator()

	overloaded := proposal("T", "07:00", "13:00")
	overloaded.Teacher.CurrentLoad = 17
	overloaded.Subject.Specialization = "Art"
	violation := v.Validate(overloaded, nil)
	require.NotNil(t, violation)
	assert.Equal(t, RuleLoad, violation.Rule)
	assert.Contains(t, violation.Message, "exceeds allowed load")

	unqualified := proposal("T", "07:00", "13:00")
	unqualified.Subject.Specialization = "Art"
	violation = v.Validate(unqualified, nil)
	require.NotNil(t, violation)
	assert.Equal(t, RuleSpecialization, violation.Rule)
	assert.Contains(t, violation.Message, "not specialized")

	violation = v.Validate(proposal("T", "07:00", "13:00"), nil)
	require.NotNil(t, violation)
	assert.Equal(t, RuleAvailabilityDays, violation.Rule)

	violation = v.Validate(proposal("M", "07:00", "09:00"), nil)
	require.NotNil(t, violation)
	assert.Equal(t, RuleAvailabilityTime, violation.Rule)
	assert.Contains(t, violation.Message, "must be within preferred time window")
}

func TestConstraintValidatorTrimmedSpecialization(t *testing.T) {
	p := proposal("M", "08:00", "09:00")
	p.Subject.Specialization = "Databases "
	assert.Nil(t, NewConstraintValidator().Validate(p, nil))

	p.Subject.Specialization = "Data"
	assert.Equal(t, RuleSpecialization, NewConstraintValidator().Validate(p, nil).Rule)
}

func TestConstraintValidatorNotAvailableOnTuesday(t *testing.T) {
	p := proposal("T", "08:00", "09:00")
	p.Teacher.AvailDays = models.MustParseDaySet("M")

	violation := NewConstraintValidator().Validate(p, nil)
	require.NotNil(t, violation)
	assert.Contains(t, violation.Message, "not available on Tuesday")
}

func TestConstraintValidatorThursdayDoesNotSatisfyTuesday(t *testing.T) {
	p := proposal("T", "08:00", "09:00")
	p.Teacher.AvailDays = models.MustParseDaySet("Th")

	violation := NewConstraintValidator().Validate(p, nil)
	require.NotNil(t, violation)
	assert.Equal(t, RuleAvailabilityDays, violation.Rule)
}

func TestConstraintValidatorEmptyAvailabilityAdmitsNoDay(t *testing.T) {
	p := proposal("T", "02:00", "05:00")
	p.Teacher.AvailDays = models.DaySet(0)

	violation := NewConstraintValidator().Validate(p, nil)
	require.NotNil(t, violation)
	assert.Equal(t, RuleAvailabilityDays, violation.Rule)
	assert.Contains(t, violation.Message, "not available on Tuesday")
}

func TestConstraintValidatorMissingWindowRejects(t *testing.T) {
	p := proposal("M", "02:00", "05:00")
	p.Teacher.PrefStart = ""
	p.Teacher.PrefEnd = ""

	violation := NewConstraintValidator().Validate(p, nil)
	require.NotNil(t, violation)
	assert.Equal(t, RuleAvailabilityTime, violation.Rule)
	assert.Equal(t, "Ana Cruz has no preferred time window", violation.Message)
}

func TestConstraintValidatorRoomOverlapListsDays(t *testing.T) {
	timetable := []models.Meeting{committed("m1", "t9", "s9", "sec9", "r1", "MW", "10:00", "12:00")}

	violation := NewConstraintValidator().Validate(proposal("MWF", "09:00", "11:00"), timetable)
	require.NotNil(t, violation)
	assert.Equal(t, RuleRoomOverlap, violation.Rule)
	assert.Equal(t, "room already booked on Monday, Wednesday", violation.Message)
	assert.Equal(t, []string{"m1"}, violation.MeetingIDs)
}

func TestConstraintValidatorTouchingRangesDoNotConflict(t *testing.T) {
	timetable := []models.Meeting{committed("m1", "t1", "s9", "sec1", "r1", "M", "09:00", "10:00")}
	assert.Nil(t, NewConstraintValidator().Validate(proposal("M", "10:00", "11:00"), timetable))
}

func TestConstraintValidatorSectionAndTeacherOverlap(t *testing.T) {
	v := NewConstraintValidator()

	sectionBusy := []models.Meeting{committed("m1", "t9", "s2", "sec1", "r9", "M", "08:30", "09:30")}
	violation := v.Validate(proposal("M", "08:00", "09:00"), sectionBusy)
	require.NotNil(t, violation)
	assert.Equal(t, RuleSectionOverlap, violation.Rule)
	assert.Contains(t, violation.Message, "section already has another subject")

	teacherBusy := []models.Meeting{committed("m2", "t1", "s2", "sec9", "r9", "M", "08:30", "09:30")}
	violation = v.Validate(proposal("M", "08:00", "09:00"), teacherBusy)
	require.NotNil(t, violation)
	assert.Equal(t, RuleTeacherOverlap, violation.Rule)
	assert.Contains(t, violation.Message, "teacher already has another class")
}

func TestConstraintValidatorExactDuplicateWithoutOverlap(t *testing.T) {
	timetable := []models.Meeting{committed("m1", "t9", "s1", "sec1", "r9", "MW", "10:00", "11:00")}

	violation := NewConstraintValidator().Validate(proposal("MW", "08:00", "09:00"), timetable)
	require.NotNil(t, violation)
	assert.Equal(t, RuleDuplicate, violation.Rule)
	assert.Contains(t, violation.Message, "same subject already on same day")

	assert.Nil(t, NewConstraintValidator().Validate(proposal("M", "08:00", "09:00"), timetable))
}

func TestConstraintValidatorIgnoresOtherPeriodsAndSelf(t *testing.T) {
	other := committed("m1", "t1", "s1", "sec1", "r1", "M", "08:00", "09:00")
	other.PeriodID = "p0"
	assert.Nil(t, NewConstraintValidator().Validate(proposal("M", "08:00", "09:00"), []models.Meeting{other}))

	self := committed("m2", "t1", "s1", "sec1", "r1", "M", "08:00", "09:00")
	p := proposal("M", "08:00", "09:00")
	p.MeetingID = "m2"
	p.Teacher.CurrentLoad = 18
	p.LoadCredit = 3
	assert.Nil(t, NewConstraintValidator().Validate(p, []models.Meeting{self}))
}
