package service

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/mnuel1/spacio-backend/internal/dto"
	"github.com/mnuel1/spacio-backend/internal/models"
	appErrors "github.com/mnuel1/spacio-backend/pkg/errors"
	"github.com/mnuel1/spacio-backend/pkg/timeutil"
)

// AutoSchedulerOptions selects the placement strategy.
type AutoSchedulerOptions struct {
	// PlacementRetries is the number of extra random starts tried per day.
	PlacementRetries int
	// AtomicPlacement rolls back a pairing's blocks when a later block fails.
	AtomicPlacement bool
	// SlotGranularity aligns random starts to this many minutes.
	SlotGranularity int
}

// ScheduleInput is everything one run needs, already scoped to a period.
type ScheduleInput struct {
	PeriodID string
	// Candidates are the teachers that may receive new meetings, with running loads.
	Candidates []models.Teacher
	Rooms      []models.Room
	Subjects   []models.Subject
	Sections   []models.Section
	// Existing meetings are kept and act as obstacles.
	Existing []models.Meeting
}

// ScheduleOutcome is the in-memory result of a run, before persistence.
type ScheduleOutcome struct {
	Placements   []dto.Placement
	Unassigned   []dto.UnassignedPairing
	TeacherLoads map[string]int
	BlocksPlaced int
}

// AutoScheduler greedily fills a period timetable using first-fit teachers and rooms.
type AutoScheduler struct {
	planner *BlockPlanner
	rng     *rand.Rand
	opts    AutoSchedulerOptions
}

// NewAutoScheduler builds an engine. A nil rng is seeded from the clock.
func NewAutoScheduler(rng *rand.Rand, opts AutoSchedulerOptions) *AutoScheduler {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.SlotGranularity <= 0 {
		opts.SlotGranularity = 1
	}
	if opts.PlacementRetries < 0 {
		opts.PlacementRetries = 0
	}
	return &AutoScheduler{
		planner: NewBlockPlanner(rand.New(rand.NewSource(rng.Int63()))),
		rng:     rng,
		opts:    opts,
	}
}

type interval struct {
	owner string
	span  timeutil.Range
}

// bookingIndex tracks occupied time per resource and day for one run.
type bookingIndex struct {
	rooms    map[string]map[models.Weekday][]interval
	teachers map[string]map[models.Weekday][]interval
	sections map[string]map[models.Weekday][]interval
}

func newBookingIndex() *bookingIndex {
	return &bookingIndex{
		rooms:    map[string]map[models.Weekday][]interval{},
		teachers: map[string]map[models.Weekday][]interval{},
		sections: map[string]map[models.Weekday][]interval{},
	}
}

func busy(book map[string]map[models.Weekday][]interval, id string, day models.Weekday, span timeutil.Range) bool {
	for _, existing := range book[id][day] {
		if existing.span.Overlaps(span) {
			return true
		}
	}
	return false
}

func reserve(book map[string]map[models.Weekday][]interval, id string, day models.Weekday, entry interval) {
	days, ok := book[id]
	if !ok {
		days = map[models.Weekday][]interval{}
		book[id] = days
	}
	days[day] = append(days[day], entry)
}

func unreserve(book map[string]map[models.Weekday][]interval, id string, day models.Weekday, owner string) {
	entries := book[id][day]
	for i, entry := range entries {
		if entry.owner == owner {
			book[id][day] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

func (b *bookingIndex) free(roomID, teacherID, sectionID string, day models.Weekday, span timeutil.Range) bool {
	return !busy(b.rooms, roomID, day, span) &&
		!busy(b.teachers, teacherID, day, span) &&
		!busy(b.sections, sectionID, day, span)
}

func (b *bookingIndex) book(roomID, teacherID, sectionID string, day models.Weekday, entry interval) {
	reserve(b.rooms, roomID, day, entry)
	reserve(b.teachers, teacherID, day, entry)
	reserve(b.sections, sectionID, day, entry)
}

func (b *bookingIndex) release(roomID, teacherID, sectionID string, day models.Weekday, owner string) {
	unreserve(b.rooms, roomID, day, owner)
	unreserve(b.teachers, teacherID, day, owner)
	unreserve(b.sections, sectionID, day, owner)
}

// seed books kept meetings. Rows with unreadable times are skipped.
func (b *bookingIndex) seed(meetings []models.Meeting) {
	for _, m := range meetings {
		span, err := m.TimeRange()
		if err != nil {
			continue
		}
		for _, day := range m.Days.Days() {
			b.book(m.RoomID, m.TeacherID, m.SectionID, day, interval{owner: "existing:" + m.ID, span: span})
		}
	}
}

type blockPlacement struct {
	owner   string
	teacher models.Teacher
	subject models.Subject
	section models.Section
	room    models.Room
	day     models.Weekday
	span    timeutil.Range
}

type bucketKey struct {
	schoolYear string
	semester   string
}

// run holds the mutable state of one invocation.
type run struct {
	engine   *AutoScheduler
	index    *bookingIndex
	loads    map[string]int
	received map[string]bool
	memo     map[string]string
	teachers []models.Teacher
	rooms    map[models.RoomType][]models.Room
	placed   []blockPlacement
	missed   []dto.UnassignedPairing
	seq      int
}

// Run schedules every uncovered section and subject pairing of the input.
func (a *AutoScheduler) Run(input ScheduleInput) ScheduleOutcome {
	r := &run{
		engine:   a,
		index:    newBookingIndex(),
		loads:    map[string]int{},
		received: map[string]bool{},
		memo:     map[string]string{},
		teachers: append([]models.Teacher(nil), input.Candidates...),
		rooms:    map[models.RoomType][]models.Room{},
	}
	r.index.seed(input.Existing)

	sort.SliceStable(r.teachers, func(i, j int) bool { return r.teachers[i].ID < r.teachers[j].ID })
	for _, t := range r.teachers {
		r.loads[t.ID] = t.CurrentLoad
	}

	rooms := append([]models.Room(nil), input.Rooms...)
	sort.SliceStable(rooms, func(i, j int) bool {
		if rooms[i].Name != rooms[j].Name {
			return rooms[i].Name < rooms[j].Name
		}
		return rooms[i].ID < rooms[j].ID
	})
	r.rooms = lo.GroupBy(rooms, func(room models.Room) models.RoomType { return room.Type })

	covered := lo.Associate(input.Existing, func(m models.Meeting) (string, bool) {
		return pairingKey(m.SectionID, m.SubjectID), true
	})

	subjectsByBucket := lo.GroupBy(input.Subjects, func(s models.Subject) bucketKey {
		return bucketKey{schoolYear: s.SchoolYear, semester: s.Semester}
	})
	sectionsByBucket := lo.GroupBy(input.Sections, func(s models.Section) bucketKey {
		return bucketKey{schoolYear: s.SchoolYear, semester: s.Semester}
	})

	buckets := lo.Keys(sectionsByBucket)
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].schoolYear != buckets[j].schoolYear {
			return buckets[i].schoolYear < buckets[j].schoolYear
		}
		return buckets[i].semester < buckets[j].semester
	})

	for _, bucket := range buckets {
		sections := sectionsByBucket[bucket]
		subjects := subjectsByBucket[bucket]
		sort.SliceStable(sections, func(i, j int) bool {
			if sections[i].Name != sections[j].Name {
				return sections[i].Name < sections[j].Name
			}
			return sections[i].ID < sections[j].ID
		})
		sort.SliceStable(subjects, func(i, j int) bool {
			if subjects[i].Code != subjects[j].Code {
				return subjects[i].Code < subjects[j].Code
			}
			return subjects[i].ID < subjects[j].ID
		})
		for _, section := range sections {
			for _, subject := range subjects {
				if covered[pairingKey(section.ID, subject.ID)] {
					continue
				}
				r.schedulePairing(section, subject)
			}
		}
	}

	return r.outcome()
}

func pairingKey(sectionID, subjectID string) string {
	return sectionID + "|" + subjectID
}

func (r *run) unassigned(section models.Section, subject models.Subject, reason string) {
	r.missed = append(r.missed, dto.UnassignedPairing{
		SubjectID:   subject.ID,
		SubjectCode: subject.Code,
		SectionID:   section.ID,
		SectionName: section.Name,
		Code:        appErrors.ErrPlacementFailed.Code,
		Reason:      reason,
	})
}

func (r *run) selectTeacher(section models.Section, subject models.Subject) (*models.Teacher, string) {
	memoKey := section.ID + "|" + subject.Code
	if id, ok := r.memo[memoKey]; ok {
		for i := range r.teachers {
			if r.teachers[i].ID == id {
				return &r.teachers[i], ""
			}
		}
	}

	specialized := false
	for i := range r.teachers {
		t := &r.teachers[i]
		if !t.HasSpecialization(subject.Specialization) {
			continue
		}
		specialized = true
		if r.loads[t.ID]+subject.Units <= t.EffectiveMaxLoad() {
			r.memo[memoKey] = t.ID
			return t, ""
		}
	}
	if specialized {
		return nil, fmt.Sprintf("every teacher specialized in %q would exceed their maximum load with %d more units", subject.Specialization, subject.Units)
	}
	return nil, fmt.Sprintf("no teacher specialized in %q", subject.Specialization)
}

func (r *run) schedulePairing(section models.Section, subject models.Subject) {
	blocks := r.engine.planner.PlanBlocks(subject.LecHours, subject.LabHours)
	if len(blocks) == 0 {
		r.unassigned(section, subject, "subject has no lecture or lab hours")
		return
	}

	teacher, reason := r.selectTeacher(section, subject)
	if teacher == nil {
		r.unassigned(section, subject, reason)
		return
	}

	if teacher.AvailableDays().IsEmpty() {
		r.unassigned(section, subject, fmt.Sprintf("teacher %s has no available days", teacher.FullName))
		return
	}
	window, err := teacher.PreferredWindow()
	if errors.Is(err, models.ErrNoPreferredWindow) {
		r.unassigned(section, subject, fmt.Sprintf("teacher %s has no preferred time window", teacher.FullName))
		return
	}
	if err != nil {
		r.unassigned(section, subject, fmt.Sprintf("teacher %s has an unreadable preferred window", teacher.FullName))
		return
	}

	var (
		used    models.DaySet
		placed  []blockPlacement
		failure string
	)
	for _, block := range blocks {
		placement, ok := r.placeBlock(*teacher, subject, section, block, window, used)
		if !ok {
			failure = fmt.Sprintf("could not place %d-hour %s block with %s", block.Hours, block.Type, teacher.FullName)
			break
		}
		used = used.Add(placement.day)
		placed = append(placed, placement)
	}

	if failure != "" && r.engine.opts.AtomicPlacement {
		for _, p := range placed {
			r.index.release(p.room.ID, p.teacher.ID, p.section.ID, p.day, p.owner)
		}
		placed = nil
		delete(r.memo, section.ID+"|"+subject.Code)
	}
	if len(placed) > 0 {
		r.placed = append(r.placed, placed...)
		r.loads[teacher.ID] += subject.Units
		r.received[teacher.ID] = true
	}
	if failure != "" {
		r.unassigned(section, subject, failure)
	}
}

func (r *run) placeBlock(teacher models.Teacher, subject models.Subject, section models.Section, block models.Block, window timeutil.Range, used models.DaySet) (blockPlacement, bool) {
	duration := block.Hours * 60
	if duration > window.Minutes() {
		return blockPlacement{}, false
	}
	candidates := r.rooms[block.Type]
	for _, day := range teacher.AvailableDays().Days() {
		if used.Contains(day) {
			continue
		}
		for attempt := 0; attempt <= r.engine.opts.PlacementRetries; attempt++ {
			start := r.randomStart(window, duration)
			span := timeutil.Range{Start: start, End: start + duration}
			for _, room := range candidates {
				if !r.index.free(room.ID, teacher.ID, section.ID, day, span) {
					continue
				}
				r.seq++
				p := blockPlacement{
					owner:   fmt.Sprintf("block:%d", r.seq),
					teacher: teacher,
					subject: subject,
					section: section,
					room:    room,
					day:     day,
					span:    span,
				}
				r.index.book(room.ID, teacher.ID, section.ID, day, interval{owner: p.owner, span: span})
				return p, true
			}
		}
	}
	return blockPlacement{}, false
}

func (r *run) randomStart(window timeutil.Range, duration int) int {
	step := r.engine.opts.SlotGranularity
	slots := (window.End - duration - window.Start) / step
	if slots <= 0 {
		return window.Start
	}
	return window.Start + r.engine.rng.Intn(slots+1)*step
}

// outcome merges block placements into one row per
// (teacher, subject, section, room, start, end) with the days combined.
func (r *run) outcome() ScheduleOutcome {
	type mergeKey struct {
		teacher, subject, section, room string
		start, end                      int
	}
	merged := map[mergeKey]int{}
	credited := map[string]bool{}
	placements := make([]dto.Placement, 0, len(r.placed))

	for _, p := range r.placed {
		key := mergeKey{p.teacher.ID, p.subject.ID, p.section.ID, p.room.ID, p.span.Start, p.span.End}
		if i, ok := merged[key]; ok {
			placements[i].Days = placements[i].Days.Add(p.day)
			continue
		}
		duration, _ := timeutil.DurationHHMM(p.span.Start, p.span.End)
		placement := dto.Placement{
			TeacherID:   p.teacher.ID,
			SubjectID:   p.subject.ID,
			SubjectCode: p.subject.Code,
			SectionID:   p.section.ID,
			RoomID:      p.room.ID,
			RoomType:    p.room.Type,
			Days:        models.NewDaySet(p.day),
			StartTime:   timeutil.ToHHMM(p.span.Start),
			EndTime:     timeutil.ToHHMM(p.span.End),
			Duration:    duration,
		}
		pair := strings.Join([]string{p.teacher.ID, p.subject.ID, p.section.ID}, "|")
		if !credited[pair] {
			placement.LoadUnits = p.subject.Units
			credited[pair] = true
		}
		merged[key] = len(placements)
		placements = append(placements, placement)
	}

	loads := make(map[string]int, len(r.received))
	for id := range r.received {
		loads[id] = r.loads[id]
	}
	return ScheduleOutcome{
		Placements:   placements,
		Unassigned:   r.missed,
		TeacherLoads: loads,
		BlocksPlaced: len(r.placed),
	}
}
