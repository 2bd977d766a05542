package service

import (
	"sort"
	"time"

	"github.com/noah-isme/school-attendance-api/internal/models"
)

const (
	onTimeGrace      = 15 * time.Minute
	lateGrace        = 2 * time.Hour
	missLookbackDays = 7
	missLimit        = 10
)

func summarizeStudent(c models.StudentCounts) models.StudentSummary {
	return models.StudentSummary{StudentCounts: c, Percentage: c.Percentage()}
}

func summarizeGroup(c models.GroupCounts) models.GroupSummary {
	return models.GroupSummary{GroupCounts: c, Percentage: c.Percentage()}
}

// buildTrend keeps dates with at least one graded mark, newest first.
func buildTrend(rows []models.DailyCounts) []models.TrendPoint {
	points := make([]models.TrendPoint, 0, len(rows))
	for _, row := range rows {
		if row.Graded() == 0 {
			continue
		}
		points = append(points, models.TrendPoint{
			Date:       row.Date,
			Present:    row.Present,
			Absent:     row.Absent,
			Percentage: row.Percentage(),
		})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.After(points[j].Date) })
	return points
}

func gradedGroups(rows []models.GroupCounts) []models.GroupSummary {
	groups := make([]models.GroupSummary, 0, len(rows))
	for _, row := range rows {
		if row.Graded() == 0 {
			continue
		}
		groups = append(groups, summarizeGroup(row))
	}
	return groups
}

// rankGroups returns up to limit best and worst groups. Groups without graded
// marks are left out; equal percentages fall back to ascending group id.
func rankGroups(rows []models.GroupCounts, limit int) (best, worst []models.GroupSummary) {
	groups := gradedGroups(rows)

	best = append([]models.GroupSummary(nil), groups...)
	sort.SliceStable(best, func(i, j int) bool {
		if best[i].Percentage != best[j].Percentage {
			return best[i].Percentage > best[j].Percentage
		}
		return best[i].GroupID < best[j].GroupID
	})

	worst = append([]models.GroupSummary(nil), groups...)
	sort.SliceStable(worst, func(i, j int) bool {
		if worst[i].Percentage != worst[j].Percentage {
			return worst[i].Percentage < worst[j].Percentage
		}
		return worst[i].GroupID < worst[j].GroupID
	})

	return truncate(best, limit), truncate(worst, limit)
}

func truncate[T any](items []T, limit int) []T {
	if limit >= 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

// categorizeGroups splits graded groups into those at or above excellent and
// those below critical.
func categorizeGroups(rows []models.GroupCounts, excellent, critical float64) (top, bottom []models.GroupSummary) {
	top = []models.GroupSummary{}
	bottom = []models.GroupSummary{}
	for _, group := range gradedGroups(rows) {
		switch {
		case group.Percentage >= excellent:
			top = append(top, group)
		case group.Percentage < critical:
			bottom = append(bottom, group)
		}
	}
	sort.SliceStable(top, func(i, j int) bool {
		if top[i].Percentage != top[j].Percentage {
			return top[i].Percentage > top[j].Percentage
		}
		return top[i].GroupID < top[j].GroupID
	})
	sort.SliceStable(bottom, func(i, j int) bool {
		if bottom[i].Percentage != bottom[j].Percentage {
			return bottom[i].Percentage < bottom[j].Percentage
		}
		return bottom[i].GroupID < bottom[j].GroupID
	})
	return top, bottom
}

// selectProblemStudents keeps students with at least minimumAbsences absences,
// worst percentage first, then most absences, then student id.
func selectProblemStudents(rows []models.StudentCounts, minimumAbsences int) []models.StudentSummary {
	students := make([]models.StudentSummary, 0, len(rows))
	for _, row := range rows {
		if row.Absent < minimumAbsences {
			continue
		}
		students = append(students, summarizeStudent(row))
	}
	sort.SliceStable(students, func(i, j int) bool {
		a, b := students[i], students[j]
		if a.Percentage != b.Percentage {
			return a.Percentage < b.Percentage
		}
		if a.Absent != b.Absent {
			return a.Absent > b.Absent
		}
		return a.StudentID < b.StudentID
	})
	return students
}

// expectedClasses counts the whole weeks elapsed between the later of the
// creation date and the window start, and the end of the window.
func expectedClasses(created models.Date, window models.DateRange) int {
	start := window.From
	if created.After(start) {
		start = created
	}
	days := window.To.DaysSince(start)
	if days < 0 {
		return 0
	}
	return days / 7
}

func assignmentCompliance(activity models.AssignmentActivity, window models.DateRange) models.AssignmentCompliance {
	created := models.DateOf(activity.CreatedAt)
	registered := 0
	for _, d := range activity.RegisteredDates {
		if !d.Before(created) && !d.Before(window.From) && !d.After(window.To) {
			registered++
		}
	}
	expected := expectedClasses(created, window)
	return models.AssignmentCompliance{
		AssignmentID: activity.AssignmentID,
		SubjectName:  activity.SubjectName,
		GroupName:    activity.GroupName,
		Weekday:      activity.Weekday,
		StartTime:    activity.StartTime,
		EndTime:      activity.EndTime,
		CreatedAt:    activity.CreatedAt,
		Expected:     expected,
		Registered:   registered,
		Compliance:   models.Ratio(registered, expected),
	}
}

// recentMisses lists past class dates of the last week, inside the window and
// not before creation, that have no mark. Newest first.
func recentMisses(activities []models.AssignmentActivity, window models.DateRange) []models.MissedClass {
	misses := []models.MissedClass{}
	for _, activity := range activities {
		created := models.DateOf(activity.CreatedAt)
		seen := make(map[string]struct{}, len(activity.RegisteredDates))
		for _, d := range activity.RegisteredDates {
			seen[d.String()] = struct{}{}
		}
		for offset := 1; offset <= missLookbackDays; offset++ {
			d := window.To.AddDays(-offset)
			if d.Before(window.From) || d.Before(created) {
				break
			}
			weekday, ok := models.WeekdayOf(d.Weekday())
			if !ok || weekday != activity.Weekday {
				continue
			}
			if _, ok := seen[d.String()]; ok {
				continue
			}
			misses = append(misses, models.MissedClass{
				AssignmentID: activity.AssignmentID,
				SubjectName:  activity.SubjectName,
				GroupName:    activity.GroupName,
				Date:         d,
				StartTime:    activity.StartTime,
			})
		}
	}
	sort.SliceStable(misses, func(i, j int) bool {
		if !misses[i].Date.Time().Equal(misses[j].Date.Time()) {
			return misses[i].Date.After(misses[j].Date)
		}
		return misses[i].StartTime < misses[j].StartTime
	})
	return truncate(misses, missLimit)
}

// teacherCompliance builds the detailed report of one teacher.
func teacherCompliance(teacherID, teacherName string, activities []models.AssignmentActivity, window models.DateRange) models.TeacherCompliance {
	report := models.TeacherCompliance{
		TeacherComplianceSummary: models.TeacherComplianceSummary{TeacherID: teacherID, TeacherName: teacherName},
		Window:                   window,
		PerClass:                 make([]models.AssignmentCompliance, 0, len(activities)),
	}
	for _, activity := range activities {
		c := assignmentCompliance(activity, window)
		report.PerClass = append(report.PerClass, c)
		report.Assignments++
		report.Expected += c.Expected
		report.Registered += c.Registered
	}
	report.Compliance = models.Ratio(report.Registered, report.Expected)
	report.RecentMisses = recentMisses(activities, window)
	return report
}

// selectProblemTeachers aggregates compliance per teacher and keeps those
// below threshold. Teachers with no expected class yet are skipped.
func selectProblemTeachers(activities []models.AssignmentActivity, window models.DateRange, threshold float64) []models.TeacherComplianceSummary {
	byTeacher := map[string]*models.TeacherComplianceSummary{}
	order := []string{}
	for _, activity := range activities {
		summary, ok := byTeacher[activity.TeacherID]
		if !ok {
			summary = &models.TeacherComplianceSummary{TeacherID: activity.TeacherID, TeacherName: activity.TeacherName}
			byTeacher[activity.TeacherID] = summary
			order = append(order, activity.TeacherID)
		}
		c := assignmentCompliance(activity, window)
		summary.Assignments++
		summary.Expected += c.Expected
		summary.Registered += c.Registered
	}

	teachers := []models.TeacherComplianceSummary{}
	for _, id := range order {
		summary := byTeacher[id]
		if summary.Expected == 0 {
			continue
		}
		summary.Compliance = models.Ratio(summary.Registered, summary.Expected)
		if summary.Compliance < threshold {
			teachers = append(teachers, *summary)
		}
	}
	sort.SliceStable(teachers, func(i, j int) bool {
		if teachers[i].Compliance != teachers[j].Compliance {
			return teachers[i].Compliance < teachers[j].Compliance
		}
		return teachers[i].TeacherID < teachers[j].TeacherID
	})
	return teachers
}

// classifySlot compares the wall-clock time against the class period.
func classifySlot(start, end, now models.TimeOfDay) models.SlotState {
	switch {
	case now >= end:
		return models.SlotStatePast
	case now >= start:
		return models.SlotStateInProgress
	default:
		return models.SlotStateUpcoming
	}
}

// classifyTimeliness grades the first registration of a class.
func classifyTimeliness(start, end, first models.TimeOfDay) models.Timeliness {
	switch {
	case first <= start.Add(onTimeGrace):
		return models.TimelinessOnTime
	case first <= end.Add(lateGrace):
		return models.TimelinessLate
	default:
		return models.TimelinessVeryLate
	}
}

// dailyClassReport splits the classes of date into missing and registered.
func dailyClassReport(date models.Date, now models.TimeOfDay, classes []models.ScheduledClass) models.DailyClassReport {
	report := models.DailyClassReport{
		Date:       date,
		Now:        now,
		Missing:    []models.MissingClass{},
		Registered: []models.RegisteredClass{},
	}
	for _, class := range classes {
		if class.Marks == 0 {
			report.Missing = append(report.Missing, models.MissingClass{
				ScheduledClass: class,
				State:          classifySlot(class.StartTime, class.EndTime, now),
			})
			continue
		}
		first := class.StartTime
		if class.FirstRecordedAt != nil {
			first = *class.FirstRecordedAt
		}
		report.Registered = append(report.Registered, models.RegisteredClass{
			ScheduledClass: class,
			Timeliness:     classifyTimeliness(class.StartTime, class.EndTime, first),
		})
	}

	scheduled := len(classes)
	report.Summary = models.ClassComplianceSummary{
		Scheduled:  scheduled,
		Registered: len(report.Registered),
		Missing:    len(report.Missing),
		Compliance: 100,
	}
	if scheduled > 0 {
		report.Summary.Compliance = models.Ratio(len(report.Registered), scheduled)
	}
	return report
}

func dailyMetrics(date models.Date, headcount models.DailyHeadcount) models.DailyMetrics {
	return models.DailyMetrics{
		Date:              date,
		ActiveStudents:    headcount.ActiveStudents,
		Present:           headcount.Present,
		Absent:            headcount.Absent,
		Excused:           headcount.Excused,
		PresentPercentage: models.Ratio(headcount.Present, headcount.ActiveStudents),
		AbsentPercentage:  models.Ratio(headcount.Absent, headcount.ActiveStudents),
		ExcusedPercentage: models.Ratio(headcount.Excused, headcount.ActiveStudents),
	}
}

// registrationHistory lays every class onto the dates of window that fall on
// its weekday, from its creation date up to today, and matches each against
// the ledger. Today's unregistered classes are listed only once their slot
// has ended.
func registrationHistory(classes []models.HistoryClass, registrations []models.ClassRegistration, window models.DateRange, today models.Date, now models.TimeOfDay) models.RegistrationHistory {
	byKey := make(map[string]models.ClassRegistration, len(registrations))
	for _, reg := range registrations {
		byKey[reg.AssignmentID+"|"+reg.Date.String()] = reg
	}

	history := models.RegistrationHistory{Window: window, Meetings: []models.ClassMeeting{}}
	for d := window.To; !d.Before(window.From); d = d.AddDays(-1) {
		if d.After(today) {
			continue
		}
		weekday, ok := models.WeekdayOf(d.Weekday())
		if !ok {
			continue
		}
		for _, class := range classes {
			if class.Weekday != weekday || d.Before(models.DateOf(class.CreatedAt)) {
				continue
			}
			meeting := models.ClassMeeting{
				Date:         d,
				AssignmentID: class.AssignmentID,
				TeacherID:    class.TeacherID,
				TeacherName:  class.TeacherName,
				SubjectName:  class.SubjectName,
				GroupID:      class.GroupID,
				GroupName:    class.GroupName,
				StartTime:    class.StartTime,
				EndTime:      class.EndTime,
				Students:     class.Students,
			}
			reg, registered := byKey[class.AssignmentID+"|"+d.String()]
			if !registered && !d.Before(today) && classifySlot(class.StartTime, class.EndTime, now) != models.SlotStatePast {
				continue
			}

			history.Summary.Expected++
			if !registered {
				history.Summary.Missing++
				history.Meetings = append(history.Meetings, meeting)
				continue
			}
			first := reg.FirstRecordedAt
			meeting.Registered = true
			meeting.FirstRecordedAt = &first
			meeting.AttendanceCounts = reg.AttendanceCounts
			meeting.Timeliness = classifyTimeliness(class.StartTime, class.EndTime, first)
			history.Summary.Registered++
			switch meeting.Timeliness {
			case models.TimelinessOnTime:
				history.Summary.OnTime++
			case models.TimelinessLate:
				history.Summary.Late++
			default:
				history.Summary.VeryLate++
			}
			history.Meetings = append(history.Meetings, meeting)
		}
	}
	history.Summary.Compliance = models.Ratio(history.Summary.Registered, history.Summary.Expected)
	return history
}
