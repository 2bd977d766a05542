package models

import (
	"math"
	"time"
)

// Percentage returns present / max(present+absent, 1) * 100 rounded to one decimal.
func Percentage(present, absent int) float64 {
	total := present + absent
	if total < 1 {
		total = 1
	}
	return math.Round(float64(present)/float64(total)*1000) / 10
}

// Ratio returns part / max(whole, 1) * 100 rounded to one decimal.
func Ratio(part, whole int) float64 {
	if whole < 1 {
		whole = 1
	}
	return math.Round(float64(part)/float64(whole)*1000) / 10
}

// AttendanceCounts tallies marks by status. Excused marks are not graded.
type AttendanceCounts struct {
	Present int `db:"present" json:"present"`
	Absent  int `db:"absent" json:"absent"`
	Excused int `db:"excused" json:"excused"`
}

// Graded is the number of present and absent marks.
func (c AttendanceCounts) Graded() int { return c.Present + c.Absent }

// Percentage is the attendance percentage of the counts.
func (c AttendanceCounts) Percentage() float64 { return Percentage(c.Present, c.Absent) }

// SubjectCounts is the raw per-class tally for one student.
type SubjectCounts struct {
	AssignmentID string `db:"assignment_id" json:"assignmentId"`
	SubjectName  string `db:"subject_name" json:"subjectName"`
	TeacherName  string `db:"teacher_name" json:"teacherName"`
	AttendanceCounts
}

// SubjectStats adds the computed percentage to SubjectCounts.
type SubjectStats struct {
	SubjectCounts
	Percentage float64 `json:"percentage"`
}

// StudentCounts is the raw tally for one student.
type StudentCounts struct {
	StudentID        string  `db:"student_id" json:"studentId"`
	StudentName      string  `db:"student_name" json:"studentName"`
	EnrollmentNumber *string `db:"enrollment_number" json:"enrollmentNumber,omitempty"`
	GroupID          *string `db:"group_id" json:"groupId,omitempty"`
	GroupName        *string `db:"group_name" json:"groupName,omitempty"`
	AttendanceCounts
}

// StudentSummary adds the computed percentage to StudentCounts.
type StudentSummary struct {
	StudentCounts
	Percentage float64 `json:"percentage"`
}

// StudentSnapshot is everything read for one student inside a single transaction.
type StudentSnapshot struct {
	Student  StudentCounts
	Subjects []SubjectCounts
	History  []AttendanceEntry
}

// StudentStats is the attendance report for one student over a window.
type StudentStats struct {
	StudentSummary
	Window   DateRange         `json:"window"`
	Subjects []SubjectStats    `json:"subjects"`
	History  []AttendanceEntry `json:"history"`
}

// GroupCounts is the raw tally for one group.
type GroupCounts struct {
	GroupID   string `db:"group_id" json:"groupId"`
	GroupName string `db:"group_name" json:"groupName"`
	AttendanceCounts
}

// GroupSummary adds the computed percentage to GroupCounts.
type GroupSummary struct {
	GroupCounts
	Percentage float64 `json:"percentage"`
}

// GroupSnapshot is everything read for one group inside a single transaction.
type GroupSnapshot struct {
	Group    GroupCounts
	Students []StudentCounts
}

// GroupStats is the attendance report for one group over a window.
type GroupStats struct {
	GroupSummary
	Window   DateRange        `json:"window"`
	Students []StudentSummary `json:"students"`
}

// DailyCounts is the raw tally of one date.
type DailyCounts struct {
	Date Date `db:"date" json:"date"`
	AttendanceCounts
}

// TrendPoint is the attendance percentage of one date.
type TrendPoint struct {
	Date       Date    `json:"date"`
	Present    int     `json:"present"`
	Absent     int     `json:"absent"`
	Percentage float64 `json:"percentage"`
}

// GroupRanking lists the best and worst groups of a window.
type GroupRanking struct {
	Window DateRange      `json:"window"`
	Best   []GroupSummary `json:"best"`
	Worst  []GroupSummary `json:"worst"`
}

// GroupCategories splits groups by attendance thresholds.
type GroupCategories struct {
	Window             DateRange      `json:"window"`
	ExcellentThreshold float64        `json:"excellentThreshold"`
	CriticalThreshold  float64        `json:"criticalThreshold"`
	Excellent          []GroupSummary `json:"excellent"`
	Critical           []GroupSummary `json:"critical"`
}

// ProblemStudentParams selects students flagged by absence count.
type ProblemStudentParams struct {
	PeriodDays      int    `validate:"min=1,max=365"`
	MinimumAbsences int    `validate:"min=0"`
	GroupID         string `validate:"omitempty,uuid"`
}

// AssignmentActivity is the raw registration history of one assignment.
type AssignmentActivity struct {
	AssignmentID    string    `db:"assignment_id"`
	TeacherID       string    `db:"teacher_id"`
	TeacherName     string    `db:"teacher_name"`
	SubjectName     string    `db:"subject_name"`
	GroupName       string    `db:"group_name"`
	Weekday         Weekday   `db:"weekday"`
	StartTime       TimeOfDay `db:"start_time"`
	EndTime         TimeOfDay `db:"end_time"`
	CreatedAt       time.Time `db:"created_at"`
	RegisteredDates []Date
}

// AssignmentCompliance compares registered against expected classes for one assignment.
type AssignmentCompliance struct {
	AssignmentID string    `json:"assignmentId"`
	SubjectName  string    `json:"subjectName"`
	GroupName    string    `json:"groupName"`
	Weekday      Weekday   `json:"weekday"`
	StartTime    TimeOfDay `json:"startTime"`
	EndTime      TimeOfDay `json:"endTime"`
	CreatedAt    time.Time `json:"createdAt"`
	Expected     int       `json:"expected"`
	Registered   int       `json:"registered"`
	Compliance   float64   `json:"compliance"`
}

// MissedClass is a past class date without any attendance mark.
type MissedClass struct {
	AssignmentID string    `json:"assignmentId"`
	SubjectName  string    `json:"subjectName"`
	GroupName    string    `json:"groupName"`
	Date         Date      `json:"date"`
	StartTime    TimeOfDay `json:"startTime"`
}

// TeacherComplianceSummary aggregates compliance over all assignments of a teacher.
type TeacherComplianceSummary struct {
	TeacherID   string  `json:"teacherId"`
	TeacherName string  `json:"teacherName"`
	Assignments int     `json:"assignments"`
	Expected    int     `json:"expected"`
	Registered  int     `json:"registered"`
	Compliance  float64 `json:"compliance"`
}

// TeacherCompliance is the detailed compliance report of one teacher.
type TeacherCompliance struct {
	TeacherComplianceSummary
	Window       DateRange              `json:"window"`
	PerClass     []AssignmentCompliance `json:"perClass"`
	RecentMisses []MissedClass          `json:"recentMisses"`
}

// ScheduledClass is an assignment that meets on a given date with its registration state.
type ScheduledClass struct {
	AssignmentID    string     `db:"assignment_id" json:"assignmentId"`
	TeacherID       string     `db:"teacher_id" json:"teacherId"`
	TeacherName     string     `db:"teacher_name" json:"teacherName"`
	SubjectName     string     `db:"subject_name" json:"subjectName"`
	GroupID         string     `db:"group_id" json:"groupId"`
	GroupName       string     `db:"group_name" json:"groupName"`
	TimeSlotID      int        `db:"time_slot_id" json:"timeSlotId"`
	StartTime       TimeOfDay  `db:"start_time" json:"startTime"`
	EndTime         TimeOfDay  `db:"end_time" json:"endTime"`
	Marks           int        `db:"marks" json:"marks"`
	FirstRecordedAt *TimeOfDay `db:"first_recorded_at" json:"firstRecordedAt,omitempty"`
}

// SlotState places a class relative to the current wall-clock time.
type SlotState string

const (
	SlotStatePast       SlotState = "past"
	SlotStateInProgress SlotState = "in_progress"
	SlotStateUpcoming   SlotState = "upcoming"
)

// Timeliness grades when attendance was first registered for a class.
type Timeliness string

const (
	TimelinessOnTime   Timeliness = "on_time"
	TimelinessLate     Timeliness = "late"
	TimelinessVeryLate Timeliness = "very_late"
)

// MissingClass is a class scheduled today with no attendance mark.
type MissingClass struct {
	ScheduledClass
	State SlotState `json:"state"`
}

// RegisteredClass is a class scheduled today that already has marks.
type RegisteredClass struct {
	ScheduledClass
	Timeliness Timeliness `json:"timeliness"`
}

// ClassComplianceSummary counts scheduled against registered classes of a day.
type ClassComplianceSummary struct {
	Scheduled  int     `json:"scheduled"`
	Registered int     `json:"registered"`
	Missing    int     `json:"missing"`
	Compliance float64 `json:"compliance"`
}

// DailyClassReport lists the classes of a day split by registration state.
type DailyClassReport struct {
	Date       Date                   `json:"date"`
	Now        TimeOfDay              `json:"now"`
	Missing    []MissingClass         `json:"missing"`
	Registered []RegisteredClass      `json:"registered"`
	Summary    ClassComplianceSummary `json:"summary"`
}

// DailyHeadcount counts distinct students per status on one date.
type DailyHeadcount struct {
	ActiveStudents int `db:"active_students"`
	Present        int `db:"present"`
	Absent         int `db:"absent"`
	Excused        int `db:"excused"`
}

// DailyMetrics is the headline attendance of one date.
type DailyMetrics struct {
	Date              Date    `json:"date"`
	ActiveStudents    int     `json:"activeStudents"`
	Present           int     `json:"present"`
	Absent            int     `json:"absent"`
	Excused           int     `json:"excused"`
	PresentPercentage float64 `json:"presentPercentage"`
	AbsentPercentage  float64 `json:"absentPercentage"`
	ExcusedPercentage float64 `json:"excusedPercentage"`
}

// AlertCounts is the raw input of the alerts panel.
type AlertCounts struct {
	StudentsOverLimit int `db:"students_over_limit"`
	TeachersPending   int `db:"teachers_pending"`
	PerfectGroups     int `db:"perfect_groups"`
}

// Alerts summarises conditions that need attention today.
type Alerts struct {
	Date               Date `json:"date"`
	AbsenceLimit       int  `json:"absenceLimit"`
	AbsenceWindowDays  int  `json:"absenceWindowDays"`
	StudentsOverLimit  int  `json:"studentsOverLimit"`
	TeachersPending    int  `json:"teachersPending"`
	PerfectGroupsToday int  `json:"perfectGroupsToday"`
}

// SystemMetrics represents instrumentation counters captured in-process.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// HistoryClass is an assignment whose meetings are listed in the
// registration history.
type HistoryClass struct {
	AssignmentID string    `db:"assignment_id"`
	TeacherID    string    `db:"teacher_id"`
	TeacherName  string    `db:"teacher_name"`
	SubjectName  string    `db:"subject_name"`
	GroupID      string    `db:"group_id"`
	GroupName    string    `db:"group_name"`
	Weekday      Weekday   `db:"weekday"`
	StartTime    TimeOfDay `db:"start_time"`
	EndTime      TimeOfDay `db:"end_time"`
	CreatedAt    time.Time `db:"created_at"`
	Students     int       `db:"students"`
}

// ClassRegistration is the ledger activity of one assignment on one date.
type ClassRegistration struct {
	AssignmentID    string    `db:"assignment_id"`
	Date            Date      `db:"date"`
	FirstRecordedAt TimeOfDay `db:"first_recorded_at"`
	AttendanceCounts
}

// ClassMeeting is one expected meeting of an assignment and whether the
// teacher registered it.
type ClassMeeting struct {
	Date            Date       `json:"date"`
	AssignmentID    string     `json:"assignmentId"`
	TeacherID       string     `json:"teacherId"`
	TeacherName     string     `json:"teacherName"`
	SubjectName     string     `json:"subjectName"`
	GroupID         string     `json:"groupId"`
	GroupName       string     `json:"groupName"`
	StartTime       TimeOfDay  `json:"startTime"`
	EndTime         TimeOfDay  `json:"endTime"`
	Registered      bool       `json:"registered"`
	FirstRecordedAt *TimeOfDay `json:"firstRecordedAt,omitempty"`
	Timeliness      Timeliness `json:"timeliness,omitempty"`
	Students        int        `json:"students"`
	AttendanceCounts
}

// RegistrationSummary totals a registration history.
type RegistrationSummary struct {
	Expected   int     `json:"expected"`
	Registered int     `json:"registered"`
	Missing    int     `json:"missing"`
	OnTime     int     `json:"onTime"`
	Late       int     `json:"late"`
	VeryLate   int     `json:"veryLate"`
	Compliance float64 `json:"compliance"`
}

// RegistrationHistory lists expected class meetings of a period, newest first.
type RegistrationHistory struct {
	Window   DateRange           `json:"window"`
	Meetings []ClassMeeting      `json:"meetings"`
	Summary  RegistrationSummary `json:"summary"`
}

// RegistrationHistoryParams narrows the registration history. Zero dates
// default to the last DefaultPeriodDays days.
type RegistrationHistoryParams struct {
	From      Date
	To        Date
	TeacherID string `validate:"omitempty,uuid"`
	GroupID   string `validate:"omitempty,uuid"`
}
