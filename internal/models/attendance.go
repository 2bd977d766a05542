package models

// AttendanceStatus is the mark given to a student for one class on one date.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusExcused AttendanceStatus = "excused"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// AttendanceRecord is the single ledger row for a (student, assignment, date) key.
type AttendanceRecord struct {
	ID           string           `db:"id" json:"id"`
	StudentID    string           `db:"student_id" json:"studentId"`
	AssignmentID string           `db:"assignment_id" json:"assignmentId"`
	Date         Date             `db:"date" json:"date"`
	Status       AttendanceStatus `db:"status" json:"status"`
	RecordedAt   TimeOfDay        `db:"recorded_at" json:"recordedAt"`
	Notes        *string          `db:"notes" json:"notes,omitempty"`
}

// AttendanceEntry is a ledger row joined with student and class display data.
type AttendanceEntry struct {
	AttendanceRecord
	StudentName      string    `db:"student_name" json:"studentName"`
	EnrollmentNumber *string   `db:"enrollment_number" json:"enrollmentNumber,omitempty"`
	GroupID          string    `db:"group_id" json:"groupId"`
	GroupName        string    `db:"group_name" json:"groupName"`
	SubjectName      string    `db:"subject_name" json:"subjectName"`
	TeacherName      string    `db:"teacher_name" json:"teacherName"`
	StartTime        TimeOfDay `db:"start_time" json:"startTime"`
	EndTime          TimeOfDay `db:"end_time" json:"endTime"`
}

// AttendanceFilter narrows ledger queries. Empty fields do not filter.
type AttendanceFilter struct {
	GroupID      string
	AssignmentID string
	StudentID    string
	Date         Date
	Page         int
	PageSize     int
}

// RecordAttendanceRequest is a single mark submission.
type RecordAttendanceRequest struct {
	StudentID    string           `json:"studentId" validate:"required,uuid"`
	AssignmentID string           `json:"assignmentId" validate:"required,uuid"`
	Date         string           `json:"date" validate:"required,datetime=2006-01-02"`
	Status       AttendanceStatus `json:"status" validate:"required,attendance_status"`
	Notes        *string          `json:"notes,omitempty" validate:"omitempty,max=500"`
	RecordedAt   string           `json:"recordedAt,omitempty" validate:"omitempty,time_of_day"`
}

// RosterStudent is an active student of a class together with the mark
// already given on the roster date, if any.
type RosterStudent struct {
	StudentID        string            `db:"student_id" json:"studentId"`
	FullName         string            `db:"full_name" json:"fullName"`
	EnrollmentNumber *string           `db:"enrollment_number" json:"enrollmentNumber,omitempty"`
	Status           *AttendanceStatus `db:"status" json:"status,omitempty"`
	RecordedAt       *TimeOfDay        `db:"recorded_at" json:"recordedAt,omitempty"`
}

// ClassRoster is the check-in sheet of one assignment on one date.
type ClassRoster struct {
	Assignment AssignmentDetail `json:"assignment"`
	Date       Date             `json:"date"`
	Marked     int              `json:"marked"`
	Students   []RosterStudent  `json:"students"`
}
