package models

import "time"

// Assignment binds a teacher, a subject and a group to one weekly time slot.
type Assignment struct {
	ID         string    `db:"id" json:"id"`
	TeacherID  string    `db:"teacher_id" json:"teacherId"`
	SubjectID  string    `db:"subject_id" json:"subjectId"`
	GroupID    string    `db:"group_id" json:"groupId"`
	TimeSlotID int       `db:"time_slot_id" json:"timeSlotId"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// AssignmentDetail extends the assignment with display data and its slot.
type AssignmentDetail struct {
	Assignment
	TeacherName string    `db:"teacher_name" json:"teacherName"`
	SubjectName string    `db:"subject_name" json:"subjectName"`
	GroupName   string    `db:"group_name" json:"groupName"`
	Weekday     Weekday   `db:"weekday" json:"weekday"`
	StartTime   TimeOfDay `db:"start_time" json:"startTime"`
	EndTime     TimeOfDay `db:"end_time" json:"endTime"`
}

// AssignmentFilter narrows assignment listings.
type AssignmentFilter struct {
	TeacherID string
	GroupID   string
}

// CreateAssignmentRequest is the payload for scheduling a class.
type CreateAssignmentRequest struct {
	TeacherID  string `json:"teacherId" validate:"required,uuid"`
	SubjectID  string `json:"subjectId" validate:"required,uuid"`
	GroupID    string `json:"groupId" validate:"required,uuid"`
	TimeSlotID int    `json:"timeSlotId" validate:"required,min=1"`
}
