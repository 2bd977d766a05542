package models

import "time"

// FollowUp records that a prefect attended to a flagged student.
type FollowUp struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"studentId"`
	RecordedBy string    `db:"recorded_by" json:"recordedBy"`
	Notes      *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// FollowUpStatus tells whether a student has been attended to.
type FollowUpStatus struct {
	StudentID  string    `json:"studentId"`
	FollowedUp bool      `json:"followedUp"`
	Latest     *FollowUp `json:"latest,omitempty"`
}

// FollowedStudent aggregates the recent follow-ups of one student.
type FollowedStudent struct {
	StudentID      string    `db:"student_id" json:"studentId"`
	StudentName    string    `db:"student_name" json:"studentName"`
	GroupName      *string   `db:"group_name" json:"groupName,omitempty"`
	FollowUps      int       `db:"follow_ups" json:"followUps"`
	LastFollowUpAt time.Time `db:"last_follow_up_at" json:"lastFollowUpAt"`
	LastRecordedBy string    `db:"last_recorded_by" json:"lastRecordedBy"`
}

// CreateFollowUpRequest is the payload for recording a follow-up.
type CreateFollowUpRequest struct {
	StudentID string  `json:"studentId" validate:"required,uuid"`
	Notes     *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}
