package dto

import "github.com/noah-isme/school-attendance-api/internal/models"

// BatchAttendanceRequest submits several marks at once. AssignmentID and Date
// act as defaults for entries that omit them, which covers the class check-in
// shape where one teacher marks a whole group.
type BatchAttendanceRequest struct {
	AssignmentID string                           `json:"assignmentId,omitempty"`
	Date         string                           `json:"date,omitempty"`
	Entries      []models.RecordAttendanceRequest `json:"entries"`
}

// BatchEntryResult reports the outcome of one batch entry.
type BatchEntryResult struct {
	Index   int                      `json:"index"`
	Record  *models.AttendanceRecord `json:"record,omitempty"`
	Created bool                     `json:"created"`
	Error   *EntryError              `json:"error,omitempty"`
}

// EntryError is the error of a failed batch entry.
type EntryError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// BatchAttendanceResult summarises a batch submission.
type BatchAttendanceResult struct {
	Processed int                `json:"processed"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Results   []BatchEntryResult `json:"results"`
}

// RecordAttendanceResponse is the result of a single mark.
type RecordAttendanceResponse struct {
	Record  *models.AttendanceRecord `json:"record"`
	Created bool                     `json:"created"`
}
