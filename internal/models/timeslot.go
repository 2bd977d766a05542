package models

// TimeSlot is one fixed period of the weekly timetable. Slots are seeded by
// migrations and never mutated at runtime.
type TimeSlot struct {
	ID        int       `db:"id" json:"id"`
	Weekday   Weekday   `db:"weekday" json:"weekday"`
	StartTime TimeOfDay `db:"start_time" json:"startTime"`
	EndTime   TimeOfDay `db:"end_time" json:"endTime"`
}

// SlotUsage lists the slot ids already taken by a group and by a teacher.
type SlotUsage struct {
	GroupSlots   []int
	TeacherSlots []int
}
