package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusLate    AttendanceStatus = "late"
	AttendanceStatusExcused AttendanceStatus = "excused"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// AttendanceRecord is a single admitted check-in. DedupSlot is the start of
// the class period the check-in falls into; together with student and class
// it forms the identity a duplicate is detected against.
type AttendanceRecord struct {
	ID           string           `db:"id" json:"id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	ClassID      string           `db:"class_id" json:"class_id"`
	CheckInTime  time.Time        `db:"check_in_time" json:"check_in_time"`
	CheckOutTime *time.Time       `db:"check_out_time" json:"check_out_time,omitempty"`
	DedupSlot    time.Time        `db:"dedup_slot" json:"-"`
	Status       AttendanceStatus `db:"status" json:"status"`
	Location     *string          `db:"location" json:"location,omitempty"`
	DeviceTag    *string          `db:"device_tag" json:"device_tag,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceFilter scopes history and class listing queries.
type AttendanceFilter struct {
	StudentID string
	ClassID   string
	DateFrom  *time.Time
	DateTo    *time.Time
	Limit     int
}

// ClassAttendanceSummary aggregates a class listing by status.
type ClassAttendanceSummary struct {
	Present int `json:"present"`
	Late    int `json:"late"`
	Absent  int `json:"absent"`
	Excused int `json:"excused"`
	Total   int `json:"total"`
}
