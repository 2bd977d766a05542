package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"

	"github.com/lib/pq"

	appErrors "github.com/noah-isme/school-attendance-api/pkg/errors"
)

// Constraint names declared by the schema migrations.
const (
	ConstraintAssignmentGroupSlot   = "assignments_group_slot_key"
	ConstraintAssignmentTeacherSlot = "assignments_teacher_slot_key"
	ConstraintAssignmentExact       = "assignments_exact_key"
	ConstraintAttendanceKey         = "attendance_records_key"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNotNullViolation    = "23502"
	codeInvalidText         = "22P02"
	codeInvalidDatetime     = "22007"
	codeDatetimeOverflow    = "22008"
	codeTooManyConnections  = "53300"
	codeAdminShutdown       = "57P01"
	codeCrashShutdown       = "57P02"
	codeCannotConnectNow    = "57P03"
)

// Classify translates a storage failure into an application error. message
// is used when the failure has no more specific meaning.
func Classify(err error, message string) error {
	if err == nil {
		return nil
	}

	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.WrapAs(err, appErrors.ErrNotFound, "")
	}
	if IsUnavailable(err) {
		return appErrors.WrapAs(err, appErrors.ErrStorageUnavailable, "")
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case codeUniqueViolation:
			switch pqErr.Constraint {
			case ConstraintAssignmentGroupSlot:
				return appErrors.WrapAs(err, appErrors.ErrSlotConflict, "group already has a class in this time slot")
			case ConstraintAssignmentTeacherSlot:
				return appErrors.WrapAs(err, appErrors.ErrSlotConflict, "teacher already has a class in this time slot")
			case ConstraintAssignmentExact:
				return appErrors.WrapAs(err, appErrors.ErrDuplicateAssignment, "")
			}
			return appErrors.WrapAs(err, appErrors.ErrConflict, "")
		case codeForeignKeyViolation:
			return appErrors.WrapAs(err, appErrors.ErrNotFound, "referenced record does not exist")
		case codeInvalidText, codeInvalidDatetime, codeDatetimeOverflow, codeCheckViolation, codeNotNullViolation:
			return appErrors.WrapAs(err, appErrors.ErrInvalidInput, "")
		}
	}

	return appErrors.WrapAs(err, appErrors.ErrInternal, message)
}

// IsUnavailable reports whether err means the store could not be reached.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code.Class() == "08" {
			return true
		}
		switch string(pqErr.Code) {
		case codeTooManyConnections, codeAdminShutdown, codeCrashShutdown, codeCannotConnectNow:
			return true
		}
	}
	return false
}

// IsForeignKeyViolation reports whether err is a foreign key failure, which on
// deletes means dependent rows still exist.
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == codeForeignKeyViolation
}
