package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-attendance-api/internal/models"
	"github.com/noah-isme/school-attendance-api/pkg/database"
	appErrors "github.com/noah-isme/school-attendance-api/pkg/errors"
)

// NewValidator returns a validator with the attendance specific tags registered.
func NewValidator() *validator.Validate {
	validate := validator.New()
	_ = validate.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation("time_of_day", func(fl validator.FieldLevel) bool {
		_, err := models.ParseTimeOfDay(fl.Field().String())
		return err == nil
	})
	return validate
}

func invalidInput(err error, message string) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		parts := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		message = fmt.Sprintf("%s: %s", message, strings.Join(parts, ", "))
	}
	return appErrors.WrapAs(err, appErrors.ErrInvalidInput, message)
}

// storageError classifies a repository failure and logs the ones that are not
// the caller's fault.
func storageError(logger *zap.Logger, err error, message string) error {
	classified := database.Classify(err, message)
	var appErr *appErrors.Error
	if errors.As(classified, &appErr) && appErr.Status >= 500 {
		logger.Error(message, zap.String("code", appErr.Code), zap.Error(err))
	}
	return classified
}
