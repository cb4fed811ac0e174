package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"tourbook/pkg/logger"
	"tourbook/pkg/model"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Details renders the errors for an AppError details map.
func (v ValidationErrors) Details() map[string]any {
	fields := make(map[string]any, len(v))
	for _, err := range v {
		fields[err.Field] = err.Message
	}
	return map[string]any{"fields": fields}
}

type CustomizedTourValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewCustomizedTourValidator(log *logger.Logger) *CustomizedTourValidator {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)

	if err := v.RegisterValidation("group_size_band", validateGroupSizeBand); err != nil {
		log.Fatal("Failed to register 'group_size_band' validator", "error", err)
	}

	return &CustomizedTourValidator{
		validate: v,
		logger:   log,
	}
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func validateGroupSizeBand(fl validator.FieldLevel) bool {
	return model.GroupSize(fl.Field().String()).Valid()
}

// ValidateRequest checks the input shape and the date rules. today is the
// caller's current calendar day.
func (v *CustomizedTourValidator) ValidateRequest(in *model.CustomizedTourInput, today time.Time) error {
	if err := v.validateStruct(in); err != nil {
		return err
	}

	start, _ := model.ParseDay(in.StartDate)
	end, _ := model.ParseDay(in.EndDate)

	var errs ValidationErrors
	if end.Before(start) {
		errs = append(errs, ValidationError{Field: "end_date", Message: "end_date must be on or after start_date"})
	}
	if start.Before(today) {
		errs = append(errs, ValidationError{Field: "start_date", Message: "start_date cannot be in the past"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *CustomizedTourValidator) ValidateBid(in *model.BidInput) error {
	return v.validateStruct(in)
}

func (v *CustomizedTourValidator) ValidateDecision(in *model.DecisionInput) error {
	return v.validateStruct(in)
}

func (v *CustomizedTourValidator) validateStruct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *CustomizedTourValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must have at least %s characters or items", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must have at most %s characters or items", err.Field(), err.Param())
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
		case "lte":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "datetime":
			message = fmt.Sprintf("%s must be a date in YYYY-MM-DD format", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "group_size_band":
			message = fmt.Sprintf("%s must be one of: %q, %q, %q", err.Field(),
				model.GroupSizeSmall, model.GroupSizeMedium, model.GroupSizeLarge)
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Namespace()[strings.Index(err.Namespace(), ".")+1:],
			Message: message,
		})
	}

	return validationErrors
}
