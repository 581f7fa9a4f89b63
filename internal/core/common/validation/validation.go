package validation

import (
	"fmt"
	"time"

	errors "github.com/frahmantamala/iam-copilot/internal"
)

const isoDateLayout = "2006-01-02"

type ValidatorFunc func(interface{}) *errors.AppError

type FieldValidator struct {
	FieldName  string
	Value      interface{}
	Validators []ValidatorFunc
}

type ValidationBuilder struct {
	fields []FieldValidator
}

func NewValidator() *ValidationBuilder {
	return &ValidationBuilder{
		fields: make([]FieldValidator, 0),
	}
}

func (v *ValidationBuilder) Field(name string, value interface{}) *FieldValidator {
	fv := FieldValidator{
		FieldName:  name,
		Value:      value,
		Validators: make([]ValidatorFunc, 0),
	}
	v.fields = append(v.fields, fv)
	return &v.fields[len(v.fields)-1]
}

func (fv *FieldValidator) Required() *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		switch v := value.(type) {
		case string:
			if v == "" {
				return errors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s is required", fv.FieldName), errors.ErrCodeValidationFailed)
			}
		case *string:
			if v == nil || *v == "" {
				return errors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s is required", fv.FieldName), errors.ErrCodeValidationFailed)
			}
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) MaxLength(max int) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if v, ok := value.(string); ok {
			if len(v) > max {
				message := fmt.Sprintf("%s must not exceed %d characters", fv.FieldName, max)
				return errors.NewValidationFieldError(fv.FieldName, message, errors.ErrCodeValidationFailed)
			}
		}
		return nil
	})
	return fv
}

// Unique records string values in seen and fails on the second occurrence.
// Empty strings are left to Required.
func (fv *FieldValidator) Unique(seen map[string]struct{}) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		v, ok := value.(string)
		if !ok || v == "" {
			return nil
		}
		if _, dup := seen[v]; dup {
			message := fmt.Sprintf("%s %q is duplicated", fv.FieldName, v)
			return errors.NewValidationFieldError(fv.FieldName, message, errors.ErrCodeSnapshotInvalid)
		}
		seen[v] = struct{}{}
		return nil
	})
	return fv
}

// ISODate accepts empty strings and values whose first ten characters are a YYYY-MM-DD date.
// Anything after the date (a time part, a zone) is not inspected.
func (fv *FieldValidator) ISODate() *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		v, ok := value.(string)
		if !ok || v == "" {
			return nil
		}
		if len(v) < len(isoDateLayout) {
			return errors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s must start with a YYYY-MM-DD date", fv.FieldName), errors.ErrCodeSnapshotInvalid)
		}
		if _, err := time.Parse(isoDateLayout, v[:len(isoDateLayout)]); err != nil {
			return errors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s must start with a YYYY-MM-DD date", fv.FieldName), errors.ErrCodeSnapshotInvalid)
		}
		return nil
	})
	return fv
}

func (v *ValidationBuilder) Validate() *errors.AppError {
	var validationErrors []errors.ValidationError

	for _, field := range v.fields {
		for _, validator := range field.Validators {
			if err := validator(field.Value); err != nil {
				if details, ok := err.Details.(errors.ValidationErrors); ok {
					validationErrors = append(validationErrors, details.Errors...)
				} else {
					validationErrors = append(validationErrors, errors.ValidationError{
						Field:   field.FieldName,
						Message: err.Message,
						Code:    string(err.Code),
					})
				}
			}
		}
	}

	if len(validationErrors) > 0 {
		return errors.NewValidationError("Validation failed", errors.ErrCodeValidationFailed).
			WithDetails(errors.ValidationErrors{Errors: validationErrors})
	}

	return nil
}

func ValidateQuestion(question string) *errors.AppError {
	validator := NewValidator()
	validator.Field("query", question).
		Required().
		MaxLength(4000)
	return validator.Validate()
}
