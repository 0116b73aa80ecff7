package core

import (
	"log/slog"

	"github.com/go-playground/validator/v10"

	"agentdesk/internal/types"
)

// Validator wraps go-playground/validator to translate struct validation
// failures into the platform's AppError taxonomy.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator and registers domain-specific rules.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New(validator.WithRequiredStructEnabled())

	// permission_key validates StaffPermissionKey values against the closed
	// enumeration, so a typo in a grant update is rejected up front.
	_ = v.RegisterValidation("permission_key", func(fl validator.FieldLevel) bool {
		return types.IsValidStaffPermissionKey(types.StaffPermissionKey(fl.Field().String()))
	})

	return &Validator{
		validate: v,
		logger:   logger,
	}
}

// ValidateStruct validates the given request struct and returns a
// *types.AppError describing the first failing field, or nil when the struct
// is valid.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrs) == 0 {
		return types.NewAppError(types.ErrCodeValidationInvalidField, "invalid request", err)
	}

	first := validationErrs[0]
	code := types.ErrCodeValidationInvalidField
	if first.Tag() == "required" {
		code = types.ErrCodeValidationMissingField
	}

	return types.NewAppErrorWithDetails(
		code,
		"request validation failed",
		err,
		map[string]any{
			"field": first.Field(),
			"rule":  first.Tag(),
		},
	)
}
