package utils

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/satprep/session-service/internal/models"
)

// Validator wraps the struct validator with the service's custom tags
// registered.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	validate := validator.New()
	RegisterCustomValidators(validate)
	return &Validator{validate: validate}
}

// Validate checks struct tags and returns the raw validator error for the
// errors package to translate.
func (v *Validator) Validate(s interface{}) error {
	return v.validate.Struct(s)
}

// Custom validation functions

func ValidateSessionKind(fl validator.FieldLevel) bool {
	validKinds := []models.SessionKind{
		models.KindDiagnostic,
		models.KindPractice,
		models.KindExam,
	}

	value := fl.Field().String()
	for _, validKind := range validKinds {
		if string(validKind) == value {
			return true
		}
	}
	return false
}

func ValidateModuleType(fl validator.FieldLevel) bool {
	validTypes := []models.ModuleType{
		models.RWModule1,
		models.RWModule2,
		models.MathModule1,
		models.MathModule2,
	}

	value := fl.Field().String()
	for _, validType := range validTypes {
		if string(validType) == value {
			return true
		}
	}
	return false
}

func ValidateQuestionType(fl validator.FieldLevel) bool {
	validTypes := []models.QuestionType{
		models.MultipleChoice,
		models.FreeResponse,
	}

	value := fl.Field().String()
	for _, validType := range validTypes {
		if string(validType) == value {
			return true
		}
	}
	return false
}

func ValidateDifficultyLevel(fl validator.FieldLevel) bool {
	validLevels := []models.DifficultyLevel{
		models.DifficultyEasy,
		models.DifficultyMedium,
		models.DifficultyHard,
	}

	value := fl.Field().String()
	for _, validLevel := range validLevels {
		if string(validLevel) == value {
			return true
		}
	}
	return false
}

func ValidateSection(fl validator.FieldLevel) bool {
	validSections := []models.Section{
		models.SectionMath,
		models.SectionReadingWriting,
	}

	value := fl.Field().String()
	for _, validSection := range validSections {
		if string(validSection) == value {
			return true
		}
	}
	return false
}

// RegisterCustomValidators registers all custom validators
func RegisterCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("session_kind", ValidateSessionKind)
	validate.RegisterValidation("module_type", ValidateModuleType)
	validate.RegisterValidation("question_type", ValidateQuestionType)
	validate.RegisterValidation("difficulty_level", ValidateDifficultyLevel)
	validate.RegisterValidation("section", ValidateSection)

	// Register custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}
