package internal

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// walltimePattern accepts SS, MM:SS or HH:MM:SS where the leading field may exceed its usual range.
var walltimePattern = regexp.MustCompile(`^\d+(:\d{1,2}){0,2}$`)

func NewValidator() *validator.Validate {
	v := validator.New()
	err := v.RegisterValidation("regexp", validateRegex)
	if err != nil {
		panic(err)
	}
	err = v.RegisterValidation("walltime", validateWalltime)
	if err != nil {
		panic(err)
	}
	return v
}

func ValidateStruct(v *validator.Validate, s interface{}) error {
	err := v.Struct(s)
	if err != nil {
		return err
	}
	return nil
}

func validateRegex(fl validator.FieldLevel) bool {
	pattern := fl.Param()

	value := fl.Field().String()

	matched, err := regexp.MatchString(pattern, value)
	if err != nil {
		return false
	}
	return matched
}

func validateWalltime(fl validator.FieldLevel) bool {
	return walltimePattern.MatchString(fl.Field().String())
}
