package querydef

import (
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/aqlc/internal/queryir"
)

var (
	identPattern      = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	collectionPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_\-]{0,255}$`)
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		mustRegister(v, "aqlident", func(fl validator.FieldLevel) bool {
			return identPattern.MatchString(fl.Field().String())
		})
		mustRegister(v, "aqlcollection", func(fl validator.FieldLevel) bool {
			return collectionPattern.MatchString(fl.Field().String())
		})
		mustRegister(v, "aqltype", func(fl validator.FieldLevel) bool {
			_, ok := queryir.ParseType(fl.Field().String())
			return ok
		})
		validate = v
	})
	return validate
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("querydef: register %s: %v", tag, err))
	}
}

// Validate checks a loaded file. It returns one LoadError per failing
// field.
func Validate(f *File) []error {
	err := structValidator().Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []error{newError(ErrCodeGeneric, "validating definitions: %v", err)}
	}

	out := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, newError(codeForTag(fe.Tag()), "%s: %s", fe.Namespace(), describe(fe)))
	}
	return out
}

func codeForTag(tag string) string {
	if tag == "aqltype" {
		return ErrCodeInvalidType
	}
	return ErrCodeInvalidField
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("needs at least %s entries", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "unique":
		return fmt.Sprintf("%s values must be unique", fe.Param())
	case "aqlident":
		return fmt.Sprintf("%q is not a valid identifier", fe.Value())
	case "aqlcollection":
		return fmt.Sprintf("%q is not a valid collection name", fe.Value())
	case "aqltype":
		return fmt.Sprintf("unknown type %q", fe.Value())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
