// Package validation checks user-supplied input using the validator/v10 library.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidFolderName is returned for a folder name that cannot be used as
// a path segment.
var ErrInvalidFolderName = errors.New("invalid folder name")

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator configured for our domain.
func New() *Validator {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// Registration only fails for an empty tag or a nil func.
	_ = v.RegisterValidation("foldername", validFolderName)

	return &Validator{v: v}
}

// validFolderName accepts a single path segment free of the record separator.
func validFolderName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\|`) {
		return false
	}
	return !strings.ContainsFunc(name, unicode.IsControl)
}

// FolderRequest is the input for creating or renaming a folder.
type FolderRequest struct {
	Name string `json:"name" validate:"required,max=100,foldername"`
}

// FolderName validates name after trimming surrounding blanks and returns
// the trimmed name.
func (v *Validator) FolderName(name string) (string, error) {
	req := FolderRequest{Name: strings.TrimSpace(name)}
	if err := v.Validate(req); err != nil {
		return "", fmt.Errorf("%w %q: %w", ErrInvalidFolderName, name, err)
	}
	return req.Name, nil
}

// Validate validates a struct.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// formatError flattens validator errors into one readable error.
func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	msgs := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		msgs = append(msgs, e.Field()+" "+v.friendlyMessage(e))
	}
	sort.Strings(msgs)
	return errors.New(strings.Join(msgs, "; "))
}

func (v *Validator) friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "oneof":
		return "must be one of: " + e.Param()
	case "foldername":
		return `must be a single path segment without "/", "\" or "|"`
	default:
		return "is invalid"
	}
}
