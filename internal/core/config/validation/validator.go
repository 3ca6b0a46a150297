package validation

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/signalfx/sqldtu-perfmon/internal/utils"
	validator "gopkg.in/go-playground/validator.v9"
)

// ValidateStruct uses the `validate` struct tags to do standard validation.
// Field names in the returned error are the YAML keys, not the Go names.
func ValidateStruct(confStruct interface{}) error {
	validate := validator.New()
	err := validate.Struct(confStruct)
	if err != nil {
		if ves, ok := err.(validator.ValidationErrors); ok {
			var msgs []string
			for _, e := range ves {
				fieldName := utils.YAMLNameOfFieldInStruct(e.StructField(), confStruct)
				if fieldName == "" {
					fieldName = e.Namespace()
				}
				msgs = append(msgs, fmt.Sprintf("Validation error in field '%s': %s", fieldName, e.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}
