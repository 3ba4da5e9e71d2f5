package manipulator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var ErrBadImage = errors.New("manipulator bad image provided")
var ErrTranscodeFailed = errors.New("manipulator could not transcode image")

type ValidationError struct {
	errors map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{errors: make(map[string]string)}
}

func (err *ValidationError) Add(k, v string) {
	err.errors[k] = v
}

func (err *ValidationError) Empty() bool {
	return len(err.errors) == 0
}

func (err *ValidationError) Error() string {
	keys := make([]string, 0, len(err.errors))
	for k := range err.errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return fmt.Sprintf("validation failed: %s", strings.Join(keys, ", "))
}

func (err *ValidationError) Errors() map[string]string {
	return err.errors
}
