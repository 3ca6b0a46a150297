package perfcounter

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotFound matches (with errors.Is) every *NotFoundError
var ErrNotFound = errors.New("performance counter not found")

// Kind is the path element that could not be found
type Kind int

// The path elements, in lookup order
const (
	KindCategory Kind = iota
	KindInstance
	KindCounter
)

func (k Kind) String() string {
	switch k {
	case KindCategory:
		return "category"
	case KindInstance:
		return "instance"
	case KindCounter:
		return "counter"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// NotFoundError is returned by Resolve when the category, instance or
// counter of a path does not exist on the source
type NotFoundError struct {
	Kind Kind
	Name string
}

func (e *NotFoundError) Error() string {
	name := e.Name
	if name == "" {
		name = `""`
	}
	return fmt.Sprintf("%s doesn't exist. Try running perfmon.exe to identify the correct %s %s.", name, name, e.Kind)
}

// Is makes errors.Is(err, ErrNotFound) true
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
