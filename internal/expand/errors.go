package expand

import (
	"fmt"

	"github.com/sirkon/sizeoverflow/internal/sir"
)

// InternalError is an IR shape the engine cannot instrument. Skipping the
// value would leave it unchecked, so the error stops the whole run.
type InternalError struct {
	Func string
	Stmt string
	Msg  string
}

func (e *InternalError) Error() string {
	if e.Stmt == "" {
		return fmt.Sprintf("internal error in %s: %s", e.Func, e.Msg)
	}
	return fmt.Sprintf("internal error in %s at %q: %s", e.Func, e.Stmt, e.Msg)
}

func internalErr(fn *sir.Func, s *sir.Stmt, format string, a ...any) error {
	e := &InternalError{
		Func: fn.Name,
		Msg:  fmt.Sprintf(format, a...),
	}
	if s != nil {
		e.Stmt = s.String()
	}
	return e
}
