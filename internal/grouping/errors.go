package grouping

import (
	"errors"
	"fmt"

	"github.com/noah-isme/sma-grouping-api/internal/models"
)

// PreconditionCode identifies a roster problem detected before any engine runs.
type PreconditionCode string

// Precondition codes.
const (
	CodeNoStudents        PreconditionCode = "NO_STUDENTS"
	CodeTooFewStudents    PreconditionCode = "TOO_FEW_STUDENTS"
	CodeTooManyStudents   PreconditionCode = "TOO_MANY_STUDENTS"
	CodePretestIncomplete PreconditionCode = "PRETEST_INCOMPLETE"
)

// ErrInvalidAIResponse is returned when the model output cannot be used.
var ErrInvalidAIResponse = errors.New("Invalid or empty response from AI")

// PreconditionError carries enough detail for a client to render an actionable message.
type PreconditionError struct {
	Code       PreconditionCode    `json:"code"`
	Message    string              `json:"message"`
	Count      int                 `json:"count"`
	Required   int                 `json:"required,omitempty"`
	Students   []models.StudentRef `json:"students,omitempty"`
	Suggestion string              `json:"suggestion,omitempty"`
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AsPrecondition unwraps err into a PreconditionError when possible.
func AsPrecondition(err error) (*PreconditionError, bool) {
	var pe *PreconditionError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// RequirePretests fails with PRETEST_INCOMPLETE listing every student without a pretest score.
func RequirePretests(roster []models.StudentPerformance) error {
	var missing []models.StudentRef
	for _, s := range roster {
		if s.Pretest == nil {
			missing = append(missing, s.Ref())
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &PreconditionError{
		Code:       CodePretestIncomplete,
		Message:    fmt.Sprintf("%d of %d students have no pretest score", len(missing), len(roster)),
		Count:      len(roster),
		Students:   missing,
		Suggestion: "record pretest scores for the listed students before grouping",
	}
}

func noStudents() error {
	return &PreconditionError{
		Code:    CodeNoStudents,
		Message: "No students enrolled",
	}
}
