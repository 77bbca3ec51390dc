package mission

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"growit/internal/curriculum"
)

var (
	// ErrEmptyInput rejects whitespace-only text submissions.
	ErrEmptyInput = errors.New("input is empty")
	// ErrLockedStep rejects navigation to a step that is not yet reachable.
	ErrLockedStep = errors.New("step is locked")
	// ErrWrongStepKind signals an interaction that does not match the
	// active step's variant.
	ErrWrongStepKind = errors.New("interaction does not match step kind")
)

type StepStatus string

const (
	StepLocked    StepStatus = "locked"
	StepActive    StepStatus = "active"
	StepCompleted StepStatus = "completed"
)

type QuizResult string

const (
	QuizNone      QuizResult = ""
	QuizCorrect   QuizResult = "correct"
	QuizIncorrect QuizResult = "incorrect"
)

// Summary is handed to the completion callback once per run.
type Summary struct {
	CurriculumID string
	Day          int
	Elapsed      time.Duration
	StudyMinutes int
}

// Run is the in-memory state of one mission attempt. It is destroyed and
// re-created whenever the mission screen is (re)entered; nothing here is
// persisted. All transitions are synchronous — cosmetic delays between steps
// belong to the caller, not the state machine.
type Run struct {
	curriculumID string
	mission      curriculum.Mission

	view      int
	frontier  int
	completed map[int]bool

	quizSelection int
	quizResult    QuizResult

	startedAt     time.Time
	now           func() time.Time
	onComplete    func(Summary)
	completeFired bool
}

type Option func(*Run)

// WithClock injects a time source, used by tests to pin elapsed time.
func WithClock(now func() time.Time) Option {
	return func(r *Run) { r.now = now }
}

// WithOnComplete registers the callback fired exactly once when every step
// is completed.
func WithOnComplete(fn func(Summary)) Option {
	return func(r *Run) { r.onComplete = fn }
}

// NewRun starts a fresh attempt at a mission.
func NewRun(curriculumID string, m curriculum.Mission, opts ...Option) *Run {
	r := &Run{
		curriculumID:  curriculumID,
		mission:       m,
		completed:     map[int]bool{},
		quizSelection: -1,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.startedAt = r.now()
	return r
}

func (r *Run) Mission() curriculum.Mission { return r.mission }

// View is the step index currently displayed. It equals the frontier unless
// the user navigated back to review a completed step.
func (r *Run) View() int { return r.view }

// Frontier is the first step index not yet completed.
func (r *Run) Frontier() int { return r.frontier }

func (r *Run) TotalSteps() int     { return len(r.mission.Steps) }
func (r *Run) CompletedCount() int { return len(r.completed) }

// Done reports whether every step has been completed.
func (r *Run) Done() bool { return len(r.completed) == len(r.mission.Steps) }

// CompletedSteps returns the completed step indexes in ascending order.
func (r *Run) CompletedSteps() []int {
	out := make([]int, 0, len(r.completed))
	for i := range r.completed {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// ViewStep returns the step currently displayed.
func (r *Run) ViewStep() curriculum.Step {
	return r.mission.Steps[r.view]
}

// StepStatus classifies a step for rendering: the viewed step is active,
// completed steps are revisitable, everything past the view that has not
// been completed is locked.
func (r *Run) StepStatus(i int) StepStatus {
	switch {
	case i == r.view:
		return StepActive
	case r.completed[i]:
		return StepCompleted
	default:
		return StepLocked
	}
}

// QuizFeedback returns the transient quiz selection and result for the
// viewed step, or (-1, QuizNone) when nothing is pending.
func (r *Run) QuizFeedback() (int, QuizResult) {
	return r.quizSelection, r.quizResult
}

// GoTo navigates to a step for review. Only the frontier and already
// completed steps are reachable; the completed set is never mutated.
func (r *Run) GoTo(i int) error {
	if i < 0 || i >= len(r.mission.Steps) {
		return fmt.Errorf("step %d out of range", i)
	}
	if i > r.frontier && !r.completed[i] {
		return ErrLockedStep
	}
	r.view = i
	r.clearQuizState()
	return nil
}

// CompleteAction marks the viewed Action step done. Completing an already
// completed step (review mode, or a double submit on the last step) is a
// no-op and never re-fires the completion callback.
func (r *Run) CompleteAction() error {
	step := r.ViewStep()
	if step.Kind != curriculum.StepAction {
		return ErrWrongStepKind
	}
	if step.TextInput() {
		return ErrWrongStepKind
	}
	r.completeViewed()
	return nil
}

// SubmitText completes a free-text Action step. Empty or whitespace-only
// submissions never advance the step.
func (r *Run) SubmitText(text string) error {
	step := r.ViewStep()
	if step.Kind != curriculum.StepAction || !step.TextInput() {
		return ErrWrongStepKind
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}
	r.completeViewed()
	return nil
}

// AnswerQuiz records a selection on the viewed Quiz step. The correct
// option completes the step through the same path as an action; a wrong
// option leaves transient incorrect feedback that ClearQuizFeedback resets,
// with no record that the attempt happened.
func (r *Run) AnswerQuiz(option int) (QuizResult, error) {
	step := r.ViewStep()
	if step.Kind != curriculum.StepQuiz {
		return QuizNone, ErrWrongStepKind
	}
	if option < 0 || option >= len(step.Options) {
		return QuizNone, fmt.Errorf("option %d out of range", option)
	}
	if r.quizResult != QuizNone {
		// Feedback still showing; ignore until cleared.
		return r.quizResult, nil
	}
	r.quizSelection = option
	if option == step.Correct {
		r.quizResult = QuizCorrect
		r.completeViewed()
		return QuizCorrect, nil
	}
	r.quizResult = QuizIncorrect
	return QuizIncorrect, nil
}

// ClearQuizFeedback resets a pending incorrect selection, returning the
// quiz to a selectable state. Repeated wrong guesses are indistinguishable
// from a first guess.
func (r *Run) ClearQuizFeedback() {
	if r.quizResult == QuizIncorrect {
		r.clearQuizState()
	}
}

// Elapsed is the wall-clock time since the run started.
func (r *Run) Elapsed() time.Duration {
	return r.now().Sub(r.startedAt)
}

// StudyMinutes reports elapsed time as whole minutes, rounded up, with a
// floor of one minute.
func (r *Run) StudyMinutes() int {
	ms := r.Elapsed().Milliseconds()
	minutes := int((ms + 59999) / 60000)
	if minutes < 1 {
		return 1
	}
	return minutes
}

func (r *Run) completeViewed() {
	if r.completed[r.view] {
		return
	}
	if r.view != r.frontier {
		// Reviewed steps are read only; only the frontier advances.
		return
	}
	r.completed[r.view] = true
	r.clearQuizState()
	if r.Done() {
		r.fireComplete()
		return
	}
	r.frontier++
	r.view = r.frontier
}

func (r *Run) fireComplete() {
	if r.completeFired {
		return
	}
	r.completeFired = true
	if r.onComplete != nil {
		r.onComplete(Summary{
			CurriculumID: r.curriculumID,
			Day:          r.mission.Day,
			Elapsed:      r.Elapsed(),
			StudyMinutes: r.StudyMinutes(),
		})
	}
}

func (r *Run) clearQuizState() {
	r.quizSelection = -1
	r.quizResult = QuizNone
}
