package attempt

import (
	"github.com/shopspring/decimal"

	"github.com/quizmaster/quizmaster/internal/domain"
	"github.com/quizmaster/quizmaster/internal/errors"
)

// checkEligibility is the state-machine gate in front of grading. It must
// pass before any submitted answer is accepted; it is the sole guard
// against scoring the same (learner, quiz) pair twice.
func checkEligibility(qz *domain.Quiz, a *domain.Attempt) error {
	if !qz.Active {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("quiz is inactive: %s", qz.QuizID))
	}

	if a.Submitted() {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("quiz already completed: %s", qz.QuizID))
	}

	// No attempt, or one still in progress: eligible.
	return nil
}

// Grade compares a selected option label to the question's correct option.
// Exact string match, case-sensitive single-character labels.
func Grade(selected, correct string) bool {
	return selected == correct
}

// Percentage is correct/answered*100 rounded to two decimal places,
// computed over answered questions only. Zero answered yields 0 rather
// than a division fault.
func Percentage(correct, answered int) float64 {
	if answered == 0 {
		return 0
	}

	return decimal.NewFromInt(int64(correct)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(answered)), 2).
		InexactFloat64()
}
