package attempt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizmaster/quizmaster/internal/domain"
	"github.com/quizmaster/quizmaster/internal/errors"
)

func TestCheckEligibility(t *testing.T) {
	now := time.Now()

	type inputs struct {
		quiz    *domain.Quiz
		attempt *domain.Attempt
	}

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, err error)
	}{
		"no attempt on an active quiz should be eligible": {
			arrange: func() inputs {
				return inputs{
					quiz: &domain.Quiz{QuizID: "qz1", Active: true},
				}
			},

			assert: func(t *testing.T, err error) {
				require.NoError(t, err)
			},
		},

		"an in-progress attempt should be eligible to continue": {
			arrange: func() inputs {
				return inputs{
					quiz:    &domain.Quiz{QuizID: "qz1", Active: true},
					attempt: &domain.Attempt{AttemptID: "a1", QuizID: "qz1", StartedAt: now},
				}
			},

			assert: func(t *testing.T, err error) {
				require.NoError(t, err)
			},
		},

		"an inactive quiz should be rejected even with no attempt": {
			arrange: func() inputs {
				return inputs{
					quiz: &domain.Quiz{QuizID: "qz1", Active: false},
				}
			},

			assert: func(t *testing.T, err error) {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.CodeFailedPrecondition))
			},
		},

		"a submitted attempt should be terminal": {
			arrange: func() inputs {
				return inputs{
					quiz:    &domain.Quiz{QuizID: "qz1", Active: true},
					attempt: &domain.Attempt{AttemptID: "a1", QuizID: "qz1", StartedAt: now, SubmittedAt: &now},
				}
			},

			assert: func(t *testing.T, err error) {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.CodeFailedPrecondition))
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := tt.arrange()
			tt.assert(t, checkEligibility(in.quiz, in.attempt))
		})
	}
}

func TestGrade(t *testing.T) {
	assert.True(t, Grade("A", "A"))
	assert.False(t, Grade("C", "B"))
	// Labels are case-sensitive by contract.
	assert.False(t, Grade("a", "A"))
}

func TestPercentage(t *testing.T) {
	tests := map[string]struct {
		correct  int
		answered int
		want     float64
	}{
		"nothing answered is 0, not a division fault": {correct: 0, answered: 0, want: 0},
		"3 correct of 4 answered":                     {correct: 3, answered: 4, want: 75.0},
		"1 correct of 2 answered":                     {correct: 1, answered: 2, want: 50.0},
		"all correct":                                 {correct: 5, answered: 5, want: 100.0},
		"repeating decimal rounds to 2 places":        {correct: 1, answered: 3, want: 33.33},
		"rounding up":                                 {correct: 2, answered: 3, want: 66.67},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, Percentage(tt.correct, tt.answered))
		})
	}
}
