package catalog

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var deleteTarget = regexp.MustCompile(`^\s*DELETE FROM (\w+)`)

// Dependents must always go before what they reference: answers before
// attempts and questions, attempts and scores before quizzes, association
// rows before either side, chapters before subjects.
var tableRank = map[string]int{
	"answers":        0,
	"attempts":       1,
	"scores":         2,
	"quiz_questions": 3,
	"questions":      4,
	"quizzes":        5,
	"chapters":       6,
	"subjects":       7,
}

func TestCascadeStatementOrder(t *testing.T) {
	for kind, stmts := range cascadeStmts {
		kind, stmts := kind, stmts
		t.Run(string(kind), func(t *testing.T) {
			require.NotEmpty(t, stmts)

			last := -1
			for _, stmt := range stmts {
				m := deleteTarget.FindStringSubmatch(stmt)
				require.NotNil(t, m, "every cascade statement is a DELETE: %s", stmt)

				rank, ok := tableRank[m[1]]
				require.True(t, ok, "unknown table %q in cascade for %s", m[1], kind)
				assert.GreaterOrEqual(t, rank, last,
					"cascade for %s deletes %s out of dependency order", kind, m[1])
				last = rank
			}
		})
	}
}

func TestCascadeEndsWithEntity(t *testing.T) {
	wantLast := map[EntityKind]string{
		KindSubject:  "subjects",
		KindChapter:  "chapters",
		KindQuiz:     "quizzes",
		KindQuestion: "questions",
	}

	for kind, table := range wantLast {
		stmts := cascadeStmts[kind]
		require.NotEmpty(t, stmts, "no cascade for %s", kind)

		m := deleteTarget.FindStringSubmatch(stmts[len(stmts)-1])
		require.NotNil(t, m)
		assert.Equal(t, table, m[1], "cascade for %s must delete the entity itself last", kind)
	}
}
