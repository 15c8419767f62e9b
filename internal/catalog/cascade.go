package catalog

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/quizmaster/quizmaster/internal/errors"
)

// EntityKind names a catalog entity that can be cascade-deleted.
type EntityKind string

const (
	KindSubject  EntityKind = "subject"
	KindChapter  EntityKind = "chapter"
	KindQuiz     EntityKind = "quiz"
	KindQuestion EntityKind = "question"
)

// Every kind deletes its dependents in the same fixed order: answers,
// attempts, scores, quiz-question association rows, then the entity tree
// itself. Keeping all call sites on one statement table guarantees the
// order is never accidentally varied.
var cascadeStmts = map[EntityKind][]string{
	KindQuestion: {
		`DELETE FROM answers WHERE question_id = $1;`,
		`DELETE FROM quiz_questions WHERE question_id = $1;`,
		`DELETE FROM questions WHERE question_id = $1;`,
	},

	KindQuiz: {
		`DELETE FROM answers WHERE attempt_id IN (SELECT attempt_id FROM attempts WHERE quiz_id = $1);`,
		`DELETE FROM attempts WHERE quiz_id = $1;`,
		`DELETE FROM scores WHERE quiz_id = $1;`,
		`DELETE FROM quiz_questions WHERE quiz_id = $1;`,
		`DELETE FROM quizzes WHERE quiz_id = $1;`,
	},

	KindChapter: {
		`DELETE FROM answers WHERE attempt_id IN (
			SELECT attempt_id FROM attempts WHERE quiz_id IN (SELECT quiz_id FROM quizzes WHERE chapter_id = $1));`,
		`DELETE FROM answers WHERE question_id IN (SELECT question_id FROM questions WHERE chapter_id = $1);`,
		`DELETE FROM attempts WHERE quiz_id IN (SELECT quiz_id FROM quizzes WHERE chapter_id = $1);`,
		`DELETE FROM scores WHERE quiz_id IN (SELECT quiz_id FROM quizzes WHERE chapter_id = $1);`,
		`DELETE FROM quiz_questions WHERE quiz_id IN (SELECT quiz_id FROM quizzes WHERE chapter_id = $1);`,
		`DELETE FROM quiz_questions WHERE question_id IN (SELECT question_id FROM questions WHERE chapter_id = $1);`,
		`DELETE FROM questions WHERE chapter_id = $1;`,
		`DELETE FROM quizzes WHERE chapter_id = $1;`,
		`DELETE FROM chapters WHERE chapter_id = $1;`,
	},

	KindSubject: {
		`DELETE FROM answers WHERE attempt_id IN (
			SELECT attempt_id FROM attempts WHERE quiz_id IN (
				SELECT quiz_id FROM quizzes WHERE chapter_id IN (SELECT chapter_id FROM chapters WHERE subject_id = $1)));`,
		`DELETE FROM answers WHERE question_id IN (
			SELECT question_id FROM questions WHERE chapter_id IN (SELECT chapter_id FROM chapters WHERE subject_id = $1));`,
		`DELETE FROM attempts WHERE quiz_id IN (
			SELECT quiz_id FROM quizzes WHERE chapter_id IN (SELECT chapter_id FROM chapters WHERE subject_id = $1));`,
		`DELETE FROM scores WHERE quiz_id IN (
			SELECT quiz_id FROM quizzes WHERE chapter_id IN (SELECT chapter_id FROM chapters WHERE subject_id = $1));`,
		`DELETE FROM quiz_questions WHERE quiz_id IN (
			SELECT quiz_id FROM quizzes WHERE chapter_id IN (SELECT chapter_id FROM chapters WHERE subject_id = $1));`,
		`DELETE FROM quiz_questions WHERE question_id IN (
			SELECT question_id FROM questions WHERE chapter_id IN (SELECT chapter_id FROM chapters WHERE subject_id = $1));`,
		`DELETE FROM questions WHERE chapter_id IN (SELECT chapter_id FROM chapters WHERE subject_id = $1);`,
		`DELETE FROM quizzes WHERE chapter_id IN (SELECT chapter_id FROM chapters WHERE subject_id = $1);`,
		`DELETE FROM chapters WHERE subject_id = $1;`,
		`DELETE FROM subjects WHERE subject_id = $1;`,
	},
}

// Delete removes a catalog entity and every attempt, answer, score and
// association row depending on it, in one transaction. The whole cascade
// commits or rolls back; a half-deleted dependency chain is never visible.
func (s *Service) Delete(ctx context.Context, kind EntityKind, id string) (err error) {
	stmts, ok := cascadeStmts[kind]
	if !ok {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unknown entity kind: %s", kind))
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	for _, stmt := range stmts[:len(stmts)-1] {
		if _, err = tx.Exec(ctx, stmt, id); err != nil {
			return fmt.Errorf("cascade %s %s: %w", kind, id, err)
		}
	}

	tag, err := tx.Exec(ctx, stmts[len(stmts)-1], id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("%s not found: %s", kind, id))
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}

	slog.InfoContext(ctx, "catalog: cascade delete completed", "kind", kind, "id", id)
	return nil
}
