package attempt

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizmaster/quizmaster/internal/catalog"
	"github.com/quizmaster/quizmaster/internal/domain"
	"github.com/quizmaster/quizmaster/internal/errors"
	"github.com/quizmaster/quizmaster/internal/event"
	"github.com/quizmaster/quizmaster/internal/telemetry"
)

const codeUniqueViolation = "23505"

type Config struct {
	DB       *pgxpool.Pool
	EventBus *event.Bus
	Catalog  *catalog.Service
}

// Service is the attempt engine: it gates eligibility, grades submissions
// exactly once per (learner, quiz) pair and appends the result to the score
// ledger. The catalog is a read-only collaborator.
type Service struct {
	db      *pgxpool.Pool
	eb      *event.Bus
	catalog *catalog.Service
}

func NewService(c Config) *Service {
	return &Service{
		db:      c.DB,
		eb:      c.EventBus,
		catalog: c.Catalog,
	}
}

type BeginAttemptRequest struct {
	UserID string
	QuizID string
}

type BeginAttemptResponse struct {
	Quiz *domain.Quiz
	// Attempt is nil when the learner has not started yet; otherwise the
	// in-progress attempt being resumed.
	Attempt   *domain.Attempt
	Questions []domain.Question
}

// BeginOrResume runs the eligibility gate: the quiz must exist and be
// active, and the learner must not have a submitted attempt for it. An
// in-progress attempt is resumed, never duplicated.
func (s *Service) BeginOrResume(ctx context.Context, req BeginAttemptRequest) (*BeginAttemptResponse, error) {
	qz, err := s.catalog.GetQuiz(ctx, req.QuizID)
	if err != nil {
		return nil, err
	}

	a, err := s.getAttempt(ctx, s.db, req.UserID, req.QuizID, false)
	if err != nil {
		return nil, err
	}

	if err := checkEligibility(qz, a); err != nil {
		return nil, err
	}

	questions, err := s.catalog.QuizQuestions(ctx, req.QuizID)
	if err != nil {
		return nil, err
	}
	for i := range questions {
		questions[i].CorrectOption = "" // never shipped to learners
	}

	return &BeginAttemptResponse{Quiz: qz, Attempt: a, Questions: questions}, nil
}

type SubmitRequest struct {
	UserID string
	QuizID string
	// Answers maps question ID to the selected option label. Keys that do
	// not parse as question IDs are tolerated and skipped.
	Answers map[string]string
}

type GradedResult struct {
	AttemptID  string
	TotalScore int
	GradedAt   time.Time
}

// Submit grades a learner's answers for a quiz. The attempt row, every
// answer, the ledger row and the terminal submitted_at stamp are written in
// one transaction: a half-graded attempt is never observable. Losing the
// insert race for the (user, quiz) attempt surfaces as a retryable conflict.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (_ *GradedResult, err error) {
	qz, err := s.catalog.GetQuiz(ctx, req.QuizID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	a, err := s.getAttempt(ctx, tx, req.UserID, req.QuizID, true)
	if err != nil {
		return nil, err
	}
	if err := checkEligibility(qz, a); err != nil {
		return nil, err
	}
	if a == nil {
		if a, err = s.insertAttempt(ctx, tx, req.UserID, req.QuizID, now); err != nil {
			return nil, err
		}
	}

	score, err := s.gradeAnswers(ctx, tx, a, req.Answers)
	if err != nil {
		return nil, err
	}

	sc, err := s.insertScore(ctx, tx, a, score, now)
	if err != nil {
		return nil, err
	}

	const stampStmt = `UPDATE attempts SET submitted_at = $2 WHERE attempt_id = $1;`
	if _, err = tx.Exec(ctx, stampStmt, a.AttemptID, now); err != nil {
		return nil, fmt.Errorf("stamp submission: %w", err)
	}
	a.SubmittedAt = &now

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}

	telemetry.AttemptsSubmitted.Inc()

	s.eb.Publish(ctx, domain.EventAttemptSubmitted{Attempt: *a})
	s.eb.Publish(ctx, domain.EventScoreRecorded{Score: *sc})

	return &GradedResult{
		AttemptID:  a.AttemptID,
		TotalScore: score,
		GradedAt:   now,
	}, nil
}

// gradeAnswers writes one answer row per resolvable submitted entry and
// returns the count of correct ones. Keys that are not question IDs, and
// IDs with no matching question, are skipped rather than rejected: extra
// form fields are tolerated. The skip is logged so malformed clients stay
// visible. Any existing question is graded; membership in the quiz's
// question set is not checked.
func (s *Service) gradeAnswers(ctx context.Context, tx pgx.Tx, a *domain.Attempt, answers map[string]string) (int, error) {
	const (
		qStmt = `SELECT correct_option FROM questions WHERE question_id = $1;`
		aStmt = `INSERT INTO answers (answer_id, attempt_id, question_id, selected_option, is_correct)
VALUES ($1, $2, $3, $4, $5);`
	)

	score := 0
	for key, selected := range answers {
		if _, err := uuid.Parse(key); err != nil {
			slog.WarnContext(ctx, "attempt: skipping non-question submission key",
				"attempt_id", a.AttemptID, "key", key)
			continue
		}

		var correct string
		err := tx.QueryRow(ctx, qStmt, key).Scan(&correct)
		if stderrors.Is(err, pgx.ErrNoRows) {
			slog.WarnContext(ctx, "attempt: skipping answer for unknown question",
				"attempt_id", a.AttemptID, "question_id", key)
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("resolve question %s: %w", key, err)
		}

		id, err := uuid.NewV7()
		if err != nil {
			return 0, fmt.Errorf("generate answer ID: %w", err)
		}

		isCorrect := Grade(selected, correct)
		if _, err := tx.Exec(ctx, aStmt, id.String(), a.AttemptID, key, selected, isCorrect); err != nil {
			return 0, fmt.Errorf("insert answer: %w", err)
		}

		if isCorrect {
			score++
		}
	}

	return score, nil
}

func (s *Service) insertAttempt(ctx context.Context, tx pgx.Tx, userID, quizID string, now time.Time) (*domain.Attempt, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate attempt ID: %w", err)
	}

	a := &domain.Attempt{
		AttemptID: id.String(),
		UserID:    userID,
		QuizID:    quizID,
		StartedAt: now,
	}

	const stmt = `INSERT INTO attempts (attempt_id, user_id, quiz_id, started_at) VALUES ($1, $2, $3, $4);`
	_, err = tx.Exec(ctx, stmt, a.AttemptID, a.UserID, a.QuizID, a.StartedAt)

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		// A concurrent submission for the same (user, quiz) won the race.
		return nil, errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("a concurrent attempt exists for this quiz, retry"),
			errors.WithCause(err))
	}
	if err != nil {
		return nil, fmt.Errorf("insert attempt: %w", err)
	}

	return a, nil
}

func (s *Service) insertScore(ctx context.Context, tx pgx.Tx, a *domain.Attempt, total int, now time.Time) (*domain.Score, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate score ID: %w", err)
	}

	sc := &domain.Score{
		ScoreID:     id.String(),
		QuizID:      a.QuizID,
		UserID:      a.UserID,
		TotalScore:  total,
		AttemptedAt: now,
	}

	const stmt = `INSERT INTO scores (score_id, quiz_id, user_id, total_score, attempted_at) VALUES ($1, $2, $3, $4, $5);`
	if _, err := tx.Exec(ctx, stmt, sc.ScoreID, sc.QuizID, sc.UserID, sc.TotalScore, sc.AttemptedAt); err != nil {
		return nil, fmt.Errorf("insert score: %w", err)
	}

	return sc, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// getAttempt returns the attempt for (user, quiz), or nil if none exists.
// With forUpdate the row is locked for the rest of the transaction so the
// eligibility check and the grading writes act as one serializable unit.
func (s *Service) getAttempt(ctx context.Context, q querier, userID, quizID string, forUpdate bool) (*domain.Attempt, error) {
	stmt := `SELECT attempt_id, user_id, quiz_id, started_at, submitted_at FROM attempts WHERE user_id = $1 AND quiz_id = $2`
	if forUpdate {
		stmt += ` FOR UPDATE`
	}

	var a domain.Attempt
	err := q.QueryRow(ctx, stmt+`;`, userID, quizID).Scan(
		&a.AttemptID, &a.UserID, &a.QuizID, &a.StartedAt, &a.SubmittedAt)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select attempt: %w", err)
	}

	return &a, nil
}

type GetResultRequest struct {
	AttemptID   string
	RequesterID string
}

// GetResult loads the graded result of a submitted attempt. Requests by
// anyone but the owning learner are rejected outright.
func (s *Service) GetResult(ctx context.Context, req GetResultRequest) (*domain.Result, error) {
	const stmt = `SELECT attempt_id, user_id, quiz_id, started_at, submitted_at FROM attempts WHERE attempt_id = $1;`

	var a domain.Attempt
	err := s.db.QueryRow(ctx, stmt, req.AttemptID).Scan(
		&a.AttemptID, &a.UserID, &a.QuizID, &a.StartedAt, &a.SubmittedAt)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("attempt not found: %s", req.AttemptID))
	}
	if err != nil {
		return nil, fmt.Errorf("select attempt: %w", err)
	}

	if a.UserID != req.RequesterID {
		return nil, errors.New(errors.CodePermissionDenied,
			errors.WithMessagef("attempt belongs to another learner"))
	}
	if !a.Submitted() {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("attempt is not submitted yet"))
	}

	const ansStmt = `
SELECT answer_id, attempt_id, question_id, selected_option, is_correct
FROM answers WHERE attempt_id = $1;`

	rows, err := s.db.Query(ctx, ansStmt, req.AttemptID)
	if err != nil {
		return nil, fmt.Errorf("select answers: %w", err)
	}

	answers, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Answer, error) {
		var ans domain.Answer
		err := r.Scan(&ans.AnswerID, &ans.AttemptID, &ans.QuestionID, &ans.SelectedOption, &ans.Correct)
		return ans, err
	})
	if err != nil {
		return nil, err
	}

	correct := 0
	for _, ans := range answers {
		if ans.Correct {
			correct++
		}
	}

	return &domain.Result{
		AttemptID:     a.AttemptID,
		QuizID:        a.QuizID,
		UserID:        a.UserID,
		SubmittedAt:   *a.SubmittedAt,
		Answers:       answers,
		CorrectCount:  correct,
		AnsweredCount: len(answers),
		Percentage:    Percentage(correct, len(answers)),
	}, nil
}

// CountAttempts reports how many attempts exist for a quiz, or overall when
// quizID is empty.
func (s *Service) CountAttempts(ctx context.Context, quizID string) (int, error) {
	stmt, args := countAttemptsQuery(quizID)

	var n int
	if err := s.db.QueryRow(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}

	return n, nil
}

// countAttemptsQuery picks the statement for CountAttempts. The quiz_id
// column is uuid-typed, so an empty quizID must select the unfiltered
// statement instead of being bound as a parameter.
func countAttemptsQuery(quizID string) (string, []any) {
	if quizID == "" {
		return `SELECT COUNT(*) FROM attempts;`, nil
	}

	return `SELECT COUNT(*) FROM attempts WHERE quiz_id = $1;`, []any{quizID}
}
