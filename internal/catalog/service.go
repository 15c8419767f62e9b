package catalog

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizmaster/quizmaster/internal/domain"
	"github.com/quizmaster/quizmaster/internal/errors"
)

const codeUniqueViolation = "23505"

type Config struct {
	DB *pgxpool.Pool
}

// Service owns the authored hierarchy Subject -> Chapter -> Question plus
// Quiz groupings. The attempt engine only reads from it.
type Service struct {
	db *pgxpool.Pool
}

func NewService(c Config) *Service {
	return &Service{db: c.DB}
}

type CreateSubjectRequest struct {
	Name string
}

func (s *Service) CreateSubject(ctx context.Context, req CreateSubjectRequest) (*domain.Subject, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate subject ID: %w", err)
	}

	sub := &domain.Subject{SubjectID: id.String(), Name: req.Name}

	const stmt = `INSERT INTO subjects (subject_id, name) VALUES ($1, $2);`
	_, err = s.db.Exec(ctx, stmt, sub.SubjectID, sub.Name)

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return nil, errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("subject %q already exists", req.Name),
			errors.WithCause(err))
	}
	if err != nil {
		return nil, fmt.Errorf("insert subject: %w", err)
	}

	return sub, nil
}

type UpdateSubjectRequest struct {
	SubjectID string
	Name      string
}

func (s *Service) UpdateSubject(ctx context.Context, req UpdateSubjectRequest) error {
	const stmt = `UPDATE subjects SET name = $2 WHERE subject_id = $1;`

	tag, err := s.db.Exec(ctx, stmt, req.SubjectID, req.Name)
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("subject %q already exists", req.Name),
			errors.WithCause(err))
	}
	if err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("subject not found: %s", req.SubjectID))
	}

	return nil
}

func (s *Service) ListSubjects(ctx context.Context) ([]domain.Subject, error) {
	const stmt = `SELECT subject_id, name FROM subjects ORDER BY name;`

	rows, err := s.db.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Subject, error) {
		var sub domain.Subject
		err := r.Scan(&sub.SubjectID, &sub.Name)
		return sub, err
	})
}

type CreateChapterRequest struct {
	SubjectID string
	Name      string
}

// CreateChapter appends a chapter to a subject, numbering it one past the
// subject's current highest chapter number.
func (s *Service) CreateChapter(ctx context.Context, req CreateChapterRequest) (*domain.Chapter, error) {
	if err := s.requireExists(ctx, `SELECT 1 FROM subjects WHERE subject_id = $1`, req.SubjectID, "subject"); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate chapter ID: %w", err)
	}

	const stmt = `
INSERT INTO chapters (chapter_id, subject_id, name, number)
VALUES ($1, $2, $3, (SELECT COALESCE(MAX(number), 0) + 1 FROM chapters WHERE subject_id = $2))
RETURNING number;`

	ch := &domain.Chapter{ChapterID: id.String(), SubjectID: req.SubjectID, Name: req.Name}
	if err := s.db.QueryRow(ctx, stmt, ch.ChapterID, ch.SubjectID, ch.Name).Scan(&ch.Number); err != nil {
		return nil, fmt.Errorf("insert chapter: %w", err)
	}

	return ch, nil
}

type UpdateChapterRequest struct {
	ChapterID string
	Name      string
	Number    int
}

func (s *Service) UpdateChapter(ctx context.Context, req UpdateChapterRequest) error {
	const stmt = `UPDATE chapters SET name = $2, number = $3 WHERE chapter_id = $1;`

	tag, err := s.db.Exec(ctx, stmt, req.ChapterID, req.Name, req.Number)
	if err != nil {
		return fmt.Errorf("update chapter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("chapter not found: %s", req.ChapterID))
	}

	return nil
}

func (s *Service) ListChapters(ctx context.Context, subjectID string) ([]domain.Chapter, error) {
	const stmt = `
SELECT chapter_id, subject_id, name, number
FROM chapters WHERE subject_id = $1 ORDER BY number;`

	rows, err := s.db.Query(ctx, stmt, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Chapter, error) {
		var ch domain.Chapter
		err := r.Scan(&ch.ChapterID, &ch.SubjectID, &ch.Name, &ch.Number)
		return ch, err
	})
}

type CreateQuestionRequest struct {
	ChapterID     string
	QuestionText  string
	OptionA       string
	OptionB       string
	OptionC       string
	OptionD       string
	CorrectOption string
}

func (s *Service) CreateQuestion(ctx context.Context, req CreateQuestionRequest) (*domain.Question, error) {
	if !domain.ValidOption(req.CorrectOption) {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("correct option must be one of A, B, C, D"))
	}

	if err := s.requireExists(ctx, `SELECT 1 FROM chapters WHERE chapter_id = $1`, req.ChapterID, "chapter"); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate question ID: %w", err)
	}

	q := &domain.Question{
		QuestionID:    id.String(),
		ChapterID:     req.ChapterID,
		QuestionText:  req.QuestionText,
		OptionA:       req.OptionA,
		OptionB:       req.OptionB,
		OptionC:       req.OptionC,
		OptionD:       req.OptionD,
		CorrectOption: req.CorrectOption,
	}

	const stmt = `
INSERT INTO questions (question_id, chapter_id, question_text, option_a, option_b, option_c, option_d, correct_option)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`

	_, err = s.db.Exec(ctx, stmt,
		q.QuestionID, q.ChapterID, q.QuestionText, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.CorrectOption)

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return nil, errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("question already exists in this chapter"),
			errors.WithCause(err))
	}
	if err != nil {
		return nil, fmt.Errorf("insert question: %w", err)
	}

	return q, nil
}

type UpdateQuestionRequest struct {
	QuestionID    string
	QuestionText  string
	OptionA       string
	OptionB       string
	OptionC       string
	OptionD       string
	CorrectOption string
}

func (s *Service) UpdateQuestion(ctx context.Context, req UpdateQuestionRequest) error {
	if !domain.ValidOption(req.CorrectOption) {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("correct option must be one of A, B, C, D"))
	}

	const stmt = `
UPDATE questions
SET question_text = $2, option_a = $3, option_b = $4, option_c = $5, option_d = $6, correct_option = $7
WHERE question_id = $1;`

	tag, err := s.db.Exec(ctx, stmt,
		req.QuestionID, req.QuestionText, req.OptionA, req.OptionB, req.OptionC, req.OptionD, req.CorrectOption)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("question not found: %s", req.QuestionID))
	}

	return nil
}

func (s *Service) ListQuestions(ctx context.Context, chapterID string) ([]domain.Question, error) {
	const stmt = `
SELECT question_id, chapter_id, question_text, option_a, option_b, option_c, option_d, correct_option
FROM questions WHERE chapter_id = $1 ORDER BY question_id;`

	rows, err := s.db.Query(ctx, stmt, chapterID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	return pgx.CollectRows(rows, scanQuestion)
}

// QuizQuestions returns the quiz-specific question set, correct options
// included. Callers serving learners must not leak CorrectOption.
func (s *Service) QuizQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	const stmt = `
SELECT q.question_id, q.chapter_id, q.question_text, q.option_a, q.option_b, q.option_c, q.option_d, q.correct_option
FROM questions q
JOIN quiz_questions qq ON qq.question_id = q.question_id
WHERE qq.quiz_id = $1;`

	rows, err := s.db.Query(ctx, stmt, quizID)
	if err != nil {
		return nil, fmt.Errorf("list quiz questions: %w", err)
	}

	return pgx.CollectRows(rows, scanQuestion)
}

func scanQuestion(r pgx.CollectableRow) (domain.Question, error) {
	var q domain.Question
	err := r.Scan(&q.QuestionID, &q.ChapterID, &q.QuestionText,
		&q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD, &q.CorrectOption)
	return q, err
}

type CreateQuizRequest struct {
	Name            string
	Description     string
	ChapterID       string // optional
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
	MaxMarks        int
}

func (s *Service) CreateQuiz(ctx context.Context, req CreateQuizRequest) (*domain.Quiz, error) {
	if req.ChapterID != "" {
		if err := s.requireExists(ctx, `SELECT 1 FROM chapters WHERE chapter_id = $1`, req.ChapterID, "chapter"); err != nil {
			return nil, err
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate quiz ID: %w", err)
	}

	qz := &domain.Quiz{
		QuizID:          id.String(),
		ChapterID:       req.ChapterID,
		Name:            req.Name,
		Description:     req.Description,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMinutes: req.DurationMinutes,
		MaxMarks:        req.MaxMarks,
		Active:          false, // quizzes go live explicitly
		CreateTime:      time.Now().UTC(),
	}

	const stmt = `
INSERT INTO quizzes (quiz_id, chapter_id, name, description, start_time, end_time, duration_minutes, max_marks, active, create_time)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10);`

	_, err = s.db.Exec(ctx, stmt,
		qz.QuizID, qz.ChapterID, qz.Name, qz.Description, qz.StartTime, qz.EndTime,
		qz.DurationMinutes, qz.MaxMarks, qz.Active, qz.CreateTime)
	if err != nil {
		return nil, fmt.Errorf("insert quiz: %w", err)
	}

	return qz, nil
}

type UpdateQuizRequest struct {
	QuizID          string
	Name            string
	Description     string
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
	MaxMarks        int
	Active          bool
}

func (s *Service) UpdateQuiz(ctx context.Context, req UpdateQuizRequest) error {
	const stmt = `
UPDATE quizzes
SET name = $2, description = $3, start_time = $4, end_time = $5, duration_minutes = $6, max_marks = $7, active = $8
WHERE quiz_id = $1;`

	tag, err := s.db.Exec(ctx, stmt,
		req.QuizID, req.Name, req.Description, req.StartTime, req.EndTime,
		req.DurationMinutes, req.MaxMarks, req.Active)
	if err != nil {
		return fmt.Errorf("update quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("quiz not found: %s", req.QuizID))
	}

	return nil
}

type SetQuizQuestionsRequest struct {
	QuizID      string
	QuestionIDs []string
}

// SetQuizQuestions replaces the quiz's question set in one transaction.
func (s *Service) SetQuizQuestions(ctx context.Context, req SetQuizQuestionsRequest) (err error) {
	if _, err := s.GetQuiz(ctx, req.QuizID); err != nil {
		return err
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

	const (
		delStmt = `DELETE FROM quiz_questions WHERE quiz_id = $1;`
		insStmt = `INSERT INTO quiz_questions (quiz_id, question_id) VALUES ($1, $2);`
	)

	if _, err = tx.Exec(ctx, delStmt, req.QuizID); err != nil {
		return fmt.Errorf("clear quiz questions: %w", err)
	}

	for _, qid := range req.QuestionIDs {
		if _, err = tx.Exec(ctx, insStmt, req.QuizID, qid); err != nil {
			return fmt.Errorf("assign question %s: %w", qid, err)
		}
	}

	return tx.Commit(ctx)
}

// GetQuiz returns the quiz with its question IDs.
func (s *Service) GetQuiz(ctx context.Context, quizID string) (*domain.Quiz, error) {
	const stmt = `
SELECT quiz_id, COALESCE(chapter_id, ''), name, COALESCE(description, ''), start_time, end_time, duration_minutes, max_marks, active, create_time
FROM quizzes WHERE quiz_id = $1;`

	var qz domain.Quiz
	err := s.db.QueryRow(ctx, stmt, quizID).Scan(
		&qz.QuizID, &qz.ChapterID, &qz.Name, &qz.Description, &qz.StartTime, &qz.EndTime,
		&qz.DurationMinutes, &qz.MaxMarks, &qz.Active, &qz.CreateTime)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("quiz not found: %s", quizID))
	}
	if err != nil {
		return nil, fmt.Errorf("select quiz: %w", err)
	}

	const qStmt = `SELECT question_id FROM quiz_questions WHERE quiz_id = $1;`
	rows, err := s.db.Query(ctx, qStmt, quizID)
	if err != nil {
		return nil, fmt.Errorf("select quiz question IDs: %w", err)
	}

	qz.QuestionIDs, err = pgx.CollectRows(rows, func(r pgx.CollectableRow) (string, error) {
		var id string
		err := r.Scan(&id)
		return id, err
	})
	if err != nil {
		return nil, err
	}

	return &qz, nil
}

type ListQuizzesRequest struct {
	ActiveOnly bool
}

func (s *Service) ListQuizzes(ctx context.Context, req ListQuizzesRequest) ([]domain.Quiz, error) {
	const stmt = `
SELECT quiz_id, COALESCE(chapter_id, ''), name, COALESCE(description, ''), start_time, end_time, duration_minutes, max_marks, active, create_time
FROM quizzes
WHERE active OR NOT $1
ORDER BY create_time DESC;`

	rows, err := s.db.Query(ctx, stmt, req.ActiveOnly)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Quiz, error) {
		var qz domain.Quiz
		err := r.Scan(&qz.QuizID, &qz.ChapterID, &qz.Name, &qz.Description, &qz.StartTime, &qz.EndTime,
			&qz.DurationMinutes, &qz.MaxMarks, &qz.Active, &qz.CreateTime)
		return qz, err
	})
}

// CountActiveQuizzes reports how many quizzes are open for attempts.
func (s *Service) CountActiveQuizzes(ctx context.Context) (int, error) {
	const stmt = `SELECT COUNT(*) FROM quizzes WHERE active;`

	var n int
	if err := s.db.QueryRow(ctx, stmt).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active quizzes: %w", err)
	}

	return n, nil
}

func (s *Service) requireExists(ctx context.Context, stmt, id, kind string) error {
	var one int
	err := s.db.QueryRow(ctx, stmt, id).Scan(&one)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("%s not found: %s", kind, id))
	}
	if err != nil {
		return fmt.Errorf("check %s exists: %w", kind, err)
	}

	return nil
}
