package scoreledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizmaster/quizmaster/internal/domain"
)

type Config struct {
	DB *pgxpool.Pool
}

// Service reads the append-only score ledger. Rows are written exclusively
// by the attempt engine inside its grading transaction; this service only
// queries them for history and leaderboard display.
type Service struct {
	db *pgxpool.Pool
}

func NewService(c Config) *Service {
	return &Service{db: c.DB}
}

// HistoryEntry is one ledger row joined with the quiz it was earned on.
type HistoryEntry struct {
	QuizID      string
	QuizName    string
	MaxMarks    int
	TotalScore  int
	AttemptedAt time.Time
}

type ListHistoryRequest struct {
	UserID string
}

// ListHistory returns the learner's scores, most recent first.
func (s *Service) ListHistory(ctx context.Context, req ListHistoryRequest) ([]HistoryEntry, error) {
	const stmt = `
SELECT sc.quiz_id, qz.name, qz.max_marks, sc.total_score, sc.attempted_at
FROM scores sc
JOIN quizzes qz ON qz.quiz_id = sc.quiz_id
WHERE sc.user_id = $1
ORDER BY sc.attempted_at DESC;`

	rows, err := s.db.Query(ctx, stmt, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("list score history: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (HistoryEntry, error) {
		var e HistoryEntry
		err := r.Scan(&e.QuizID, &e.QuizName, &e.MaxMarks, &e.TotalScore, &e.AttemptedAt)
		return e, err
	})
}

type ListQuizScoresRequest struct {
	QuizID string
}

// ListQuizScores returns every ledger row for a quiz, highest score first.
func (s *Service) ListQuizScores(ctx context.Context, req ListQuizScoresRequest) ([]domain.Score, error) {
	const stmt = `
SELECT score_id, quiz_id, user_id, total_score, attempted_at
FROM scores
WHERE quiz_id = $1
ORDER BY total_score DESC, attempted_at;`

	rows, err := s.db.Query(ctx, stmt, req.QuizID)
	if err != nil {
		return nil, fmt.Errorf("list quiz scores: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Score, error) {
		var sc domain.Score
		err := r.Scan(&sc.ScoreID, &sc.QuizID, &sc.UserID, &sc.TotalScore, &sc.AttemptedAt)
		return sc, err
	})
}
