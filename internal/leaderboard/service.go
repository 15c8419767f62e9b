package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quizmaster/quizmaster/internal/domain"
	"github.com/quizmaster/quizmaster/internal/errors"
	"github.com/quizmaster/quizmaster/internal/event"
)

const (
	publishInterval = 200 * time.Millisecond
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

// Service keeps a per-quiz leaderboard in a Redis sorted set, fed by the
// score.recorded events the attempt engine publishes after grading.
type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameScoreRecorded, func(ctx context.Context, e event.Event) error {
		return s.RecordScore(ctx, e.(domain.EventScoreRecorded))
	})

	return s
}

type GetLeaderboardRequest struct {
	QuizID string
}

// GetLeaderboard returns the leaderboard for a quiz, all learners and their
// scores, best first.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	res, err := s.redis.ZRevRangeWithScores(ctx, s.leaderboardKey(req.QuizID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("leaderboard not found: quiz=%s", req.QuizID))
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		entries = append(entries, domain.LeaderboardEntry{
			UserID: z.Member.(string),
			Score:  z.Score,
		})
	}

	return &domain.Leaderboard{
		QuizID:  req.QuizID,
		Entries: entries,
	}, nil
}

// RecordScore writes the learner's score into the quiz leaderboard. Scores
// are final per (learner, quiz), so ZAdd never has to merge.
func (s *Service) RecordScore(ctx context.Context, e domain.EventScoreRecorded) error {
	sc := e.Score

	if err := s.redis.ZAdd(ctx, s.leaderboardKey(sc.QuizID), redis.Z{
		Score:  float64(sc.TotalScore),
		Member: sc.UserID,
	}).Err(); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublish(ctx, sc)
}

// schedulePublish debounces leaderboard.updated events: many learners can
// finish a quiz in a short window and one published board covers them all.
func (s *Service) schedulePublish(ctx context.Context, sc domain.Score) error {
	ok, err := s.redis.SetNX(ctx, s.publishTimeKey(sc.QuizID), sc.AttemptedAt.UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	return s.publish(ctx, sc)
}

func (s *Service) publish(ctx context.Context, sc domain.Score) error {
	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{
		QuizID: sc.QuizID,
	})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: quiz=%s: %w", sc.QuizID, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return s.redis.Set(ctx, s.publishTimeKey(sc.QuizID), sc.AttemptedAt.UnixMilli(), publishInterval).Err()
}

func (s *Service) leaderboardKey(quizID string) string {
	return fmt.Sprintf("%s:%s:leaderboard", s.prefix, quizID)
}

func (s *Service) publishTimeKey(quizID string) string {
	return fmt.Sprintf("%s:%s:time", s.prefix, quizID)
}
