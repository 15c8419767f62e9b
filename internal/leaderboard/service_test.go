package leaderboard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/quizmaster/quizmaster/internal/domain"
	"github.com/quizmaster/quizmaster/internal/event"
	"github.com/quizmaster/quizmaster/internal/leaderboard"
)

func TestService_RecordScore(t *testing.T) {
	s := makeService(t)

	err := s.RecordScore(context.Background(), domain.EventScoreRecorded{
		Score: domain.Score{
			QuizID:      "qz1",
			UserID:      "u1",
			TotalScore:  3,
			AttemptedAt: time.Now(),
		},
	})
	require.NoError(t, err)

	resp, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{
		QuizID: "qz1",
	})
	require.NoError(t, err)

	want := &domain.Leaderboard{
		QuizID: "qz1",
		Entries: []domain.LeaderboardEntry{
			{UserID: "u1", Score: 3},
		},
	}
	require.Equal(t, want, resp)
}

func TestService_PublishLeaderboardUpdated(t *testing.T) {
	type (
		inputs struct {
			receivedEvents []domain.EventScoreRecorded
		}

		outputs struct {
			publishedEvents []domain.EventLeaderboardUpdated
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"should publish correct leaderboard.updated after receiving score.recorded": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventScoreRecorded{
						{
							Score: domain.Score{
								QuizID:      "qz1",
								UserID:      "u1",
								TotalScore:  2,
								AttemptedAt: time.Now(),
							},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 1, "should receive 1 leaderboard updated event")
				require.Equal(t, domain.Leaderboard{
					QuizID: "qz1",
					Entries: []domain.LeaderboardEntry{
						{UserID: "u1", Score: 2},
					},
				}, out.publishedEvents[0].Leaderboard)
			},
		},

		"should publish 2 events after scores recorded for 2 different quizzes": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventScoreRecorded{
						{
							Score: domain.Score{
								QuizID:      "qz1",
								UserID:      "u1",
								TotalScore:  1,
								AttemptedAt: time.Now(),
							},
						},
						{
							Score: domain.Score{
								QuizID:      "qz2",
								UserID:      "u2",
								TotalScore:  4,
								AttemptedAt: time.Now(),
							},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 2, "should receive 2 leaderboard updated events")
			},
		},

		"should publish 1 event for the same quiz within the publish interval": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventScoreRecorded{
						{
							Score: domain.Score{
								QuizID:      "qz1",
								UserID:      "u1",
								TotalScore:  1,
								AttemptedAt: time.Now(),
							},
						},
						{
							Score: domain.Score{
								QuizID:      "qz1",
								UserID:      "u2",
								TotalScore:  2,
								AttemptedAt: time.Now(),
							},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 1, "should receive 1 leaderboard updated event")
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in, out := tt.arrange(), outputs{}

			eb := event.NewBus()

			var mu sync.Mutex
			eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
				mu.Lock()
				out.publishedEvents = append(out.publishedEvents, e.(domain.EventLeaderboardUpdated))
				mu.Unlock()
				return nil
			})

			s := makeService(t,
				withEventBus(eb),
			)

			for _, e := range in.receivedEvents {
				err := s.RecordScore(context.Background(), e)
				require.NoError(t, err)
			}

			eb.Stop()

			tt.assert(t, out)
		})
	}
}

func makeService(t *testing.T, opts ...options) *leaderboard.Service {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	c := leaderboard.Config{
		EventBus: event.NewBus(),
		Redis:    rc,
	}

	for _, opt := range opts {
		opt(&c)
	}

	return leaderboard.NewService(c)
}

type options func(c *leaderboard.Config)

func withEventBus(eb *event.Bus) options {
	return func(c *leaderboard.Config) {
		c.EventBus = eb
	}
}
