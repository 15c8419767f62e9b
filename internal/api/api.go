package api

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/quizmaster/quizmaster/internal/attempt"
	"github.com/quizmaster/quizmaster/internal/catalog"
	"github.com/quizmaster/quizmaster/internal/domain"
	"github.com/quizmaster/quizmaster/internal/errors"
	"github.com/quizmaster/quizmaster/internal/event"
	"github.com/quizmaster/quizmaster/internal/identity"
	"github.com/quizmaster/quizmaster/internal/leaderboard"
	"github.com/quizmaster/quizmaster/internal/scoreledger"
)

type Config struct {
	Engine       *gin.Engine
	EventBus     *event.Bus
	Identity     *identity.Service
	Catalog      *catalog.Service
	Attempt      *attempt.Service
	ScoreLedger  *scoreledger.Service
	Leaderboard  *leaderboard.Service
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	ids *identity.Service
	cat *catalog.Service
	att *attempt.Service
	sl  *scoreledger.Service
	lb  *leaderboard.Service

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		ids:    c.Identity,
		cat:    c.Catalog,
		att:    c.Attempt,
		sl:     c.ScoreLedger,
		lb:     c.Leaderboard,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	a.registerRoutes(c.Engine)

	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})

	return a
}

func (a *API) registerRoutes(e *gin.Engine) {
	v1 := e.Group("/api/v1")

	v1.POST("/auth/register", a.register)
	v1.POST("/auth/login", a.login)

	learner := v1.Group("", a.authenticated(), a.requireRole(domain.RoleLearner))
	learner.GET("/quizzes", a.listQuizzes)
	learner.GET("/quizzes/:quiz_id/attempt", a.beginAttempt)
	learner.POST("/quizzes/:quiz_id/attempt", a.submitAttempt)
	learner.GET("/attempts/:attempt_id/result", a.getResult)
	learner.GET("/scores", a.listScores)
	learner.GET("/quizzes/:quiz_id/leaderboard", a.getLeaderboard)

	admin := v1.Group("/admin", a.authenticated(), a.requireRole(domain.RoleAdmin))
	admin.GET("/overview", a.overview)

	admin.GET("/users", a.listUsers)
	admin.POST("/users", a.createUser)
	admin.PUT("/users/:user_id", a.updateUser)
	admin.DELETE("/users/:user_id", a.deleteUser)

	admin.GET("/subjects", a.listSubjects)
	admin.POST("/subjects", a.createSubject)
	admin.PUT("/subjects/:subject_id", a.updateSubject)
	admin.DELETE("/subjects/:subject_id", a.deleteEntity(catalog.KindSubject, "subject_id"))

	admin.GET("/subjects/:subject_id/chapters", a.listChapters)
	admin.POST("/subjects/:subject_id/chapters", a.createChapter)
	admin.PUT("/chapters/:chapter_id", a.updateChapter)
	admin.DELETE("/chapters/:chapter_id", a.deleteEntity(catalog.KindChapter, "chapter_id"))

	admin.GET("/chapters/:chapter_id/questions", a.listQuestions)
	admin.POST("/chapters/:chapter_id/questions", a.createQuestion)
	admin.PUT("/questions/:question_id", a.updateQuestion)
	admin.DELETE("/questions/:question_id", a.deleteEntity(catalog.KindQuestion, "question_id"))

	admin.GET("/quizzes", a.adminListQuizzes)
	admin.POST("/quizzes", a.createQuiz)
	admin.GET("/quizzes/:quiz_id", a.getQuiz)
	admin.PUT("/quizzes/:quiz_id", a.updateQuiz)
	admin.PUT("/quizzes/:quiz_id/questions", a.setQuizQuestions)
	admin.GET("/quizzes/:quiz_id/scores", a.listQuizScores)
	admin.DELETE("/quizzes/:quiz_id", a.deleteEntity(catalog.KindQuiz, "quiz_id"))
}

// abortWithError maps a service error onto the HTTP response. Internal
// causes are logged, never leaked to the caller.
func abortWithError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: internal error",
			"route", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{
		"error": e.Message,
	})
}
