package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quizmaster/quizmaster/internal/attempt"
	"github.com/quizmaster/quizmaster/internal/catalog"
	"github.com/quizmaster/quizmaster/internal/domain"
	"github.com/quizmaster/quizmaster/internal/errors"
	"github.com/quizmaster/quizmaster/internal/identity"
	"github.com/quizmaster/quizmaster/internal/leaderboard"
	"github.com/quizmaster/quizmaster/internal/scoreledger"
)

type registerRequest struct {
	Email         string `json:"email" binding:"required,email"`
	Password      string `json:"password" binding:"required,min=8"`
	FullName      string `json:"full_name" binding:"required"`
	Qualification string `json:"qualification"`
	DateOfBirth   string `json:"date_of_birth"` // YYYY-MM-DD
}

func (a *API) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err),
			errors.WithMessagef("invalid registration payload: %v", err)))
		return
	}

	dob, err := parseDOB(req.DateOfBirth)
	if err != nil {
		abortWithError(c, err)
		return
	}

	u, err := a.ids.Register(c.Request.Context(), identity.RegisterRequest{
		Email:         req.Email,
		Password:      req.Password,
		FullName:      req.FullName,
		Qualification: req.Qualification,
		DateOfBirth:   dob,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user_id": u.UserID,
		"email":   u.Email,
	})
}

// parseDOB parses an optional YYYY-MM-DD date of birth.
func parseDOB(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}

	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("date_of_birth must be YYYY-MM-DD"))
	}

	return &d, nil
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (a *API) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err),
			errors.WithMessagef("invalid login payload: %v", err)))
		return
	}

	resp, err := a.ids.Login(c.Request.Context(), identity.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": resp.Token,
		"user": gin.H{
			"user_id":   resp.User.UserID,
			"email":     resp.User.Email,
			"full_name": resp.User.FullName,
			"role":      resp.User.Role,
		},
	})
}

type quizView struct {
	QuizID          string    `json:"quiz_id"`
	ChapterID       string    `json:"chapter_id,omitempty"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	MaxMarks        int       `json:"max_marks"`
	Active          bool      `json:"active"`
}

func toQuizView(qz domain.Quiz) quizView {
	return quizView{
		QuizID:          qz.QuizID,
		ChapterID:       qz.ChapterID,
		Name:            qz.Name,
		Description:     qz.Description,
		StartTime:       qz.StartTime,
		EndTime:         qz.EndTime,
		DurationMinutes: qz.DurationMinutes,
		MaxMarks:        qz.MaxMarks,
		Active:          qz.Active,
	}
}

func (a *API) listQuizzes(c *gin.Context) {
	quizzes, err := a.cat.ListQuizzes(c.Request.Context(), catalog.ListQuizzesRequest{ActiveOnly: true})
	if err != nil {
		abortWithError(c, err)
		return
	}

	views := make([]quizView, 0, len(quizzes))
	for _, qz := range quizzes {
		views = append(views, toQuizView(qz))
	}

	c.JSON(http.StatusOK, gin.H{"quizzes": views})
}

// questionView deliberately has no correct-option field.
type questionView struct {
	QuestionID   string `json:"question_id"`
	QuestionText string `json:"question_text"`
	OptionA      string `json:"option_a"`
	OptionB      string `json:"option_b"`
	OptionC      string `json:"option_c"`
	OptionD      string `json:"option_d"`
}

func (a *API) beginAttempt(c *gin.Context) {
	quizID, ok := pathID(c, "quiz_id")
	if !ok {
		return
	}

	resp, err := a.att.BeginOrResume(c.Request.Context(), attempt.BeginAttemptRequest{
		UserID: principalFrom(c).UserID,
		QuizID: quizID,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	questions := make([]questionView, 0, len(resp.Questions))
	for _, q := range resp.Questions {
		questions = append(questions, questionView{
			QuestionID:   q.QuestionID,
			QuestionText: q.QuestionText,
			OptionA:      q.OptionA,
			OptionB:      q.OptionB,
			OptionC:      q.OptionC,
			OptionD:      q.OptionD,
		})
	}

	out := gin.H{
		"quiz":      toQuizView(*resp.Quiz),
		"questions": questions,
	}
	if resp.Attempt != nil {
		out["attempt"] = gin.H{
			"attempt_id": resp.Attempt.AttemptID,
			"started_at": resp.Attempt.StartedAt,
		}
	}

	c.JSON(http.StatusOK, out)
}

type submitAttemptRequest struct {
	// Answers maps question ID to a selected option label.
	Answers map[string]string `json:"answers" binding:"required"`
}

func (a *API) submitAttempt(c *gin.Context) {
	quizID, ok := pathID(c, "quiz_id")
	if !ok {
		return
	}

	var req submitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err),
			errors.WithMessagef("invalid submission payload: %v", err)))
		return
	}

	res, err := a.att.Submit(c.Request.Context(), attempt.SubmitRequest{
		UserID:  principalFrom(c).UserID,
		QuizID:  quizID,
		Answers: req.Answers,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"attempt_id":  res.AttemptID,
		"total_score": res.TotalScore,
		"graded_at":   res.GradedAt,
	})
}

func (a *API) getResult(c *gin.Context) {
	attemptID, ok := pathID(c, "attempt_id")
	if !ok {
		return
	}

	res, err := a.att.GetResult(c.Request.Context(), attempt.GetResultRequest{
		AttemptID:   attemptID,
		RequesterID: principalFrom(c).UserID,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	answers := make([]gin.H, 0, len(res.Answers))
	for _, ans := range res.Answers {
		answers = append(answers, gin.H{
			"question_id":     ans.QuestionID,
			"selected_option": ans.SelectedOption,
			"is_correct":      ans.Correct,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"attempt_id":     res.AttemptID,
		"quiz_id":        res.QuizID,
		"submitted_at":   res.SubmittedAt,
		"correct_count":  res.CorrectCount,
		"answered_count": res.AnsweredCount,
		"percentage":     res.Percentage,
		"answers":        answers,
	})
}

func (a *API) listScores(c *gin.Context) {
	history, err := a.sl.ListHistory(c.Request.Context(), scoreledger.ListHistoryRequest{
		UserID: principalFrom(c).UserID,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	entries := make([]gin.H, 0, len(history))
	for _, e := range history {
		entries = append(entries, gin.H{
			"quiz_id":      e.QuizID,
			"quiz_name":    e.QuizName,
			"max_marks":    e.MaxMarks,
			"total_score":  e.TotalScore,
			"attempted_at": e.AttemptedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"scores": entries})
}

func (a *API) getLeaderboard(c *gin.Context) {
	quizID, ok := pathID(c, "quiz_id")
	if !ok {
		return
	}

	l, err := a.lb.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{
		QuizID: quizID,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	entries := make([]gin.H, 0, len(l.Entries))
	for _, e := range l.Entries {
		entries = append(entries, gin.H{
			"user_id": e.UserID,
			"score":   e.Score,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"quiz_id": l.QuizID,
		"entries": entries,
	})
}
