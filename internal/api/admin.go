package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quizmaster/quizmaster/internal/catalog"
	"github.com/quizmaster/quizmaster/internal/domain"
	"github.com/quizmaster/quizmaster/internal/errors"
	"github.com/quizmaster/quizmaster/internal/identity"
	"github.com/quizmaster/quizmaster/internal/scoreledger"
)

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err),
			errors.WithMessagef("invalid payload: %v", err)))
		return false
	}
	return true
}

func (a *API) overview(c *gin.Context) {
	ctx := c.Request.Context()

	total, active, err := a.ids.CountUsers(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}

	quizzes, err := a.cat.CountActiveQuizzes(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}

	attempts, err := a.att.CountAttempts(ctx, "")
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_users":    total,
		"active_users":   active,
		"active_quizzes": quizzes,
		"total_attempts": attempts,
	})
}

func (a *API) listUsers(c *gin.Context) {
	users, err := a.ids.ListUsers(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}

	out := make([]gin.H, 0, len(users))
	for _, u := range users {
		out = append(out, gin.H{
			"user_id":     u.UserID,
			"email":       u.Email,
			"full_name":   u.FullName,
			"role":        u.Role,
			"is_active":   u.Active,
			"create_time": u.CreateTime,
		})
	}

	c.JSON(http.StatusOK, gin.H{"users": out})
}

type createUserRequest struct {
	Email         string `json:"email" binding:"required,email"`
	Password      string `json:"password" binding:"required,min=8"`
	FullName      string `json:"full_name" binding:"required"`
	Qualification string `json:"qualification"`
	DateOfBirth   string `json:"date_of_birth"` // YYYY-MM-DD
}

// createUser lets an admin provision a learner account directly.
func (a *API) createUser(c *gin.Context) {
	var req createUserRequest
	if !bindJSON(c, &req) {
		return
	}

	dob, err := parseDOB(req.DateOfBirth)
	if err != nil {
		abortWithError(c, err)
		return
	}

	u, err := a.ids.CreateUser(c.Request.Context(), identity.CreateUserRequest{
		Email:         req.Email,
		Password:      req.Password,
		FullName:      req.FullName,
		Qualification: req.Qualification,
		DateOfBirth:   dob,
		Role:          domain.RoleLearner,
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

type updateUserRequest struct {
	FullName      string `json:"full_name" binding:"required"`
	Qualification string `json:"qualification"`
	DateOfBirth   string `json:"date_of_birth"` // YYYY-MM-DD
	Active        bool   `json:"is_active"`
	Password      string `json:"password" binding:"omitempty,min=8"`
}

func (a *API) updateUser(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	var req updateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	dob, err := parseDOB(req.DateOfBirth)
	if err != nil {
		abortWithError(c, err)
		return
	}

	err = a.ids.UpdateUser(c.Request.Context(), identity.UpdateUserRequest{
		UserID:        userID,
		FullName:      req.FullName,
		Qualification: req.Qualification,
		DateOfBirth:   dob,
		Active:        req.Active,
		Password:      req.Password,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) deleteUser(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	if err := a.ids.DeleteUser(c.Request.Context(), userID); err != nil {
		abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type subjectRequest struct {
	Name string `json:"name" binding:"required"`
}

func (a *API) listSubjects(c *gin.Context) {
	subjects, err := a.cat.ListSubjects(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}

	out := make([]gin.H, 0, len(subjects))
	for _, s := range subjects {
		out = append(out, gin.H{"subject_id": s.SubjectID, "name": s.Name})
	}

	c.JSON(http.StatusOK, gin.H{"subjects": out})
}

func (a *API) createSubject(c *gin.Context) {
	var req subjectRequest
	if !bindJSON(c, &req) {
		return
	}

	s, err := a.cat.CreateSubject(c.Request.Context(), catalog.CreateSubjectRequest{Name: req.Name})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"subject_id": s.SubjectID, "name": s.Name})
}

func (a *API) updateSubject(c *gin.Context) {
	subjectID, ok := pathID(c, "subject_id")
	if !ok {
		return
	}

	var req subjectRequest
	if !bindJSON(c, &req) {
		return
	}

	err := a.cat.UpdateSubject(c.Request.Context(), catalog.UpdateSubjectRequest{
		SubjectID: subjectID,
		Name:      req.Name,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) listChapters(c *gin.Context) {
	subjectID, ok := pathID(c, "subject_id")
	if !ok {
		return
	}

	chapters, err := a.cat.ListChapters(c.Request.Context(), subjectID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	out := make([]gin.H, 0, len(chapters))
	for _, ch := range chapters {
		out = append(out, gin.H{
			"chapter_id": ch.ChapterID,
			"subject_id": ch.SubjectID,
			"name":       ch.Name,
			"number":     ch.Number,
		})
	}

	c.JSON(http.StatusOK, gin.H{"chapters": out})
}

func (a *API) createChapter(c *gin.Context) {
	subjectID, ok := pathID(c, "subject_id")
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	ch, err := a.cat.CreateChapter(c.Request.Context(), catalog.CreateChapterRequest{
		SubjectID: subjectID,
		Name:      req.Name,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"chapter_id": ch.ChapterID,
		"name":       ch.Name,
		"number":     ch.Number,
	})
}

func (a *API) updateChapter(c *gin.Context) {
	chapterID, ok := pathID(c, "chapter_id")
	if !ok {
		return
	}

	var req struct {
		Name   string `json:"name" binding:"required"`
		Number int    `json:"number" binding:"required,min=1"`
	}
	if !bindJSON(c, &req) {
		return
	}

	err := a.cat.UpdateChapter(c.Request.Context(), catalog.UpdateChapterRequest{
		ChapterID: chapterID,
		Name:      req.Name,
		Number:    req.Number,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type questionRequest struct {
	QuestionText  string `json:"question_text" binding:"required"`
	OptionA       string `json:"option_a" binding:"required"`
	OptionB       string `json:"option_b" binding:"required"`
	OptionC       string `json:"option_c" binding:"required"`
	OptionD       string `json:"option_d" binding:"required"`
	CorrectOption string `json:"correct_option" binding:"required,oneof=A B C D"`
}

func (a *API) listQuestions(c *gin.Context) {
	chapterID, ok := pathID(c, "chapter_id")
	if !ok {
		return
	}

	questions, err := a.cat.ListQuestions(c.Request.Context(), chapterID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	out := make([]gin.H, 0, len(questions))
	for _, q := range questions {
		out = append(out, gin.H{
			"question_id":    q.QuestionID,
			"question_text":  q.QuestionText,
			"option_a":       q.OptionA,
			"option_b":       q.OptionB,
			"option_c":       q.OptionC,
			"option_d":       q.OptionD,
			"correct_option": q.CorrectOption,
		})
	}

	c.JSON(http.StatusOK, gin.H{"questions": out})
}

func (a *API) createQuestion(c *gin.Context) {
	chapterID, ok := pathID(c, "chapter_id")
	if !ok {
		return
	}

	var req questionRequest
	if !bindJSON(c, &req) {
		return
	}

	q, err := a.cat.CreateQuestion(c.Request.Context(), catalog.CreateQuestionRequest{
		ChapterID:     chapterID,
		QuestionText:  req.QuestionText,
		OptionA:       req.OptionA,
		OptionB:       req.OptionB,
		OptionC:       req.OptionC,
		OptionD:       req.OptionD,
		CorrectOption: req.CorrectOption,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"question_id": q.QuestionID})
}

func (a *API) updateQuestion(c *gin.Context) {
	questionID, ok := pathID(c, "question_id")
	if !ok {
		return
	}

	var req questionRequest
	if !bindJSON(c, &req) {
		return
	}

	err := a.cat.UpdateQuestion(c.Request.Context(), catalog.UpdateQuestionRequest{
		QuestionID:    questionID,
		QuestionText:  req.QuestionText,
		OptionA:       req.OptionA,
		OptionB:       req.OptionB,
		OptionC:       req.OptionC,
		OptionD:       req.OptionD,
		CorrectOption: req.CorrectOption,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type quizRequest struct {
	Name            string    `json:"name" binding:"required"`
	Description     string    `json:"description"`
	ChapterID       string    `json:"chapter_id"`
	StartTime       time.Time `json:"start_time" binding:"required"`
	EndTime         time.Time `json:"end_time" binding:"required,gtfield=StartTime"`
	DurationMinutes int       `json:"duration_minutes" binding:"required,min=1"`
	MaxMarks        int       `json:"max_marks" binding:"required,min=1"`
	Active          bool      `json:"active"`
}

func (a *API) adminListQuizzes(c *gin.Context) {
	quizzes, err := a.cat.ListQuizzes(c.Request.Context(), catalog.ListQuizzesRequest{})
	if err != nil {
		abortWithError(c, err)
		return
	}

	out := make([]quizView, 0, len(quizzes))
	for _, qz := range quizzes {
		out = append(out, toQuizView(qz))
	}

	c.JSON(http.StatusOK, gin.H{"quizzes": out})
}

func (a *API) createQuiz(c *gin.Context) {
	var req quizRequest
	if !bindJSON(c, &req) {
		return
	}

	qz, err := a.cat.CreateQuiz(c.Request.Context(), catalog.CreateQuizRequest{
		Name:            req.Name,
		Description:     req.Description,
		ChapterID:       req.ChapterID,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMinutes: req.DurationMinutes,
		MaxMarks:        req.MaxMarks,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"quiz_id": qz.QuizID})
}

func (a *API) getQuiz(c *gin.Context) {
	quizID, ok := pathID(c, "quiz_id")
	if !ok {
		return
	}

	qz, err := a.cat.GetQuiz(c.Request.Context(), quizID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	view := toQuizView(*qz)
	c.JSON(http.StatusOK, gin.H{
		"quiz":         view,
		"question_ids": qz.QuestionIDs,
	})
}

func (a *API) updateQuiz(c *gin.Context) {
	quizID, ok := pathID(c, "quiz_id")
	if !ok {
		return
	}

	var req quizRequest
	if !bindJSON(c, &req) {
		return
	}

	err := a.cat.UpdateQuiz(c.Request.Context(), catalog.UpdateQuizRequest{
		QuizID:          quizID,
		Name:            req.Name,
		Description:     req.Description,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMinutes: req.DurationMinutes,
		MaxMarks:        req.MaxMarks,
		Active:          req.Active,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) setQuizQuestions(c *gin.Context) {
	quizID, ok := pathID(c, "quiz_id")
	if !ok {
		return
	}

	var req struct {
		QuestionIDs []string `json:"question_ids" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	err := a.cat.SetQuizQuestions(c.Request.Context(), catalog.SetQuizQuestionsRequest{
		QuizID:      quizID,
		QuestionIDs: req.QuestionIDs,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// listQuizScores shows an admin the ledger rows for one quiz, best first.
func (a *API) listQuizScores(c *gin.Context) {
	quizID, ok := pathID(c, "quiz_id")
	if !ok {
		return
	}

	scores, err := a.sl.ListQuizScores(c.Request.Context(), scoreledger.ListQuizScoresRequest{
		QuizID: quizID,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	out := make([]gin.H, 0, len(scores))
	for _, sc := range scores {
		out = append(out, gin.H{
			"user_id":      sc.UserID,
			"total_score":  sc.TotalScore,
			"attempted_at": sc.AttemptedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"quiz_id": quizID, "scores": out})
}

// deleteEntity routes every catalog delete through the one cascade routine.
func (a *API) deleteEntity(kind catalog.EntityKind, param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, param)
		if !ok {
			return
		}

		if err := a.cat.Delete(c.Request.Context(), kind, id); err != nil {
			abortWithError(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}
