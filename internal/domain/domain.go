package domain

import (
	"time"
)

// Role tags a Principal. There are exactly two roles: learners attempt
// quizzes, admins curate the catalog.
type Role string

const (
	RoleLearner Role = "learner"
	RoleAdmin   Role = "admin"
)

// Principal is the authenticated identity resolved once per request.
// The role is an explicit tag, never inferred from ambient session state.
type Principal struct {
	UserID string
	Email  string
	Role   Role
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// User is a registered account, learner or admin.
type User struct {
	UserID        string
	Email         string
	FullName      string
	Qualification string
	DateOfBirth   *time.Time
	Role          Role
	Active        bool
	CreateTime    time.Time
}

type Subject struct {
	SubjectID string
	Name      string
}

type Chapter struct {
	ChapterID string
	SubjectID string
	Name      string
	Number    int
}

// Option labels form a fixed 4-symbol alphabet.
const (
	OptionA = "A"
	OptionB = "B"
	OptionC = "C"
	OptionD = "D"
)

func ValidOption(o string) bool {
	return o == OptionA || o == OptionB || o == OptionC || o == OptionD
}

// Question belongs to exactly one chapter and has exactly one correct
// option label. Immutable while an attempt is being graded.
type Question struct {
	QuestionID    string
	ChapterID     string
	QuestionText  string
	OptionA       string
	OptionB       string
	OptionC       string
	OptionD       string
	CorrectOption string
}

// Quiz groups an unordered set of questions, not necessarily all of its
// chapter's questions. Inactive quizzes reject new attempts.
type Quiz struct {
	QuizID          string
	ChapterID       string // empty when the quiz is not bound to a chapter
	Name            string
	Description     string
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
	MaxMarks        int
	Active          bool
	CreateTime      time.Time
	QuestionIDs     []string
}

// Attempt is one learner's single run at one quiz. At most one row exists
// per (user, quiz). SubmittedAt nil means in progress; once set the attempt
// is terminal and never mutated again.
type Attempt struct {
	AttemptID   string
	UserID      string
	QuizID      string
	StartedAt   time.Time
	SubmittedAt *time.Time
}

func (a *Attempt) Submitted() bool { return a != nil && a.SubmittedAt != nil }

// Answer records one graded selection. Correctness is computed at write
// time against the question's correct option and never revised.
type Answer struct {
	AnswerID       string
	AttemptID      string
	QuestionID     string
	SelectedOption string
	Correct        bool
}

// Score is the append-only ledger row for a completed attempt: the count
// of correct answers, not a percentage.
type Score struct {
	ScoreID     string
	QuizID      string
	UserID      string
	TotalScore  int
	AttemptedAt time.Time
}

// Result is the display-ready view of a submitted attempt. Percentage is
// derived from answered questions only, so an omitted question is absent
// rather than counted wrong.
type Result struct {
	AttemptID     string
	QuizID        string
	UserID        string
	SubmittedAt   time.Time
	Answers       []Answer
	CorrectCount  int
	AnsweredCount int
	Percentage    float64
}

// Leaderboard lists learners and their total scores for one quiz, sorted
// by score in descending order.
type Leaderboard struct {
	QuizID  string
	Entries []LeaderboardEntry
}

type LeaderboardEntry struct {
	UserID string
	Score  float64
}
