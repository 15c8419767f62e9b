//go:build integration_test

package flow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// Exercises a full quiz lifecycle against a running server: the admin
// builds a one-quiz catalog, a learner attempts it, and the engine refuses
// a second attempt. Requires CONFIG_PATH-configured server on localhost.
const baseURL = "http://localhost:8080/api/v1"

func TestQuizLifecycle(t *testing.T) {
	admin := login(t, "admin@quizmaster.local", "admin-pass")

	subjectID := postJSON(t, admin, "/admin/subjects", map[string]any{
		"name": "Mathematics " + uuid.New().String(),
	})["subject_id"].(string)

	chapterID := postJSON(t, admin, fmt.Sprintf("/admin/subjects/%s/chapters", subjectID), map[string]any{
		"name": "Algebra",
	})["chapter_id"].(string)

	q1 := postJSON(t, admin, fmt.Sprintf("/admin/chapters/%s/questions", chapterID), map[string]any{
		"question_text":  "2 + 2 = ?",
		"option_a":       "4",
		"option_b":       "3",
		"option_c":       "5",
		"option_d":       "22",
		"correct_option": "A",
	})["question_id"].(string)

	q2 := postJSON(t, admin, fmt.Sprintf("/admin/chapters/%s/questions", chapterID), map[string]any{
		"question_text":  "3 * 3 = ?",
		"option_a":       "6",
		"option_b":       "9",
		"option_c":       "33",
		"option_d":       "12",
		"correct_option": "B",
	})["question_id"].(string)

	quizID := postJSON(t, admin, "/admin/quizzes", map[string]any{
		"name":             "Algebra basics",
		"chapter_id":       chapterID,
		"start_time":       time.Now().Format(time.RFC3339),
		"end_time":         time.Now().Add(time.Hour).Format(time.RFC3339),
		"duration_minutes": 30,
		"max_marks":        2,
	})["quiz_id"].(string)

	do(t, admin, http.MethodPut, fmt.Sprintf("/admin/quizzes/%s/questions", quizID), map[string]any{
		"question_ids": []string{q1, q2},
	}, http.StatusNoContent)

	do(t, admin, http.MethodPut, fmt.Sprintf("/admin/quizzes/%s", quizID), map[string]any{
		"name":             "Algebra basics",
		"start_time":       time.Now().Format(time.RFC3339),
		"end_time":         time.Now().Add(time.Hour).Format(time.RFC3339),
		"duration_minutes": 30,
		"max_marks":        2,
		"active":           true,
	}, http.StatusNoContent)

	email := fmt.Sprintf("learner-%s@example.com", uuid.New().String())
	doAnon(t, http.MethodPost, "/auth/register", map[string]any{
		"email":     email,
		"password":  "learner-pass",
		"full_name": "Flow Learner",
	}, http.StatusCreated)
	learner := login(t, email, "learner-pass")

	// One correct, one wrong.
	graded := postJSON(t, learner, fmt.Sprintf("/quizzes/%s/attempt", quizID), map[string]any{
		"answers": map[string]string{
			q1: "A",
			q2: "C",
		},
	})
	require.EqualValues(t, 1, graded["total_score"])

	result := getJSON(t, learner, fmt.Sprintf("/attempts/%s/result", graded["attempt_id"]))
	require.EqualValues(t, 1, result["correct_count"])
	require.EqualValues(t, 2, result["answered_count"])
	require.EqualValues(t, 50.0, result["percentage"])

	// The attempt is terminal now.
	do(t, learner, http.MethodPost, fmt.Sprintf("/quizzes/%s/attempt", quizID), map[string]any{
		"answers": map[string]string{q1: "A"},
	}, http.StatusUnprocessableEntity)
}

// Many learners racing to submit the same quiz must each end up with
// exactly one attempt.
func TestConcurrentSubmissions(t *testing.T) {
	admin := login(t, "admin@quizmaster.local", "admin-pass")

	quizID := buildActiveQuiz(t, admin)

	var (
		mu     sync.Mutex
		scores []float64
	)

	var eg errgroup.Group
	for i := 0; i < 5; i++ {
		i := i
		eg.Go(func() error {
			email := fmt.Sprintf("racer-%d-%s@example.com", i, uuid.New().String())
			doAnon(t, http.MethodPost, "/auth/register", map[string]any{
				"email":     email,
				"password":  "racer-pass",
				"full_name": "Racer",
			}, http.StatusCreated)

			learner := login(t, email, "racer-pass")
			graded := postJSON(t, learner, fmt.Sprintf("/quizzes/%s/attempt", quizID), map[string]any{
				"answers": map[string]string{},
			})

			mu.Lock()
			scores = append(scores, graded["total_score"].(float64))
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	require.Len(t, scores, 5)
}

// A single learner firing concurrent submits at one quiz must end up with
// exactly one graded attempt; every loser gets a conflict or is told the
// quiz is already completed.
func TestSameLearnerConcurrentSubmissions(t *testing.T) {
	admin := login(t, "admin@quizmaster.local", "admin-pass")

	quizID := buildActiveQuiz(t, admin)

	email := fmt.Sprintf("solo-%s@example.com", uuid.New().String())
	doAnon(t, http.MethodPost, "/auth/register", map[string]any{
		"email":     email,
		"password":  "solo-pass",
		"full_name": "Solo Racer",
	}, http.StatusCreated)
	learner := login(t, email, "solo-pass")

	var (
		mu       sync.Mutex
		statuses []int
	)

	var eg errgroup.Group
	for i := 0; i < 5; i++ {
		eg.Go(func() error {
			resp := request(t, learner, http.MethodPost, fmt.Sprintf("/quizzes/%s/attempt", quizID), map[string]any{
				"answers": map[string]string{},
			})
			defer resp.Body.Close()

			mu.Lock()
			statuses = append(statuses, resp.StatusCode)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	require.Len(t, statuses, 5)

	graded := 0
	for _, status := range statuses {
		switch status {
		case http.StatusOK:
			graded++
		case http.StatusConflict, http.StatusUnprocessableEntity:
			// Lost the insert race, or arrived after the winner committed.
		default:
			t.Fatalf("unexpected status %d for a concurrent submit", status)
		}
	}
	require.Equal(t, 1, graded, "exactly one submit must grade")
}

// The admin provisions an account, deactivates it, then rotates its
// password.
func TestAdminUserManagement(t *testing.T) {
	admin := login(t, "admin@quizmaster.local", "admin-pass")

	email := fmt.Sprintf("managed-%s@example.com", uuid.New().String())
	created := postJSON(t, admin, "/admin/users", map[string]any{
		"email":     email,
		"password":  "managed-pass",
		"full_name": "Managed Learner",
	})
	userID := created["user_id"].(string)
	login(t, email, "managed-pass")

	do(t, admin, http.MethodPut, "/admin/users/"+userID, map[string]any{
		"full_name": "Managed Learner",
		"is_active": false,
	}, http.StatusNoContent)

	doAnon(t, http.MethodPost, "/auth/login", map[string]any{
		"email":    email,
		"password": "managed-pass",
	}, http.StatusForbidden)

	do(t, admin, http.MethodPut, "/admin/users/"+userID, map[string]any{
		"full_name": "Managed Learner",
		"is_active": true,
		"password":  "rotated-pass",
	}, http.StatusNoContent)

	login(t, email, "rotated-pass")
}

func buildActiveQuiz(t *testing.T, admin string) string {
	// Quizzes do not have to belong to a chapter.
	quizID := postJSON(t, admin, "/admin/quizzes", map[string]any{
		"name":             "Race quiz",
		"start_time":       time.Now().Format(time.RFC3339),
		"end_time":         time.Now().Add(time.Hour).Format(time.RFC3339),
		"duration_minutes": 10,
		"max_marks":        1,
	})["quiz_id"].(string)

	do(t, admin, http.MethodPut, fmt.Sprintf("/admin/quizzes/%s", quizID), map[string]any{
		"name":             "Race quiz",
		"start_time":       time.Now().Format(time.RFC3339),
		"end_time":         time.Now().Add(time.Hour).Format(time.RFC3339),
		"duration_minutes": 10,
		"max_marks":        1,
		"active":           true,
	}, http.StatusNoContent)

	return quizID
}

func login(t *testing.T, email, password string) string {
	resp := doAnon(t, http.MethodPost, "/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, http.StatusOK)

	return resp["token"].(string)
}

func postJSON(t *testing.T, token, path string, body map[string]any) map[string]any {
	resp := request(t, token, http.MethodPost, path, body)
	defer resp.Body.Close()
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, resp.StatusCode, "POST %s", path)

	return decode(t, resp)
}

func getJSON(t *testing.T, token, path string) map[string]any {
	resp := request(t, token, http.MethodGet, path, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "GET %s", path)

	return decode(t, resp)
}

func do(t *testing.T, token, method, path string, body map[string]any, wantStatus int) {
	resp := request(t, token, method, path, body)
	defer resp.Body.Close()
	require.Equal(t, wantStatus, resp.StatusCode, "%s %s", method, path)
}

func doAnon(t *testing.T, method, path string, body map[string]any, wantStatus int) map[string]any {
	resp := request(t, "", method, path, body)
	defer resp.Body.Close()
	require.Equal(t, wantStatus, resp.StatusCode, "%s %s", method, path)

	return decode(t, resp)
}

func request(t *testing.T, token, method, path string, body map[string]any) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, baseURL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	out := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}
