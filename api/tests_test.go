package api_test

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/garnizeh/skilltrials/api"
	"github.com/garnizeh/skilltrials/internal/auth"
	"github.com/garnizeh/skilltrials/internal/models"
	"github.com/garnizeh/skilltrials/pkg/repository/mock"
)

type testBody struct {
	Success bool        `json:"success"`
	Test    models.Test `json:"test"`
}

type submitBody struct {
	Success bool               `json:"success"`
	TestID  int64              `json:"test_id"`
	Score   float64            `json:"score"`
	Graded  map[string]float64 `json:"graded"`
}

func TestTestLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	_, company := s.company("boss@acme.io")
	_, rival := s.company("rival@other.io")
	jobID := s.createJob(company, "Go dev")
	q1 := s.createQuestion(company, jobID, []string{"a", "b", "c"}, []string{"a", "c"})
	q2 := s.createQuestion(company, jobID, []string{"yes", "no"}, []string{"no"})

	var assigned struct {
		Created int64 `json:"created"`
	}
	expect(t, s.do(http.MethodPost, "/test", map[string]any{
		"job_id": jobID,
		"emails": []string{"cand@example.com", "CAND@example.com", "pending@example.com"},
	}, company), http.StatusCreated, &assigned)
	if assigned.Created != 2 {
		t.Fatalf("expected 2 tests created, got %d", assigned.Created)
	}

	// assigning again is a no-op
	expect(t, s.do(http.MethodPost, "/test", map[string]any{"job_id": jobID, "emails": []string{"cand@example.com"}}, company), http.StatusCreated, &assigned)
	if assigned.Created != 0 {
		t.Fatalf("expected idempotent assignment, got %d", assigned.Created)
	}
	expect(t, s.do(http.MethodPost, "/test", map[string]any{"job_id": jobID, "emails": []string{"x@example.com"}}, rival), http.StatusNotFound, nil)

	candID, cand := s.candidate("cand@example.com")
	_, intruder := s.candidate("intruder@example.com")

	var mine struct {
		Tests []models.CandidateTest `json:"tests"`
	}
	expect(t, s.do(http.MethodPost, "/test/candidate", nil, cand), http.StatusOK, &mine)
	if len(mine.Tests) != 1 || mine.Tests[0].JobTitle != "Go dev" || mine.Tests[0].Status != models.TestCreated {
		t.Fatalf("unexpected candidate tests %+v", mine.Tests)
	}
	testID := mine.Tests[0].ID

	var attempts struct {
		Candidates []models.JobAttempt `json:"candidates"`
	}
	expect(t, s.do(http.MethodGet, fmt.Sprintf("/getCandidatesForJob/%d", jobID), nil, company), http.StatusOK, &attempts)
	if len(attempts.Candidates) != 2 {
		t.Fatalf("expected 2 attempts, got %+v", attempts.Candidates)
	}
	expect(t, s.do(http.MethodGet, fmt.Sprintf("/getCandidatesForJob/%d", jobID), nil, rival), http.StatusNotFound, nil)

	startPath := fmt.Sprintf("/test/start/%d", testID)
	endPath := fmt.Sprintf("/test/end/%d", testID)

	expect(t, s.do(http.MethodGet, startPath, nil, intruder), http.StatusNotFound, nil)
	expect(t, s.do(http.MethodGet, startPath, nil, company), http.StatusForbidden, nil)

	var started testBody
	expect(t, s.do(http.MethodGet, startPath, nil, cand), http.StatusOK, &started)
	if started.Test.Status != models.TestStarted || started.Test.StartTime == nil {
		t.Fatalf("expected STARTED with start time, got %+v", started.Test)
	}

	var ended testBody
	expect(t, s.do(http.MethodGet, endPath, nil, cand), http.StatusOK, &ended)
	if ended.Test.Status != models.TestEnded || ended.Test.EndTime == nil {
		t.Fatalf("expected ENDED with end time, got %+v", ended.Test)
	}

	// an unknown question rolls the whole submission back
	expect(t, s.do(http.MethodPost, "/submitanswers", map[string]any{
		"test_id": testID,
		"answers": []map[string]any{
			{"question_id": q1, "selected_options": []string{"a", "c"}},
			{"question_id": 99999, "selected_options": []string{"a"}},
		},
	}, cand), http.StatusNotFound, nil)

	var first submitBody
	expect(t, s.do(http.MethodPost, "/submitanswers", map[string]any{
		"test_id": testID,
		"answers": []map[string]any{
			{"question_id": q1, "selected_options": []string{"a", "c"}},
			{"question_id": q2, "selected_options": []string{"yes"}},
		},
	}, cand), http.StatusOK, &first)
	if first.Score != 50 || first.Graded[fmt.Sprint(q1)] != 100 || first.Graded[fmt.Sprint(q2)] != 0 {
		t.Fatalf("unexpected grading %+v", first)
	}

	// resubmitting does not change the stored result
	var second submitBody
	expect(t, s.do(http.MethodPost, "/submitanswers", map[string]any{
		"test_id": testID,
		"answers": []map[string]any{
			{"question_id": q2, "selected_options": []string{"no"}},
		},
	}, cand), http.StatusOK, &second)
	if second.Score != 50 {
		t.Fatalf("expected score to stay 50, got %v", second.Score)
	}

	answers, err := s.repo.ListAnswers(t.Context(), testID, candID)
	if err != nil || len(answers) != 2 {
		t.Fatalf("expected 2 answer rows, got %d (%v)", len(answers), err)
	}

	expect(t, s.do(http.MethodGet, startPath, nil, cand), http.StatusConflict, nil)
	expect(t, s.do(http.MethodGet, endPath, nil, cand), http.StatusConflict, nil)

	var del struct {
		Deleted int64 `json:"deleted"`
	}
	expect(t, s.do(http.MethodPost, "/test/deleteCandidates", map[string]any{"ids": []int64{testID}}, rival), http.StatusOK, &del)
	if del.Deleted != 0 {
		t.Fatalf("foreign company unassigned %d tests", del.Deleted)
	}
	expect(t, s.do(http.MethodPost, "/test/deleteCandidates", map[string]any{"ids": []int64{testID}}, company), http.StatusOK, &del)
	if del.Deleted != 1 {
		t.Fatalf("expected 1 unassigned, got %d", del.Deleted)
	}
}

func TestSubmitAnswersValidation(t *testing.T) {
	s := newTestServer(t, nil)
	_, cand := s.candidate("cand@example.com")

	tests := []struct {
		name string
		body any
	}{
		{name: "MissingTest", body: map[string]any{"answers": []map[string]any{{"question_id": 1}}}},
		{name: "NoAnswers", body: map[string]any{"test_id": 1, "answers": []map[string]any{}}},
		{name: "BadQuestionID", body: map[string]any{"test_id": 1, "answers": []map[string]any{{"question_id": 0}}}},
		{name: "NotJSON", body: "{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expect(t, s.do(http.MethodPost, "/submitanswers", tt.body, cand), http.StatusBadRequest, nil)
		})
	}
}

func TestTestRepoFailureIsGeneric(t *testing.T) {
	issuer := auth.NewIssuer(testSecret, time.Hour, time.Minute)
	m := mock.NewMocks()
	m.Tests.Err = errors.New("database is locked")
	router := api.NewRouter(api.Deps{Accounts: m.Accounts, Tests: m.Tests, Queue: m.Queue, Issuer: issuer})

	token, err := issuer.IssueSession(models.RoleCandidate, 3, "cand@example.com", "Cand", nil)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	var body errorBody
	expect(t, serve(t, router, http.MethodPost, "/submitanswers", map[string]any{
		"test_id": 1,
		"answers": []map[string]any{{"question_id": 1, "selected_options": []string{"a"}}},
	}, token), http.StatusInternalServerError, &body)
	if strings.Contains(body.Error, "locked") {
		t.Fatalf("internal error leaked: %q", body.Error)
	}
	if m.Tests.Calls != 1 {
		t.Fatalf("expected one repository call, got %d", m.Tests.Calls)
	}
}
