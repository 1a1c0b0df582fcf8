package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/garnizeh/skilltrials/internal/models"
	"github.com/garnizeh/skilltrials/pkg/repository"
)

func TestAssignCandidatesIsIdempotent(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	owner := seedCompany(t, repo, "owner@acme.io")
	jobID := seedJob(t, repo, owner)
	candID := seedCandidate(t, repo, "known@example.com")

	n, err := repo.AssignCandidates(ctx, jobID, []string{"known@example.com", "pending@example.com"})
	if err != nil || n != 2 {
		t.Fatalf("AssignCandidates: %d, %v", n, err)
	}
	n, err = repo.AssignCandidates(ctx, jobID, []string{"known@example.com", "known@example.com"})
	if err != nil || n != 0 {
		t.Fatalf("reassignment should be a no-op: %d, %v", n, err)
	}

	attempts, err := repo.ListTestsByJob(ctx, jobID)
	if err != nil || len(attempts) != 2 {
		t.Fatalf("ListTestsByJob: %d, %v", len(attempts), err)
	}
	for _, a := range attempts {
		switch a.CandidateEmail {
		case "known@example.com":
			if a.CandidateID == nil || *a.CandidateID != candID || a.CandidateName != "Cand" {
				t.Fatalf("expected resolved candidate, got %#v", a)
			}
		case "pending@example.com":
			if a.CandidateID != nil || a.CandidateName != "" {
				t.Fatalf("expected unresolved candidate, got %#v", a)
			}
		default:
			t.Fatalf("unexpected email %q", a.CandidateEmail)
		}
		if a.Status != models.TestCreated {
			t.Fatalf("expected CREATED, got %s", a.Status)
		}
	}

	// signing up later links the pending row
	pendingID := seedCandidate(t, repo, "pending@example.com")
	if n, err := repo.ResolveCandidate(ctx, pendingID, "pending@example.com"); err != nil || n != 1 {
		t.Fatalf("ResolveCandidate: %d, %v", n, err)
	}

	mine, err := repo.ListTestsByCandidateEmail(ctx, "pending@example.com")
	if err != nil || len(mine) != 1 {
		t.Fatalf("ListTestsByCandidateEmail: %d, %v", len(mine), err)
	}
	if mine[0].JobTitle != "Go dev" || mine[0].CompanyName != "Acme" || mine[0].CompanyEmail != "owner@acme.io" {
		t.Fatalf("unexpected join: %#v", mine[0])
	}
}

func TestStartAndEndTransitions(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	owner := seedCompany(t, repo, "owner@acme.io")
	jobID := seedJob(t, repo, owner)
	candID := seedCandidate(t, repo, "c@example.com")
	qid := seedQuestion(t, repo, jobID, owner, []string{"a", "b"}, []string{"a"})
	if _, err := repo.AssignCandidates(ctx, jobID, []string{"c@example.com"}); err != nil {
		t.Fatalf("AssignCandidates: %v", err)
	}
	attempts, _ := repo.ListTestsByJob(ctx, jobID)
	testID := attempts[0].ID

	if err := repo.StartTest(ctx, testID, "someone@else.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another candidate, got %v", err)
	}
	if err := repo.StartTest(ctx, 9999, "c@example.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing test, got %v", err)
	}

	if err := repo.StartTest(ctx, testID, "c@example.com"); err != nil {
		t.Fatalf("StartTest: %v", err)
	}
	if err := repo.StartTest(ctx, testID, "c@example.com"); err != nil {
		t.Fatalf("restart should re-stamp: %v", err)
	}
	got, _ := repo.GetTest(ctx, testID)
	if got.Status != models.TestStarted || got.StartTime == nil {
		t.Fatalf("unexpected test after start: %#v", got)
	}

	if err := repo.EndTest(ctx, testID, "c@example.com"); err != nil {
		t.Fatalf("EndTest: %v", err)
	}
	if err := repo.StartTest(ctx, testID, "c@example.com"); !errors.Is(err, repository.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition starting an ended test, got %v", err)
	}
	got, _ = repo.GetTest(ctx, testID)
	if got.Status != models.TestEnded || got.EndTime == nil {
		t.Fatalf("unexpected test after end: %#v", got)
	}

	// an empty submission is rejected and leaves the test untouched
	if _, err := repo.SubmitAnswers(ctx, candID, testID, nil); !errors.Is(err, repository.ErrEmptySubmission) {
		t.Fatalf("expected ErrEmptySubmission, got %v", err)
	}
	if got, _ = repo.GetTest(ctx, testID); got.Status != models.TestEnded || got.Score != nil {
		t.Fatalf("empty submission changed the test: %#v", got)
	}

	if _, err := repo.SubmitAnswers(ctx, candID, testID, []models.AnswerSubmission{
		{QuestionID: qid, SelectedOptions: []string{"a"}},
	}); err != nil {
		t.Fatalf("SubmitAnswers: %v", err)
	}
	if err := repo.EndTest(ctx, testID, "c@example.com"); !errors.Is(err, repository.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition ending a submitted test, got %v", err)
	}
}

func TestAssignCandidatesRollsBackBatch(t *testing.T) {
	repo, d := setupRepo(t)
	ctx := context.Background()
	owner := seedCompany(t, repo, "owner@acme.io")
	jobID := seedJob(t, repo, owner)

	if _, err := d.Exec(ctx, `CREATE TRIGGER block_assignment BEFORE INSERT ON tests WHEN NEW.candidate_email = 'bad@example.com' BEGIN SELECT RAISE(ABORT, 'assignment blocked'); END;`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	n, err := repo.AssignCandidates(ctx, jobID, []string{"ok@example.com", "bad@example.com"})
	if err == nil {
		t.Fatalf("expected assignment to fail")
	}
	if n != 0 {
		t.Fatalf("expected no tests reported created, got %d", n)
	}
	attempts, err := repo.ListTestsByJob(ctx, jobID)
	if err != nil {
		t.Fatalf("ListTestsByJob: %v", err)
	}
	if len(attempts) != 0 {
		t.Fatalf("partial assignment kept %d rows", len(attempts))
	}
	if ok, err := repo.IsAssigned(ctx, jobID, "ok@example.com"); err != nil || ok {
		t.Fatalf("IsAssigned after rollback: %v, %v", ok, err)
	}

	if _, err := repo.AssignCandidates(ctx, jobID, []string{"ok@example.com"}); err != nil {
		t.Fatalf("AssignCandidates: %v", err)
	}
	if ok, err := repo.IsAssigned(ctx, jobID, "ok@example.com"); err != nil || !ok {
		t.Fatalf("IsAssigned: %v, %v", ok, err)
	}
}

func TestSubmitAnswersGradesAndAverages(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	owner := seedCompany(t, repo, "owner@acme.io")
	jobID := seedJob(t, repo, owner)
	candID := seedCandidate(t, repo, "c@example.com")
	q1 := seedQuestion(t, repo, jobID, owner, []string{"a", "b", "c"}, []string{"a", "c"})
	q2 := seedQuestion(t, repo, jobID, owner, []string{"a", "b", "c"}, []string{"b"})
	if _, err := repo.AssignCandidates(ctx, jobID, []string{"c@example.com"}); err != nil {
		t.Fatalf("AssignCandidates: %v", err)
	}
	attempts, _ := repo.ListTestsByJob(ctx, jobID)
	testID := attempts[0].ID

	res, err := repo.SubmitAnswers(ctx, candID, testID, []models.AnswerSubmission{
		{QuestionID: q1, SelectedOptions: []string{"a", "c"}},
		{QuestionID: q2, SelectedOptions: []string{"c"}},
	})
	if err != nil {
		t.Fatalf("SubmitAnswers: %v", err)
	}
	if res.Score != 50 || res.Graded[q1] != 100 || res.Graded[q2] != 0 {
		t.Fatalf("unexpected result: %#v", res)
	}

	got, _ := repo.GetTest(ctx, testID)
	if got.Status != models.TestSubmitted || got.Score == nil || *got.Score != 50 || got.EndTime == nil {
		t.Fatalf("unexpected test after submit: %#v", got)
	}

	// resubmitting a now-correct answer for q2 changes nothing
	res, err = repo.SubmitAnswers(ctx, candID, testID, []models.AnswerSubmission{
		{QuestionID: q2, SelectedOptions: []string{"b"}},
	})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if res.Score != 50 || res.Graded[q2] != 0 {
		t.Fatalf("resubmission changed the score: %#v", res)
	}
	answers, err := repo.ListAnswers(ctx, testID, candID)
	if err != nil || len(answers) != 2 {
		t.Fatalf("expected 2 answer rows, got %d, %v", len(answers), err)
	}
	if answers[1].AnswerText[0] != "c" {
		t.Fatalf("stored answer overwritten: %#v", answers[1])
	}
}

func TestSubmitAnswersRollsBackOnUnknownQuestion(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	owner := seedCompany(t, repo, "owner@acme.io")
	jobID := seedJob(t, repo, owner)
	otherJob := seedJob(t, repo, owner)
	candID := seedCandidate(t, repo, "c@example.com")
	q1 := seedQuestion(t, repo, jobID, owner, []string{"a", "b"}, []string{"a"})
	foreign := seedQuestion(t, repo, otherJob, owner, []string{"a", "b"}, []string{"a"})
	if _, err := repo.AssignCandidates(ctx, jobID, []string{"c@example.com"}); err != nil {
		t.Fatalf("AssignCandidates: %v", err)
	}
	attempts, _ := repo.ListTestsByJob(ctx, jobID)
	testID := attempts[0].ID

	for _, bad := range []int64{9999, foreign} {
		_, err := repo.SubmitAnswers(ctx, candID, testID, []models.AnswerSubmission{
			{QuestionID: q1, SelectedOptions: []string{"a"}},
			{QuestionID: bad, SelectedOptions: []string{"a"}},
		})
		if !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for question %d, got %v", bad, err)
		}
	}

	if answers, _ := repo.ListAnswers(ctx, testID, candID); len(answers) != 0 {
		t.Fatalf("expected no answers after rollback, got %d", len(answers))
	}
	got, _ := repo.GetTest(ctx, testID)
	if got.Status != models.TestCreated || got.Score != nil {
		t.Fatalf("test must stay untouched: %#v", got)
	}
}

func TestSubmitAnswersRejectsForeignCandidate(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	owner := seedCompany(t, repo, "owner@acme.io")
	jobID := seedJob(t, repo, owner)
	seedCandidate(t, repo, "c@example.com")
	intruder := seedCandidate(t, repo, "x@example.com")
	qid := seedQuestion(t, repo, jobID, owner, []string{"a", "b"}, []string{"a"})
	if _, err := repo.AssignCandidates(ctx, jobID, []string{"c@example.com"}); err != nil {
		t.Fatalf("AssignCandidates: %v", err)
	}
	attempts, _ := repo.ListTestsByJob(ctx, jobID)

	answers := []models.AnswerSubmission{{QuestionID: qid, SelectedOptions: []string{"a"}}}
	if _, err := repo.SubmitAnswers(ctx, intruder, attempts[0].ID, answers); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteTestsScopedToOwner(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	owner := seedCompany(t, repo, "owner@acme.io")
	other := seedCompany(t, repo, "other@acme.io")
	jobID := seedJob(t, repo, owner)
	if _, err := repo.AssignCandidates(ctx, jobID, []string{"a@example.com", "b@example.com"}); err != nil {
		t.Fatalf("AssignCandidates: %v", err)
	}
	attempts, _ := repo.ListTestsByJob(ctx, jobID)
	ids := []int64{attempts[0].ID, attempts[1].ID}

	if n, err := repo.DeleteTests(ctx, other, ids); err != nil || n != 0 {
		t.Fatalf("foreign delete: %d, %v", n, err)
	}
	if n, err := repo.DeleteTests(ctx, owner, ids[:1]); err != nil || n != 1 {
		t.Fatalf("DeleteTests: %d, %v", n, err)
	}
	if left, _ := repo.ListTestsByJob(ctx, jobID); len(left) != 1 {
		t.Fatalf("expected 1 test left, got %d", len(left))
	}
}
