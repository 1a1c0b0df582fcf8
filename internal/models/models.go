package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role discriminates the two account kinds. The numeric values are stored in
// support_tickets.user_type and carried in token claims.
type Role int

const (
	RoleCompany   Role = 1
	RoleCandidate Role = 2
)

func (r Role) String() string {
	switch r {
	case RoleCompany:
		return "company"
	case RoleCandidate:
		return "candidate"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleCompany || r == RoleCandidate
}

// ParseRole accepts "company"/"candidate" in any case, or the numeric form.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "company", "1":
		return RoleCompany, nil
	case "candidate", "2":
		return RoleCandidate, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

type Company struct {
	ID           int64  `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password"`
	Website      string `json:"website" db:"website"`
	Phone        string `json:"phone" db:"phone"`
	CompanyName  string `json:"company_name" db:"company_name"`
	Created      int64  `json:"created" db:"created"`
}

type Candidate struct {
	ID           int64  `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password"`
	Phone        string `json:"phone" db:"phone"`
	Skills       string `json:"skills" db:"skills"`
	Experience   string `json:"experience" db:"experience"`
	Location     string `json:"location" db:"location"`
	Created      int64  `json:"created" db:"created"`
}

type Job struct {
	ID          int64  `json:"id" db:"id"`
	Title       string `json:"title" db:"title"`
	Description string `json:"description" db:"description"`
	CompanyID   int64  `json:"company_id" db:"company_id"`
	CreatedAt   int64  `json:"created_at" db:"created_at"`
}

type Question struct {
	ID           int64    `json:"id" db:"id"`
	JobID        int64    `json:"job_id" db:"job_id"`
	QuestionText string   `json:"question_text" db:"question_text"`
	QuestionType string   `json:"question_type" db:"question_type"`
	CompanyID    int64    `json:"company_id" db:"company_id"`
	Difficulty   string   `json:"difficulty" db:"difficulty"`
	CreatedBy    string   `json:"created_by" db:"created_by"`
	Options      []string `json:"options" db:"options"`
	Answers      []string `json:"answers" db:"answers"`
	Created      int64    `json:"created" db:"created"`
}

// TestStatus is the lifecycle state of a Test.
type TestStatus string

const (
	TestCreated   TestStatus = "CREATED"
	TestStarted   TestStatus = "STARTED"
	TestEnded     TestStatus = "ENDED"
	TestSubmitted TestStatus = "SUBMITTED"
)

// Test is one candidate's attempt at one job's question set.
type Test struct {
	ID             int64      `json:"id" db:"id"`
	JobPostID      int64      `json:"job_post_id" db:"job_post_id"`
	CandidateID    *int64     `json:"candidate_id" db:"candidate_id"`
	CandidateEmail string     `json:"candidate_email" db:"candidate_email"`
	Status         TestStatus `json:"status" db:"status"`
	Score          *float64   `json:"score" db:"score"`
	StartTime      *int64     `json:"start_time" db:"start_time"`
	EndTime        *int64     `json:"end_time" db:"end_time"`
	CreatedAt      int64      `json:"created_at" db:"created_at"`
}

// CandidateTest is a Test joined with its job and the owning company, as a
// candidate sees it.
type CandidateTest struct {
	Test
	JobTitle       string `json:"job_title"`
	JobDescription string `json:"job_description"`
	CompanyName    string `json:"company_name"`
	CompanyEmail   string `json:"company_email"`
}

// JobAttempt is a Test left-joined with the candidate profile. Profile fields
// stay empty while candidate_id is unresolved.
type JobAttempt struct {
	Test
	CandidateName       string `json:"candidate_name"`
	CandidatePhone      string `json:"candidate_phone"`
	CandidateSkills     string `json:"candidate_skills"`
	CandidateExperience string `json:"candidate_experience"`
	CandidateLocation   string `json:"candidate_location"`
}

type Answer struct {
	ID          int64    `json:"id" db:"id"`
	CandidateID int64    `json:"candidate_id" db:"candidate_id"`
	QuestionID  int64    `json:"question_id" db:"question_id"`
	TestID      int64    `json:"test_id" db:"test_id"`
	AnswerText  []string `json:"answer_text" db:"answer_text"`
	Score       float64  `json:"score" db:"score"`
	Created     int64    `json:"created" db:"created"`
}

// AnswerSubmission is one (question, selected options) pair of a submission.
type AnswerSubmission struct {
	QuestionID      int64    `json:"question_id" validate:"required,gt=0"`
	SelectedOptions []string `json:"selected_options"`
}

// SubmissionResult reports the graded outcome of a submission.
type SubmissionResult struct {
	TestID int64             `json:"test_id"`
	Score  float64           `json:"score"`
	Graded map[int64]float64 `json:"graded"`
}

type SupportTicket struct {
	ID          int64  `json:"id" db:"id"`
	UserID      int64  `json:"user_id" db:"user_id"`
	Subject     string `json:"subject" db:"subject"`
	Description string `json:"description" db:"description"`
	Status      string `json:"status" db:"status"`
	UserType    Role   `json:"user_type" db:"user_type"`
	Created     int64  `json:"created" db:"created"`
}

type Schema struct {
	ID          int64  `json:"id" db:"id"`
	Version     string `json:"version" db:"version"`
	Description string `json:"description,omitempty" db:"description"`
	SchemaJSON  string `json:"schema_json" db:"schema_json"`
	Created     int64  `json:"created" db:"created"`
	Updated     int64  `json:"updated" db:"updated"`
}

type Template struct {
	ID          int64   `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Version     string  `json:"version" db:"version"`
	TemplateTxt string  `json:"template_text" db:"template_text"`
	SchemaVer   *string `json:"schema_version,omitempty" db:"schema_version"`
	Metadata    *string `json:"metadata,omitempty" db:"metadata"`
	Created     int64   `json:"created" db:"created"`
	Updated     int64   `json:"updated" db:"updated"`
}

type BackgroundJob struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Priority    int             `json:"priority"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	NextTryAt   *time.Time      `json:"next_try_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Created     time.Time       `json:"created"`
	Updated     time.Time       `json:"updated"`
}
