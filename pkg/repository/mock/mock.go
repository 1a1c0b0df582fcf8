package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/garnizeh/skilltrials/internal/models"
	"github.com/garnizeh/skilltrials/pkg/repository"
)

// Test helpers and mocks
type Mocks struct {
	Accounts  *AccountRepo
	Tests     *TestRepo
	Schemas   *SchemaRepo
	Templates *TemplateRepo
	Queue     *QueueRepo
}

func NewMocks() *Mocks {
	return &Mocks{
		Accounts:  NewAccountRepo(),
		Tests:     &TestRepo{},
		Schemas:   NewSchemaRepo(),
		Templates: NewTemplateRepo(),
		Queue:     &QueueRepo{},
	}
}

var (
	_ repository.AccountRepo  = (*AccountRepo)(nil)
	_ repository.TestRepo     = (*TestRepo)(nil)
	_ repository.SchemaRepo   = (*SchemaRepo)(nil)
	_ repository.TemplateRepo = (*TemplateRepo)(nil)
	_ repository.QueueRepo    = (*QueueRepo)(nil)
)

// AccountRepo keeps accounts in memory. Err, when set, is returned by every call.
type AccountRepo struct {
	mu          sync.Mutex
	companies   map[string]*models.Company
	candidates  map[string]*models.Candidate
	resetTokens map[string]string
	nextID      int64
	Err         error
}

func NewAccountRepo() *AccountRepo {
	return &AccountRepo{
		companies:   map[string]*models.Company{},
		candidates:  map[string]*models.Candidate{},
		resetTokens: map[string]string{},
	}
}

func (m *AccountRepo) CreateCompany(ctx context.Context, c *models.Company) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	if _, ok := m.companies[c.Email]; ok {
		return 0, repository.ErrDuplicateEmail
	}
	m.nextID++
	stored := *c
	stored.ID = m.nextID
	m.companies[c.Email] = &stored
	return stored.ID, nil
}

func (m *AccountRepo) CreateCandidate(ctx context.Context, c *models.Candidate) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	if _, ok := m.candidates[c.Email]; ok {
		return 0, repository.ErrDuplicateEmail
	}
	m.nextID++
	stored := *c
	stored.ID = m.nextID
	m.candidates[c.Email] = &stored
	return stored.ID, nil
}

func (m *AccountRepo) GetCompanyByEmail(ctx context.Context, email string) (*models.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if c, ok := m.companies[email]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (m *AccountRepo) GetCandidateByEmail(ctx context.Context, email string) (*models.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if c, ok := m.candidates[email]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (m *AccountRepo) exists(role models.Role, email string) bool {
	switch role {
	case models.RoleCompany:
		_, ok := m.companies[email]
		return ok
	case models.RoleCandidate:
		_, ok := m.candidates[email]
		return ok
	}
	return false
}

func (m *AccountRepo) SetResetToken(ctx context.Context, role models.Role, email, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	if !m.exists(role, email) {
		return false, nil
	}
	m.resetTokens[role.String()+"/"+email] = token
	return true, nil
}

// ResetToken returns the token stored for the account, if any.
func (m *AccountRepo) ResetToken(role models.Role, email string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.resetTokens[role.String()+"/"+email]
	return t, ok
}

func (m *AccountRepo) ResetPassword(ctx context.Context, role models.Role, email, token, passwordHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	key := role.String() + "/" + email
	if stored, ok := m.resetTokens[key]; !ok || stored != token {
		return false, nil
	}
	delete(m.resetTokens, key)
	switch role {
	case models.RoleCompany:
		m.companies[email].PasswordHash = passwordHash
	case models.RoleCandidate:
		m.candidates[email].PasswordHash = passwordHash
	}
	return true, nil
}

// TestRepo returns Err from every call and records how many calls were made.
type TestRepo struct {
	mu    sync.Mutex
	Err   error
	Calls int
}

func (m *TestRepo) call() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	return m.Err
}

func (m *TestRepo) AssignCandidates(ctx context.Context, jobID int64, emails []string) (int64, error) {
	if err := m.call(); err != nil {
		return 0, err
	}
	return int64(len(emails)), nil
}

func (m *TestRepo) ResolveCandidate(ctx context.Context, candidateID int64, email string) (int64, error) {
	return 0, m.call()
}

func (m *TestRepo) GetTest(ctx context.Context, id int64) (*models.Test, error) {
	return nil, m.call()
}

func (m *TestRepo) IsAssigned(ctx context.Context, jobID int64, email string) (bool, error) {
	return false, m.call()
}

func (m *TestRepo) ListTestsByCandidateEmail(ctx context.Context, email string) ([]models.CandidateTest, error) {
	return []models.CandidateTest{}, m.call()
}

func (m *TestRepo) ListTestsByJob(ctx context.Context, jobID int64) ([]models.JobAttempt, error) {
	return []models.JobAttempt{}, m.call()
}

func (m *TestRepo) DeleteTests(ctx context.Context, companyID int64, ids []int64) (int64, error) {
	return 0, m.call()
}

func (m *TestRepo) StartTest(ctx context.Context, id int64, candidateEmail string) error {
	return m.call()
}

func (m *TestRepo) EndTest(ctx context.Context, id int64, candidateEmail string) error {
	return m.call()
}

func (m *TestRepo) SubmitAnswers(ctx context.Context, candidateID, testID int64, answers []models.AnswerSubmission) (*models.SubmissionResult, error) {
	if err := m.call(); err != nil {
		return nil, err
	}
	if len(answers) == 0 {
		return nil, repository.ErrEmptySubmission
	}
	return &models.SubmissionResult{TestID: testID, Graded: map[int64]float64{}}, nil
}

func (m *TestRepo) ListAnswers(ctx context.Context, testID, candidateID int64) ([]models.Answer, error) {
	return []models.Answer{}, m.call()
}

// SchemaRepo keeps schemas in memory.
type SchemaRepo struct {
	mu      sync.Mutex
	schemas map[string]models.Schema
	ListErr error
}

func NewSchemaRepo() *SchemaRepo {
	return &SchemaRepo{schemas: map[string]models.Schema{}}
}

func (m *SchemaRepo) CreateSchema(ctx context.Context, version, description, schemaJSON string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := int64(len(m.schemas) + 1)
	if s, ok := m.schemas[version]; ok {
		id = s.ID
	}
	m.schemas[version] = models.Schema{ID: id, Version: version, Description: description, SchemaJSON: schemaJSON}
	return id, nil
}

func (m *SchemaRepo) GetSchemaByVersion(ctx context.Context, version string) (*models.Schema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.schemas[version]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *SchemaRepo) ListSchemas(ctx context.Context) ([]models.Schema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]models.Schema, 0, len(m.schemas))
	for _, s := range m.schemas {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (m *SchemaRepo) DeleteSchema(ctx context.Context, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.schemas, version)
	return nil
}

// TemplateRepo keeps prompt templates in memory.
type TemplateRepo struct {
	mu        sync.Mutex
	templates map[string]models.Template
}

func NewTemplateRepo() *TemplateRepo {
	return &TemplateRepo{templates: map[string]models.Template{}}
}

func (m *TemplateRepo) CreateTemplate(ctx context.Context, name, version, templateText string, schemaVersion *string, metadata *string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := int64(len(m.templates) + 1)
	m.templates[name+"/"+version] = models.Template{ID: id, Name: name, Version: version, TemplateTxt: templateText, SchemaVer: schemaVersion, Metadata: metadata}
	return id, nil
}

func (m *TemplateRepo) GetTemplate(ctx context.Context, name, version string) (*models.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.templates[name+"/"+version]; ok {
		return &t, nil
	}
	return nil, nil
}

func (m *TemplateRepo) ListTemplates(ctx context.Context) ([]models.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Template, 0, len(m.templates))
	for _, t := range m.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name+out[i].Version < out[j].Name+out[j].Version })
	return out, nil
}

func (m *TemplateRepo) DeleteTemplate(ctx context.Context, name, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.templates, name+"/"+version)
	return nil
}

// QueueRepo records enqueued jobs in memory.
type QueueRepo struct {
	mu         sync.Mutex
	Jobs       []models.BackgroundJob
	Dead       []models.BackgroundJob
	EnqueueErr error
}

func (m *QueueRepo) EnqueueJob(ctx context.Context, j *models.BackgroundJob) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EnqueueErr != nil {
		return 0, m.EnqueueErr
	}
	j.ID = int64(len(m.Jobs) + 1)
	j.Status = "queued"
	m.Jobs = append(m.Jobs, *j)
	return j.ID, nil
}

func (m *QueueRepo) ClaimNextJob(ctx context.Context) (*models.BackgroundJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Jobs {
		if m.Jobs[i].Status == "queued" {
			m.Jobs[i].Status = "running"
			j := m.Jobs[i]
			return &j, nil
		}
	}
	return nil, nil
}

func (m *QueueRepo) UpdateBackgroundJob(ctx context.Context, j *models.BackgroundJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Jobs {
		if m.Jobs[i].ID == j.ID {
			m.Jobs[i] = *j
		}
	}
	return nil
}

func (m *QueueRepo) MoveToDeadLetter(ctx context.Context, j *models.BackgroundJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Dead = append(m.Dead, *j)
	for i := range m.Jobs {
		if m.Jobs[i].ID == j.ID {
			m.Jobs = append(m.Jobs[:i], m.Jobs[i+1:]...)
			break
		}
	}
	return nil
}

func (m *QueueRepo) CountJobs(ctx context.Context, typ, status string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	list := m.Jobs
	if status == "dead" {
		list, status = m.Dead, ""
	}
	for _, j := range list {
		if (typ == "" || j.Type == typ) && (status == "" || j.Status == status) {
			n++
		}
	}
	return n, nil
}

// Enqueued returns a copy of the recorded jobs.
func (m *QueueRepo) Enqueued() []models.BackgroundJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.BackgroundJob(nil), m.Jobs...)
}
