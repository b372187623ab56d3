package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riegen-io/riegen/internal/knowledge"
	"github.com/riegen-io/riegen/internal/llm"
	"github.com/riegen-io/riegen/internal/llm/mock"
	"github.com/riegen-io/riegen/internal/store"
	"github.com/riegen-io/riegen/pkg/models"
)

type statusUpdate struct {
	Status string
}

type mockStore struct {
	mu      sync.Mutex
	reports map[uuid.UUID]*models.Report
	updates []statusUpdate

	updateStatusErr error
}

func newMockStore() *mockStore {
	return &mockStore{reports: make(map[uuid.UUID]*models.Report)}
}

func (s *mockStore) Ping(_ context.Context) error { return nil }

func (s *mockStore) CreateReport(_ context.Context, report *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.ID] = report
	return nil
}

func (s *mockStore) GetReport(_ context.Context, id uuid.UUID) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *mockStore) BeginGeneration(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return false, nil
	}
	if r.Status == models.ReportStatusGenerating || r.Status == models.ReportStatusCompleted {
		return false, nil
	}
	r.Status = models.ReportStatusGenerating
	return true, nil
}

func (s *mockStore) UpdateReportStatus(_ context.Context, id uuid.UUID, status string, opts ...store.ReportUpdateOption) error {
	if s.updateStatusErr != nil {
		return s.updateStatusErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return store.ErrNotFound
	}
	store.ApplyReportUpdate(r, status, opts...)
	s.updates = append(s.updates, statusUpdate{Status: status})
	return nil
}

func (s *mockStore) report(t *testing.T, id uuid.UUID) *models.Report {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	require.True(t, ok)
	cp := *r
	return &cp
}

type mockCache struct {
	mu       sync.Mutex
	statuses map[string]string
}

func newMockCache() *mockCache {
	return &mockCache{statuses: make(map[string]string)}
}

func (c *mockCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *mockCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *mockCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *mockCache) Ping(_ context.Context) error                                     { return nil }
func (c *mockCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 0, nil
}

func (c *mockCache) SetReportStatus(_ context.Context, reportID uuid.UUID, status string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[reportID.String()] = status
	return nil
}

func (c *mockCache) GetReportStatus(_ context.Context, reportID uuid.UUID) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.statuses[reportID.String()]
	return s, ok, nil
}

// --- canned model output ---

const profilePayload = `{
	"samenvatting": "Dit rapport beschrijft de belangrijkste arbeidsrisico's van het bedrijf en de bijbehorende maatregelen.",
	"bedrijfsprofiel": {"naam": "NachtWacht BV", "branche": "beveiliging", "aantalMedewerkers": 12, "beschrijving": "Beveiligingsbedrijf met nachtdiensten."}
}`

func riskPayload(count, offset int) string {
	items := make([]string, count)
	for i := 0; i < count; i++ {
		items[i] = fmt.Sprintf(`{
			"id": "risico_%d",
			"categorie": "Categorie %d",
			"prioriteit": "hoog",
			"risicoScore": 12,
			"beschrijving": "Omschrijving van het risico.",
			"wettelijkKader": "Arbowet art. 3",
			"gevaren": ["gevaar"],
			"maatregelen": [{"maatregel": "Tref een maatregel.", "termijn": "kort"}]
		}`, offset+i+1, offset+i+1)
	}
	return "[" + strings.Join(items, ",") + "]"
}

func actionPlanPayload(count int) string {
	items := make([]string, count)
	for i := 0; i < count; i++ {
		items[i] = fmt.Sprintf(`{
			"nummer": %d, "maatregel": "Actie %d", "risico": "risico_%d",
			"prioriteit": "hoog", "termijn": "kort",
			"verantwoordelijke": "directie", "deadline": "Q3", "status": "open"
		}`, i+1, i+1, i+1)
	}
	return "[" + strings.Join(items, ",") + "]"
}

func legalPayload(count int) string {
	items := make([]string, count)
	for i := 0; i < count; i++ {
		items[i] = fmt.Sprintf(`{
			"verplichting": "Verplichting %d", "wet": "Arbowet art. %d",
			"status": "aandachtspunt", "toelichting": "Toelichting."
		}`, i+1, i+1)
	}
	return "[" + strings.Join(items, ",") + "]"
}

// stagedClient answers each call in pipeline order from a fixed script.
func stagedClient(t *testing.T, responses []string) *mock.Client {
	t.Helper()
	var mu sync.Mutex
	call := 0
	return &mock.Client{
		CompleteFunc: func(_ context.Context, _ llm.CompletionRequest) (*llm.Completion, error) {
			mu.Lock()
			defer mu.Unlock()
			require.Less(t, call, len(responses), "more model calls than scripted responses")
			text := responses[call]
			call++
			return &llm.Completion{Text: text, PromptTokens: 100, CompletionTokens: 200}, nil
		},
	}
}

func testReport(tier models.Tier) *models.Report {
	return &models.Report{
		ID:          uuid.New(),
		CompanyName: "NachtWacht BV",
		Branch:      "beveiliging",
		Tier:        tier,
		Status:      models.ReportStatusPending,
		Intake: models.IntakeRecord{
			CompanyName:     "NachtWacht BV",
			Branch:          "beveiliging",
			EmployeeCount:   12,
			LocationCount:   1,
			FirstAidPresent: true,
			Workplace: models.WorkplaceConditions{
				NightWork: true,
				LoneWork:  true,
			},
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func newTestService(st store.Store, client llm.Client) (*Service, *mockCache) {
	cache := newMockCache()
	return NewService(st, cache, knowledge.NewFileLoader("testdata/none"), client, false), cache
}

func TestGenerateFreeTier(t *testing.T) {
	st := newMockStore()
	report := testReport(models.TierFree)
	require.NoError(t, st.CreateReport(context.Background(), report))

	client := stagedClient(t, []string{profilePayload, riskPayload(4, 0)})
	svc, cache := newTestService(st, client)

	doc, err := svc.Generate(context.Background(), report.ID)
	require.NoError(t, err)

	// Free tier: one profile call and one risk batch, nothing else.
	assert.Equal(t, 2, client.Calls())
	assert.Len(t, doc.RiskItems, 4)
	assert.Empty(t, doc.ActionPlan)
	assert.Empty(t, doc.LegalObligations)

	stored := st.report(t, report.ID)
	assert.Equal(t, models.ReportStatusCompleted, stored.Status)
	require.NotNil(t, stored.Document)
	assert.Equal(t, doc.Summary, stored.Document.Summary)
	require.NotNil(t, stored.Summary)
	assert.Equal(t, doc.Summary, *stored.Summary)
	assert.Equal(t, 2*300, stored.TokensUsed)

	status, ok, err := cache.GetReportStatus(context.Background(), report.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.ReportStatusCompleted, status)
}

func TestGenerateEnterpriseTier(t *testing.T) {
	st := newMockStore()
	report := testReport(models.TierEnterprise)
	require.NoError(t, st.CreateReport(context.Background(), report))

	client := stagedClient(t, []string{
		profilePayload,
		riskPayload(4, 0),
		riskPayload(4, 4),
		riskPayload(2, 8),
		actionPlanPayload(8),
		legalPayload(4),
	})
	svc, _ := newTestService(st, client)

	doc, err := svc.Generate(context.Background(), report.ID)
	require.NoError(t, err)

	assert.Equal(t, 6, client.Calls())
	assert.Len(t, doc.RiskItems, 10)
	assert.Len(t, doc.ActionPlan, 8)
	assert.Len(t, doc.LegalObligations, 4)

	// Batch results land in batch order.
	assert.Equal(t, "risico_1", doc.RiskItems[0].ID)
	assert.Equal(t, "risico_10", doc.RiskItems[9].ID)

	stored := st.report(t, report.ID)
	assert.Equal(t, models.ReportStatusCompleted, stored.Status)
}

func TestGenerateCompletedShortCircuits(t *testing.T) {
	st := newMockStore()
	report := testReport(models.TierFree)
	report.Status = models.ReportStatusCompleted
	report.Document = &models.GeneratedDocument{Summary: "bestaand rapport"}
	require.NoError(t, st.CreateReport(context.Background(), report))

	client := &mock.Client{}
	svc, _ := newTestService(st, client)

	doc, err := svc.Generate(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, "bestaand rapport", doc.Summary)

	// Re-invocation of a finished report performs no model calls and no
	// status writes.
	assert.Equal(t, 0, client.Calls())
	st.mu.Lock()
	assert.Empty(t, st.updates)
	st.mu.Unlock()
}

func TestGenerateAlreadyInProgress(t *testing.T) {
	st := newMockStore()
	report := testReport(models.TierFree)
	report.Status = models.ReportStatusGenerating
	require.NoError(t, st.CreateReport(context.Background(), report))

	client := &mock.Client{}
	svc, _ := newTestService(st, client)

	_, err := svc.Generate(context.Background(), report.ID)
	assert.ErrorIs(t, err, ErrAlreadyGenerating)
	assert.Equal(t, 0, client.Calls())
}

func TestGenerateFailedReportIsRetryable(t *testing.T) {
	st := newMockStore()
	report := testReport(models.TierFree)
	report.Status = models.ReportStatusFailed
	require.NoError(t, st.CreateReport(context.Background(), report))

	client := stagedClient(t, []string{profilePayload, riskPayload(4, 0)})
	svc, _ := newTestService(st, client)

	_, err := svc.Generate(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusCompleted, st.report(t, report.ID).Status)
}

func TestGenerateNotFound(t *testing.T) {
	st := newMockStore()
	svc, _ := newTestService(st, &mock.Client{})

	_, err := svc.Generate(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGenerateConformanceFailureKeepsDocument(t *testing.T) {
	st := newMockStore()
	report := testReport(models.TierEnterprise)
	require.NoError(t, st.CreateReport(context.Background(), report))

	// Legal obligations stage under-delivers: two items where four are
	// required for the top tier.
	client := stagedClient(t, []string{
		profilePayload,
		riskPayload(4, 0),
		riskPayload(4, 4),
		riskPayload(2, 8),
		actionPlanPayload(8),
		legalPayload(2),
	})
	svc, cache := newTestService(st, client)

	_, err := svc.Generate(context.Background(), report.ID)
	var confErr *ConformanceError
	require.ErrorAs(t, err, &confErr)
	assert.NotEmpty(t, confErr.Violations)

	stored := st.report(t, report.ID)
	assert.Equal(t, models.ReportStatusFailed, stored.Status)
	require.NotNil(t, stored.Document, "invalid document must be kept for review")
	assert.Len(t, stored.Document.LegalObligations, 2)
	require.NotNil(t, stored.Summary)
	assert.Contains(t, *stored.Summary, "wettelijke verplichtingen")
	require.NotNil(t, stored.ErrorMessage)

	status, ok, _ := cache.GetReportStatus(context.Background(), report.ID)
	require.True(t, ok)
	assert.Equal(t, models.ReportStatusFailed, status)
}

func TestGenerateUpstreamFailure(t *testing.T) {
	st := newMockStore()
	report := testReport(models.TierBasic)
	require.NoError(t, st.CreateReport(context.Background(), report))

	upstreamErr := &llm.UpstreamError{StatusCode: 429, Body: "rate limited"}
	var mu sync.Mutex
	call := 0
	client := &mock.Client{
		CompleteFunc: func(_ context.Context, _ llm.CompletionRequest) (*llm.Completion, error) {
			mu.Lock()
			defer mu.Unlock()
			call++
			if call == 1 {
				return &llm.Completion{Text: profilePayload, PromptTokens: 100, CompletionTokens: 200}, nil
			}
			return nil, upstreamErr
		},
	}
	svc, _ := newTestService(st, client)

	_, err := svc.Generate(context.Background(), report.ID)
	var ue *llm.UpstreamError
	require.ErrorAs(t, err, &ue)

	// No retries: the failing batch is attempted exactly once and the
	// pipeline aborts.
	assert.Equal(t, 2, client.Calls())

	stored := st.report(t, report.ID)
	assert.Equal(t, models.ReportStatusFailed, stored.Status)
	assert.Nil(t, stored.Document)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "risk batch 1")
	assert.Equal(t, 300, stored.TokensUsed, "usage up to the failure is still recorded")
}

func TestGenerateRepairsDamagedModelOutput(t *testing.T) {
	st := newMockStore()
	report := testReport(models.TierFree)
	require.NoError(t, st.CreateReport(context.Background(), report))

	// Fenced profile output and a truncated risk array both survive repair.
	truncated := riskPayload(4, 0)
	truncated = truncated[:len(truncated)-30]
	client := stagedClient(t, []string{
		"```json\n" + profilePayload + "\n```",
		truncated,
	})
	svc, _ := newTestService(st, client)

	doc, err := svc.Generate(context.Background(), report.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, doc.RiskItems)
	assert.Equal(t, models.ReportStatusCompleted, st.report(t, report.ID).Status)
}

func TestGenerateDocumentRoundTrips(t *testing.T) {
	st := newMockStore()
	report := testReport(models.TierFree)
	require.NoError(t, st.CreateReport(context.Background(), report))

	client := stagedClient(t, []string{profilePayload, riskPayload(4, 0)})
	svc, _ := newTestService(st, client)

	doc, err := svc.Generate(context.Background(), report.ID)
	require.NoError(t, err)

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"samenvatting"`)
	assert.Contains(t, string(data), `"risicos"`)
	assert.Contains(t, string(data), `"bedrijfsprofiel"`)
}

func TestTriggerRunsInBackground(t *testing.T) {
	st := newMockStore()
	report := testReport(models.TierFree)
	require.NoError(t, st.CreateReport(context.Background(), report))

	client := stagedClient(t, []string{profilePayload, riskPayload(4, 0)})
	svc, _ := newTestService(st, client)

	svc.Trigger(report.ID)
	waitForStatus(t, st, report.ID, models.ReportStatusCompleted)
}

func TestTriggerRecoversFromPanic(t *testing.T) {
	st := newMockStore()
	report := testReport(models.TierFree)
	require.NoError(t, st.CreateReport(context.Background(), report))

	client := &mock.Client{
		CompleteFunc: func(_ context.Context, _ llm.CompletionRequest) (*llm.Completion, error) {
			panic("model client blew up")
		},
	}
	svc, _ := newTestService(st, client)

	svc.Trigger(report.ID)
	waitForStatus(t, st, report.ID, models.ReportStatusFailed)

	stored := st.report(t, report.ID)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "panic")
}

func TestGeneratePersistFailureSurfaced(t *testing.T) {
	st := newMockStore()
	report := testReport(models.TierFree)
	require.NoError(t, st.CreateReport(context.Background(), report))
	st.updateStatusErr = errors.New("connection reset")

	client := stagedClient(t, []string{profilePayload, riskPayload(4, 0)})
	svc, _ := newTestService(st, client)

	_, err := svc.Generate(context.Background(), report.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persisting completed report")
}

func waitForStatus(t *testing.T, s *mockStore, id uuid.UUID, want string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		s.mu.Lock()
		r := s.reports[id]
		status := ""
		if r != nil {
			status = r.Status
		}
		s.mu.Unlock()
		if status == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for status %s, last seen %s", want, status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
