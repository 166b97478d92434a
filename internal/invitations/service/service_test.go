package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "ideamarket/internal/common/errors"
	"ideamarket/internal/common/logger"
	"ideamarket/internal/invitations/mailer"
	"ideamarket/internal/invitations/store"
	"ideamarket/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	fail map[string]error
}

func (f *fakeMailer) Send(_ context.Context, msg mailer.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[msg.To]; err != nil {
		return "", err
	}
	f.sent = append(f.sent, msg)
	return fmt.Sprintf("<%d@fake.smtp>", len(f.sent)), nil
}

func (f *fakeMailer) messages() []mailer.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mailer.Message(nil), f.sent...)
}

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) Publish(ctx context.Context, evt Event) error {
	return m.Called(ctx, evt).Error(0)
}

// stepClock advances one minute per reading.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
	return c.t
}

type fixture struct {
	svc    *Service
	store  *store.MemoryStore
	mailer *fakeMailer
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	cfg := DefaultConfig()
	cfg.FromEmail = "invites@ideamarket.test"
	if mutate != nil {
		mutate(cfg)
	}

	st := store.NewMemoryStore()
	m := &fakeMailer{fail: map[string]error{}}
	clock := &stepClock{t: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}

	n := 0
	svc, err := New(cfg, Dependencies{
		Store:  st,
		Mailer: m,
		Logger: logger.NewTestLogger(t),
		Now:    clock.Now,
		NewID: func() string {
			n++
			return fmt.Sprintf("inv-%d", n)
		},
	})
	require.NoError(t, err)
	return &fixture{svc: svc, store: st, mailer: m}
}

func sampleProject() *models.Project {
	return &models.Project{ID: "p1", Title: "Marketplace MVP", Category: "web", Deadline: "2026-07-01"}
}

func candidates() []models.RankedSeller {
	return []models.RankedSeller{
		{SellerID: "s1", Name: "Ann", Email: "ann@example.com", Score: 1, Overlap: []string{"go"}},
		{SellerID: "s2", Name: "Bo", Email: "", Score: 5},
		{SellerID: "s3", Name: "Cy", Email: "cy@example.com", Score: 3, Overlap: []string{"go", "sql"}},
		{SellerID: "s4", Name: "Di", Email: "di@example.com", Score: 3},
	}
}

func TestCreateInvites_SendsToTopCandidates(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.TopN = 2 })

	res, err := f.svc.CreateInvites(context.Background(), sampleProject(), candidates(), false)
	require.NoError(t, err)

	require.Len(t, res.Invites, 2)
	assert.Equal(t, "s3", res.Invites[0].SellerID, "highest score with an email")
	assert.Equal(t, "s4", res.Invites[1].SellerID, "tie keeps input order")
	assert.Equal(t, 2, res.Sent)
	assert.False(t, res.Draft)

	for _, inv := range res.Invites {
		assert.Equal(t, models.StatusSent, inv.Status)
		assert.NotEmpty(t, inv.MessageID)
		assert.Equal(t, "p1", inv.ProjectID)
		assert.Equal(t, "Marketplace MVP", inv.ProjectTitle)
	}
	assert.Equal(t, []string{}, res.Invites[1].Overlap)

	msgs := f.mailer.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "cy@example.com", msgs[0].To)
	assert.Equal(t, "invites@ideamarket.test", msgs[0].From)
	assert.Equal(t, "[IdeaMarket] Marketplace MVP — Invitation to propose", msgs[0].Subject)
	assert.Contains(t, msgs[0].Text, "Accept: http://localhost:4000/api/invite/inv-1/accept")
	assert.Contains(t, msgs[0].Text, "Reject: http://localhost:4000/api/invite/inv-1/reject")
	assert.Contains(t, msgs[0].Text, "Overlap skills: go, sql")

	stored, err := f.svc.ByProject(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "inv-2", stored[0].ID, "each pick is prepended")
	assert.Equal(t, "inv-1", stored[1].ID)
}

func TestCreateInvites_NeverExceedsTopN(t *testing.T) {
	f := newFixture(t, nil)
	ranked := make([]models.RankedSeller, 0, 12)
	for i := 0; i < 12; i++ {
		ranked = append(ranked, models.RankedSeller{SellerID: fmt.Sprintf("s%d", i), Email: fmt.Sprintf("s%d@example.com", i), Score: i % 4})
	}

	res, err := f.svc.CreateInvites(context.Background(), sampleProject(), ranked, true)
	require.NoError(t, err)
	assert.Len(t, res.Invites, 5)
	for _, inv := range res.Invites {
		assert.NotEmpty(t, inv.SellerEmail)
	}
}

func TestCreateInvites_Draft(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.CreateInvites(context.Background(), sampleProject(), candidates(), true)
	require.NoError(t, err)

	assert.True(t, res.Draft)
	assert.Equal(t, 0, res.Sent)
	require.Len(t, res.Invites, 3)
	for _, inv := range res.Invites {
		assert.Equal(t, models.StatusDraft, inv.Status)
		assert.Empty(t, inv.MessageID)
	}
	assert.Empty(t, f.mailer.messages())
}

func TestCreateInvites_MailFailureMarksInvite(t *testing.T) {
	f := newFixture(t, nil)
	f.mailer.fail["cy@example.com"] = errors.New("550 mailbox unavailable")

	res, err := f.svc.CreateInvites(context.Background(), sampleProject(), candidates(), false)
	require.NoError(t, err)

	require.Len(t, res.Invites, 3)
	assert.Equal(t, models.StatusError, res.Invites[0].Status)
	assert.Equal(t, "550 mailbox unavailable", res.Invites[0].Error)
	assert.Empty(t, res.Invites[0].MessageID)
	assert.Equal(t, 2, res.Sent)

	stored, err := f.store.Get(context.Background(), res.Invites[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, stored.Status)
}

func TestCreateInvites_InvalidPayload(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.CreateInvites(context.Background(), nil, candidates(), false)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidPayload))

	_, err = f.svc.CreateInvites(context.Background(), sampleProject(), nil, false)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidPayload))

	res, err := f.svc.CreateInvites(context.Background(), sampleProject(), []models.RankedSeller{}, false)
	require.NoError(t, err)
	assert.NotNil(t, res.Invites)
	assert.Empty(t, res.Invites)
}

func TestCreateInvites_DuplicatesAllowed(t *testing.T) {
	f := newFixture(t, nil)
	ranked := []models.RankedSeller{{SellerID: "s1", Name: "Ann", Email: "ann@example.com", Score: 2}}

	_, err := f.svc.CreateInvites(context.Background(), sampleProject(), ranked, true)
	require.NoError(t, err)
	_, err = f.svc.CreateInvites(context.Background(), sampleProject(), ranked, true)
	require.NoError(t, err)

	list, err := f.svc.ByProject(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, list[0].SellerID, list[1].SellerID)
	assert.NotEqual(t, list[0].ID, list[1].ID)
}

func TestAcceptReject(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.svc.CreateInvites(context.Background(), sampleProject(), candidates(), false)
	require.NoError(t, err)
	first, second := res.Invites[0].ID, res.Invites[1].ID

	accepted, err := f.svc.Accept(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, accepted.Status)
	require.NotNil(t, accepted.AcceptedAt)

	rejected, err := f.svc.Reject(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectedAt)

	_, err = f.svc.Reject(context.Background(), first)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))

	stored, err := f.store.Get(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, stored.Status, "refused transition leaves the invite untouched")
}

func TestAccept_UnknownID(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.CreateInvites(context.Background(), sampleProject(), candidates(), true)
	require.NoError(t, err)
	before, _ := f.svc.ByProject(context.Background(), "p1")

	_, err = f.svc.Accept(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Equal(t, "Invite not found", err.Error())

	after, _ := f.svc.ByProject(context.Background(), "p1")
	assert.Equal(t, before, after)
}

func TestPermissiveTransitionsOverwrite(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.StrictTransitions = false })
	res, err := f.svc.CreateInvites(context.Background(), sampleProject(), candidates()[:1], true)
	require.NoError(t, err)
	id := res.Invites[0].ID

	_, err = f.svc.Reject(context.Background(), id)
	require.NoError(t, err)
	inv, err := f.svc.Accept(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, inv.Status)
	assert.NotNil(t, inv.RejectedAt)
}

func TestOffer_WithoutEmail(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.svc.CreateInvites(context.Background(), sampleProject(), candidates(), true)
	require.NoError(t, err)
	id := res.Invites[0].ID

	inv, err := f.svc.Offer(context.Background(), id, json.RawMessage(`100`), "x", false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffered, inv.Status)
	assert.Equal(t, "100", string(inv.OfferedPrice))
	assert.Equal(t, "x", inv.OfferNote)
	assert.NotNil(t, inv.OfferedAt)
	assert.Empty(t, inv.MessageID)
	assert.Empty(t, f.mailer.messages())
}

func TestOffer_WithEmail(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.svc.CreateInvites(context.Background(), sampleProject(), candidates(), true)
	require.NoError(t, err)
	id := res.Invites[0].ID

	inv, err := f.svc.Offer(context.Background(), id, json.RawMessage(`"$2,000"`), "", true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffered, inv.Status)
	assert.NotEmpty(t, inv.MessageID)

	msgs := f.mailer.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, `[IdeaMarket] Offer for "Marketplace MVP"`, msgs[0].Subject)
	assert.Contains(t, msgs[0].Text, "Offered Price: $2,000")
	assert.Contains(t, msgs[0].Text, "Note: —")
	assert.Contains(t, msgs[0].Text, "/api/invite/"+id+"/accept")
}

func TestOffer_EmailFailureKeepsOffer(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.svc.CreateInvites(context.Background(), sampleProject(), candidates(), true)
	require.NoError(t, err)
	id := res.Invites[0].ID
	f.mailer.fail[res.Invites[0].SellerEmail] = errors.New("dial tcp: i/o timeout")

	inv, err := f.svc.Offer(context.Background(), id, json.RawMessage(`1500`), "rush", true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, inv.Status)
	assert.Equal(t, "dial tcp: i/o timeout", inv.Error)
	assert.Equal(t, "1500", string(inv.OfferedPrice))
	assert.Equal(t, "rush", inv.OfferNote)
	assert.NotNil(t, inv.OfferedAt)

	// An errored invite can be offered again.
	delete(f.mailer.fail, res.Invites[0].SellerEmail)
	inv, err = f.svc.Offer(context.Background(), id, json.RawMessage(`1400`), "", true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffered, inv.Status)
	assert.Empty(t, inv.Error)
}

func TestOffer_RefusedAfterAnswer(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.svc.CreateInvites(context.Background(), sampleProject(), candidates(), true)
	require.NoError(t, err)
	id := res.Invites[0].ID

	_, err = f.svc.Accept(context.Background(), id)
	require.NoError(t, err)
	_, err = f.svc.Offer(context.Background(), id, json.RawMessage(`1`), "", true)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))
	assert.Empty(t, f.mailer.messages())
}

func TestBySeller_OrdersByLatestActivity(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	ranked := []models.RankedSeller{{SellerID: "s1", Name: "Ann", Email: "ann@example.com", Score: 1}}

	a, err := f.svc.CreateInvites(ctx, &models.Project{ID: "pa", Title: "A"}, ranked, true)
	require.NoError(t, err)
	b, err := f.svc.CreateInvites(ctx, &models.Project{ID: "pb", Title: "B"}, ranked, true)
	require.NoError(t, err)
	c, err := f.svc.CreateInvites(ctx, &models.Project{ID: "pc", Title: "C"}, ranked, true)
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, a.Invites[0].ID)
	require.NoError(t, err)

	list, err := f.svc.BySeller(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, a.Invites[0].ID, list[0].ID, "accepted most recently")
	assert.Equal(t, c.Invites[0].ID, list[1].ID)
	assert.Equal(t, b.Invites[0].ID, list[2].ID)

	for i := 1; i < len(list); i++ {
		assert.False(t, list[i].LastActivity().After(list[i-1].LastActivity()))
	}

	none, err := f.svc.BySeller(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestEventsPublished(t *testing.T) {
	events := new(mockEvents)
	events.On("Publish", mock.Anything, mock.MatchedBy(func(e Event) bool { return e.Type == EventInviteCreated })).Return(nil).Once()
	events.On("Publish", mock.Anything, mock.MatchedBy(func(e Event) bool {
		return e.Type == EventInviteAccepted && e.Status == "accepted" && e.ProjectID == "p1"
	})).Return(errors.New("sns down")).Once()

	svc, err := New(DefaultConfig(), Dependencies{
		Store:  store.NewMemoryStore(),
		Mailer: &fakeMailer{},
		Events: events,
		Logger: logger.NewTestLogger(t),
	})
	require.NoError(t, err)

	res, err := svc.CreateInvites(context.Background(), sampleProject(), candidates()[:1], true)
	require.NoError(t, err)
	_, err = svc.Accept(context.Background(), res.Invites[0].ID)
	require.NoError(t, err, "publish failures do not fail the transition")

	events.AssertExpectations(t)
}

func TestDefaultIDsAreUnique(t *testing.T) {
	svc, err := New(nil, Dependencies{Store: store.NewMemoryStore(), Mailer: &fakeMailer{}})
	require.NoError(t, err)

	ranked := make([]models.RankedSeller, 0, 5)
	for i := 0; i < 5; i++ {
		ranked = append(ranked, models.RankedSeller{SellerID: fmt.Sprint(i), Email: fmt.Sprintf("s%d@example.com", i)})
	}
	res, err := svc.CreateInvites(context.Background(), sampleProject(), ranked, true)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, inv := range res.Invites {
		assert.Len(t, inv.ID, 36)
		assert.False(t, seen[inv.ID])
		seen[inv.ID] = true
	}
}

func TestCapabilityURLs(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.BaseURL = "https://api.ideamarket.test" })
	assert.Equal(t, "https://api.ideamarket.test/api/invite/a%2Fb/accept", f.svc.AcceptURL("a/b"))
	assert.True(t, strings.HasSuffix(f.svc.RejectURL("x1"), "/api/invite/x1/reject"))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(&Config{TopN: 5, BaseURL: "ftp://x"}, Dependencies{Store: store.NewMemoryStore(), Mailer: &fakeMailer{}})
	assert.Error(t, err)

	_, err = New(DefaultConfig(), Dependencies{Mailer: &fakeMailer{}})
	assert.EqualError(t, err, "store is required")

	_, err = New(DefaultConfig(), Dependencies{Store: store.NewMemoryStore()})
	assert.EqualError(t, err, "mailer is required")
}

// stallingMailer blocks every send until its context ends.
type stallingMailer struct{}

func (stallingMailer) Send(ctx context.Context, _ mailer.Message) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestCreateInvites_BatchTimeoutBoundsSends(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FromEmail = "invites@ideamarket.test"
	cfg.MailTimeout = time.Second
	cfg.BatchTimeout = 60 * time.Millisecond

	st := store.NewMemoryStore()
	svc, err := New(cfg, Dependencies{Store: st, Mailer: stallingMailer{}, Logger: logger.NewTestLogger(t)})
	require.NoError(t, err)

	start := time.Now()
	res, err := svc.CreateInvites(context.Background(), sampleProject(), candidates(), false)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)

	require.Len(t, res.Invites, 3)
	assert.Zero(t, res.Sent)
	for _, inv := range res.Invites {
		assert.Equal(t, models.StatusError, inv.Status)
		assert.NotEmpty(t, inv.Error)

		stored, err := st.Get(context.Background(), inv.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusError, stored.Status)
	}
}

func TestNew_RejectsNegativeBatchTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchTimeout = -time.Second
	_, err := New(cfg, Dependencies{Store: store.NewMemoryStore(), Mailer: &fakeMailer{}})
	assert.EqualError(t, err, "invalid service config: batch_timeout must not be negative")
}
