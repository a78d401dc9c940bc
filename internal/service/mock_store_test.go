package service

import (
	"context"
	"fmt"
	"time"

	"github.com/openprocure/tenderd/internal/domain"
	"github.com/openprocure/tenderd/internal/domain/award"
	"github.com/openprocure/tenderd/internal/domain/quotation"
	"github.com/openprocure/tenderd/internal/domain/requisition"
	"github.com/openprocure/tenderd/internal/domain/settings"
	"github.com/openprocure/tenderd/internal/domain/user"
	"github.com/openprocure/tenderd/internal/domain/vendor"
	"github.com/openprocure/tenderd/internal/locker"
	"github.com/openprocure/tenderd/internal/port/database"
)

// mockStore is an in-memory Store for service tests. Update methods apply the
// same optimistic version check as the real store.
type mockStore struct {
	requisitions []requisition.Requisition
	quotations   []quotation.Quotation
	scoreSets    []quotation.CommitteeScoreSet
	submissions  map[string]map[string]bool
	details      []award.PerItemAwardDetail
	vendors      []vendor.Vendor
	users        []user.User
	apiKeys      []user.APIKey
	cfg          settings.Procurement

	seq  int
	base time.Time

	listQuotationsErr     error
	updateQuotationErr    error
	createAwardDetailsErr error
}

var _ database.Store = (*mockStore)(nil)

func newMockStore() *mockStore {
	return &mockStore{
		submissions: make(map[string]map[string]bool),
		cfg:         settings.Defaults(),
		base:        time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *mockStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

// nextTime hands out strictly increasing creation timestamps so ordering
// tie-breaks are deterministic.
func (m *mockStore) nextTime() time.Time {
	m.seq++
	return m.base.Add(time.Duration(m.seq) * time.Second)
}

func (m *mockStore) ListRequisitions(ctx context.Context) ([]requisition.Requisition, error) {
	out := make([]requisition.Requisition, len(m.requisitions))
	copy(out, m.requisitions)
	return out, nil
}

func (m *mockStore) GetRequisition(ctx context.Context, id string) (*requisition.Requisition, error) {
	for i := range m.requisitions {
		if m.requisitions[i].ID == id {
			r := m.requisitions[i]
			return &r, nil
		}
	}
	return nil, fmt.Errorf("requisition %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) CreateRequisition(ctx context.Context, req requisition.CreateRequest) (*requisition.Requisition, error) {
	now := m.nextTime()
	r := requisition.Requisition{
		ID:                 m.nextID("req"),
		Title:              req.Title,
		RequesterID:        req.RequesterID,
		Status:             requisition.StatusPreApproved,
		Items:              req.Items,
		Criteria:           req.Criteria,
		RFQ:                req.RFQ,
		Deadline:           req.Deadline,
		ScoringDeadline:    req.ScoringDeadline,
		FinancialCommittee: req.FinancialCommittee,
		TechnicalCommittee: req.TechnicalCommittee,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	m.requisitions = append(m.requisitions, r)
	return &r, nil
}

func (m *mockStore) UpdateRequisition(ctx context.Context, r *requisition.Requisition) error {
	for i := range m.requisitions {
		if m.requisitions[i].ID != r.ID {
			continue
		}
		if m.requisitions[i].Version != r.Version {
			return domain.ErrConflict
		}
		r.Version++
		m.requisitions[i] = *r
		return nil
	}
	return fmt.Errorf("requisition %s: %w", r.ID, domain.ErrNotFound)
}

func (m *mockStore) ListQuotations(ctx context.Context, requisitionID string) ([]quotation.Quotation, error) {
	if m.listQuotationsErr != nil {
		return nil, m.listQuotationsErr
	}
	var out []quotation.Quotation
	for i := range m.quotations {
		if m.quotations[i].RequisitionID != requisitionID {
			continue
		}
		q := m.quotations[i]
		q.ScoreSets = m.scoreSetsFor(q.ID)
		out = append(out, q)
	}
	return out, nil
}

func (m *mockStore) GetQuotation(ctx context.Context, id string) (*quotation.Quotation, error) {
	for i := range m.quotations {
		if m.quotations[i].ID == id {
			q := m.quotations[i]
			q.ScoreSets = m.scoreSetsFor(q.ID)
			return &q, nil
		}
	}
	return nil, fmt.Errorf("quotation %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) CreateQuotation(ctx context.Context, requisitionID string, req quotation.SubmitRequest) (*quotation.Quotation, error) {
	now := m.nextTime()
	q := quotation.Quotation{
		ID:            m.nextID("quote"),
		RequisitionID: requisitionID,
		VendorID:      req.VendorID,
		Status:        quotation.StatusSubmitted,
		Items:         req.Items,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for i := range q.Items {
		if q.Items[i].ID == "" {
			q.Items[i].ID = m.nextID("qitem")
		}
	}
	m.quotations = append(m.quotations, q)
	return &q, nil
}

func (m *mockStore) UpdateQuotation(ctx context.Context, q *quotation.Quotation) error {
	if m.updateQuotationErr != nil {
		return m.updateQuotationErr
	}
	for i := range m.quotations {
		if m.quotations[i].ID != q.ID {
			continue
		}
		if m.quotations[i].Version != q.Version {
			return domain.ErrConflict
		}
		q.Version++
		m.quotations[i] = *q
		m.quotations[i].ScoreSets = nil
		return nil
	}
	return fmt.Errorf("quotation %s: %w", q.ID, domain.ErrNotFound)
}

func (m *mockStore) scoreSetsFor(quotationID string) []quotation.CommitteeScoreSet {
	var out []quotation.CommitteeScoreSet
	for i := range m.scoreSets {
		if m.scoreSets[i].QuotationID == quotationID {
			out = append(out, m.scoreSets[i])
		}
	}
	return out
}

func (m *mockStore) UpsertScoreSet(ctx context.Context, set *quotation.CommitteeScoreSet) error {
	for i := range m.scoreSets {
		existing := &m.scoreSets[i]
		if existing.QuotationID == set.QuotationID && existing.ScorerID == set.ScorerID {
			existing.ItemScores = set.ItemScores
			existing.UpdatedAt = m.nextTime()
			*set = *existing
			return nil
		}
	}
	now := m.nextTime()
	set.ID = m.nextID("score")
	set.CreatedAt = now
	set.UpdatedAt = now
	m.scoreSets = append(m.scoreSets, *set)
	return nil
}

func (m *mockStore) ListScoreSets(ctx context.Context, requisitionID string) ([]quotation.CommitteeScoreSet, error) {
	var out []quotation.CommitteeScoreSet
	for i := range m.quotations {
		if m.quotations[i].RequisitionID == requisitionID {
			out = append(out, m.scoreSetsFor(m.quotations[i].ID)...)
		}
	}
	return out, nil
}

func (m *mockStore) MarkScoresSubmitted(ctx context.Context, requisitionID, scorerID string) error {
	if m.submissions[requisitionID] == nil {
		m.submissions[requisitionID] = make(map[string]bool)
	}
	m.submissions[requisitionID][scorerID] = true
	for i := range m.scoreSets {
		if m.scoreSets[i].ScorerID == scorerID {
			m.scoreSets[i].Submitted = true
		}
	}
	return nil
}

func (m *mockStore) SubmittedScorers(ctx context.Context, requisitionID string) ([]string, error) {
	var out []string
	for id := range m.submissions[requisitionID] {
		out = append(out, id)
	}
	return out, nil
}

func (m *mockStore) ClearScoreSubmissions(ctx context.Context, requisitionID string) error {
	delete(m.submissions, requisitionID)
	return nil
}

func (m *mockStore) CreateAwardDetails(ctx context.Context, details []award.PerItemAwardDetail) error {
	if m.createAwardDetailsErr != nil {
		return m.createAwardDetailsErr
	}
	for i := range details {
		now := m.nextTime()
		details[i].ID = m.nextID("detail")
		details[i].Version = 1
		details[i].CreatedAt = now
		details[i].UpdatedAt = now
		m.details = append(m.details, details[i])
	}
	return nil
}

func (m *mockStore) ListAwardDetails(ctx context.Context, requisitionID string) ([]award.PerItemAwardDetail, error) {
	var out []award.PerItemAwardDetail
	for i := range m.details {
		if m.details[i].RequisitionID == requisitionID {
			out = append(out, m.details[i])
		}
	}
	return out, nil
}

func (m *mockStore) GetAwardDetail(ctx context.Context, id string) (*award.PerItemAwardDetail, error) {
	for i := range m.details {
		if m.details[i].ID == id {
			d := m.details[i]
			return &d, nil
		}
	}
	return nil, fmt.Errorf("award detail %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) UpdateAwardDetail(ctx context.Context, d *award.PerItemAwardDetail) error {
	for i := range m.details {
		if m.details[i].ID != d.ID {
			continue
		}
		if m.details[i].Version != d.Version {
			return domain.ErrConflict
		}
		d.Version++
		m.details[i] = *d
		return nil
	}
	return fmt.Errorf("award detail %s: %w", d.ID, domain.ErrNotFound)
}

func (m *mockStore) ListVendors(ctx context.Context) ([]vendor.Vendor, error) {
	out := make([]vendor.Vendor, len(m.vendors))
	copy(out, m.vendors)
	return out, nil
}

func (m *mockStore) GetVendor(ctx context.Context, id string) (*vendor.Vendor, error) {
	for i := range m.vendors {
		if m.vendors[i].ID == id {
			v := m.vendors[i]
			return &v, nil
		}
	}
	return nil, fmt.Errorf("vendor %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) CreateVendor(ctx context.Context, req vendor.CreateRequest) (*vendor.Vendor, error) {
	v := vendor.Vendor{
		ID:          m.nextID("vendor"),
		Name:        req.Name,
		Email:       req.Email,
		ContactName: req.ContactName,
		CreatedAt:   m.nextTime(),
	}
	m.vendors = append(m.vendors, v)
	return &v, nil
}

func (m *mockStore) GetUser(ctx context.Context, id string) (*user.User, error) {
	for i := range m.users {
		if m.users[i].ID == id {
			u := m.users[i]
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	for i := range m.users {
		if m.users[i].Email == email {
			u := m.users[i]
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
}

func (m *mockStore) CreateUser(ctx context.Context, u *user.User) error {
	m.users = append(m.users, *u)
	return nil
}

func (m *mockStore) CreateAPIKey(ctx context.Context, key *user.APIKey) error {
	m.apiKeys = append(m.apiKeys, *key)
	return nil
}

func (m *mockStore) ListAPIKeysByPrefix(ctx context.Context, prefix string) ([]user.APIKey, error) {
	var out []user.APIKey
	for i := range m.apiKeys {
		if m.apiKeys[i].Prefix == prefix {
			out = append(out, m.apiKeys[i])
		}
	}
	return out, nil
}

func (m *mockStore) TouchAPIKey(ctx context.Context, id string) error {
	for i := range m.apiKeys {
		if m.apiKeys[i].ID == id {
			now := m.nextTime()
			m.apiKeys[i].LastUsedAt = &now
			return nil
		}
	}
	return fmt.Errorf("api key %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) GetSettings(ctx context.Context) (settings.Procurement, error) {
	return m.cfg, nil
}

func (m *mockStore) UpdateSettings(ctx context.Context, s settings.Procurement) error {
	m.cfg = s
	return nil
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

var (
	adminActor     = &user.User{ID: "user-admin", Role: user.RoleAdmin}
	reviewerActor  = &user.User{ID: "user-reviewer", Role: user.RoleReviewer}
	requesterActor = &user.User{ID: "user-requester", Role: user.RoleRequester}
	scorerOne      = &user.User{ID: "scorer-1", Role: user.RoleCommittee}
	scorerTwo      = &user.User{ID: "scorer-2", Role: user.RoleCommittee}
)

func vendorActor(vendorID string) *user.User {
	return &user.User{ID: "user-" + vendorID, Role: user.RoleVendor, VendorID: vendorID}
}

func testCriteria() requisition.EvaluationCriteria {
	return requisition.EvaluationCriteria{
		FinancialWeight: 40,
		TechnicalWeight: 60,
		Financial:       []requisition.Criterion{{Name: "price", Weight: 100}},
		Technical: []requisition.Criterion{
			{Name: "quality", Weight: 50},
			{Name: "delivery", Weight: 50},
		},
	}
}

// seedRequisition stores a requisition at the given stage with two items and
// a two-member committee.
func seedRequisition(m *mockStore, status requisition.Status, strategy requisition.Strategy) *requisition.Requisition {
	now := m.nextTime()
	r := requisition.Requisition{
		ID:     m.nextID("req"),
		Title:  "Office laptops",
		Status: status,
		Items: []requisition.Item{
			{ID: "item-1", Description: "Laptop", Quantity: 10, UnitPrice: 1200},
			{ID: "item-2", Description: "Docking station", Quantity: 10, UnitPrice: 250},
		},
		Criteria:           testCriteria(),
		RFQ:                requisition.RFQSettings{Strategy: strategy},
		RequesterID:        requesterActor.ID,
		Deadline:           time.Now().UTC().Add(72 * time.Hour),
		ScoringDeadline:    time.Now().UTC().Add(120 * time.Hour),
		FinancialCommittee: []string{scorerOne.ID},
		TechnicalCommittee: []string{scorerTwo.ID},
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	m.requisitions = append(m.requisitions, r)
	return &r
}

// seedQuotation stores a quotation bidding on the given requisition items,
// one quote item per requisition item.
func seedQuotation(m *mockStore, requisitionID, vendorID string, status quotation.Status, itemIDs ...string) *quotation.Quotation {
	now := m.nextTime()
	q := quotation.Quotation{
		ID:            m.nextID("quote"),
		RequisitionID: requisitionID,
		VendorID:      vendorID,
		Status:        status,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, itemID := range itemIDs {
		q.Items = append(q.Items, quotation.QuoteItem{
			ID:                q.ID + "/" + itemID,
			RequisitionItemID: itemID,
			UnitPrice:         100,
			Quantity:          1,
		})
	}
	m.quotations = append(m.quotations, q)
	return &q
}

// seedScores records one score set per committee member giving every quote
// item of the quotation the same final score.
func seedScores(m *mockStore, q *quotation.Quotation, finalScore float64) {
	for _, scorerID := range []string{scorerOne.ID, scorerTwo.ID} {
		set := quotation.CommitteeScoreSet{
			ID:          m.nextID("score"),
			QuotationID: q.ID,
			ScorerID:    scorerID,
		}
		for _, item := range q.Items {
			set.ItemScores = append(set.ItemScores, quotation.ItemScore{
				QuoteItemID: item.ID,
				FinalScore:  finalScore,
			})
		}
		m.scoreSets = append(m.scoreSets, set)
	}
}

func submitAllScores(m *mockStore, requisitionID string) {
	if m.submissions[requisitionID] == nil {
		m.submissions[requisitionID] = make(map[string]bool)
	}
	m.submissions[requisitionID][scorerOne.ID] = true
	m.submissions[requisitionID][scorerTwo.ID] = true
}

func newTestLocks() *locker.Registry { return locker.NewRegistry() }
