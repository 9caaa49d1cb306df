package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/limey-tt/limey-backend/internal/models"
	"github.com/limey-tt/limey-backend/internal/repositories"
	"github.com/limey-tt/limey-backend/internal/utils"
)

// memStore is an in-memory stand-in for the gorm repositories. It applies the
// same locking and idempotency rules the SQL versions do.
type memStore struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]bool
	ledger   []models.TrincreditsTransaction
	ads      map[uuid.UUID]*models.SponsoredAd
	boosts   map[uuid.UUID]*models.BoostTransaction
	links    map[uuid.UUID]*models.WalletLink
	failNext error
}

func newMemStore(users ...uuid.UUID) *memStore {
	s := &memStore{
		profiles: make(map[uuid.UUID]bool),
		ads:      make(map[uuid.UUID]*models.SponsoredAd),
		boosts:   make(map[uuid.UUID]*models.BoostTransaction),
		links:    make(map[uuid.UUID]*models.WalletLink),
	}
	for _, u := range users {
		s.profiles[u] = true
	}
	return s
}

func (s *memStore) rowsFor(userID uuid.UUID) []models.TrincreditsTransaction {
	var rows []models.TrincreditsTransaction
	for _, row := range s.ledger {
		if row.UserID == userID {
			rows = append(rows, row)
		}
	}
	return rows
}

func (s *memStore) ListCompleted(ctx context.Context, userID uuid.UUID) ([]models.TrincreditsTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []models.TrincreditsTransaction
	for _, row := range s.rowsFor(userID) {
		if row.Status == models.TransactionStatusCompleted {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// Record refuses a cancelled context the way database/sql refuses to begin a
// transaction on one.
func (s *memStore) Record(ctx context.Context, entry *models.TrincreditsTransaction, requireFunds bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordLocked(entry, requireFunds)
}

func (s *memStore) recordLocked(entry *models.TrincreditsTransaction, requireFunds bool) error {
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	if !s.profiles[entry.UserID] {
		return repositories.ErrProfileNotFound
	}
	if entry.Reference != nil {
		for _, row := range s.ledger {
			if row.Reference != nil && *row.Reference == *entry.Reference {
				return repositories.ErrDuplicateReference
			}
		}
	}

	before := models.SumCompleted(s.rowsFor(entry.UserID))
	after := before
	if entry.Status == models.TransactionStatusCompleted {
		after = before.Add(entry.SignedAmount())
	}
	if requireFunds && after.IsNegative() {
		return repositories.ErrInsufficientFunds
	}

	entry.ID = uuid.New()
	entry.BalanceBefore = before
	entry.BalanceAfter = after
	entry.CreatedAt = time.Now()
	s.ledger = append(s.ledger, *entry)
	return nil
}

func (s *memStore) SumSince(_ context.Context, userID uuid.UUID, txType models.TransactionType, prefix string, since time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, row := range s.rowsFor(userID) {
		if row.Type != txType || row.Status != models.TransactionStatusCompleted || row.CreatedAt.Before(since) {
			continue
		}
		if prefix != "" && (row.Reference == nil || !strings.HasPrefix(*row.Reference, prefix)) {
			continue
		}
		total = total.Add(row.Amount.Abs())
	}
	return total, nil
}

func (s *memStore) History(_ context.Context, userID uuid.UUID, params utils.PaginationParams) ([]models.TrincreditsTransaction, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.rowsFor(userID)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	return rows, int64(len(rows)), nil
}

func (s *memStore) FindByReference(_ context.Context, reference string) (*models.TrincreditsTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.ledger {
		if row.Reference != nil && *row.Reference == reference {
			copied := row
			return &copied, nil
		}
	}
	return nil, repositories.ErrEntryNotFound
}

func (s *memStore) balance(userID uuid.UUID) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.SumCompleted(s.rowsFor(userID))
}

func (s *memStore) ledgerLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ledger)
}

// AdRepository

func (s *memStore) Create(_ context.Context, ad *models.SponsoredAd, boost *models.BoostTransaction, charge *models.TrincreditsTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.recordLocked(charge, true); err != nil {
		return err
	}
	if ad.ID == uuid.Nil {
		ad.ID = uuid.New()
	}
	if ad.Status == "" {
		ad.Status = models.AdStatusPending
	}
	copied := *ad
	s.ads[ad.ID] = &copied

	boost.AdID = ad.ID
	if charge.Reference != nil {
		boost.ChargeRef = *charge.Reference
	}
	boostCopy := *boost
	s.boosts[ad.ID] = &boostCopy
	return nil
}

func (s *memStore) Get(_ context.Context, id uuid.UUID) (*models.SponsoredAd, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ad, ok := s.ads[id]
	if !ok {
		return nil, repositories.ErrAdNotFound
	}
	copied := *ad
	return &copied, nil
}

func (s *memStore) Review(_ context.Context, review repositories.AdReview) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ad, ok := s.ads[review.AdID]
	if !ok || ad.Status != models.AdStatusPending {
		return repositories.ErrAdNotPending
	}

	if review.Settlement != nil {
		if err := s.recordLocked(review.Settlement, false); err != nil {
			return err
		}
	}

	ad.Status = review.Status
	ad.ReviewedBy = &review.AdminID
	reviewedAt := review.ReviewedAt
	ad.ReviewedAt = &reviewedAt
	ad.RejectionReason = review.RejectionReason
	ad.StartsAt = review.StartsAt
	ad.EndsAt = review.EndsAt

	if boost, ok := s.boosts[review.AdID]; ok {
		boost.AdminID = review.AdminID
		boost.Status = models.BoostStatusRefunded
		if review.Status == models.AdStatusApproved {
			boost.Status = models.BoostStatusCredited
		}
		if review.Settlement != nil && review.Settlement.Reference != nil {
			boost.SettlementRef = *review.Settlement.Reference
		}
	}
	return nil
}

func (s *memStore) filterAds(keep func(*models.SponsoredAd) bool) ([]models.SponsoredAd, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.SponsoredAd
	for _, ad := range s.ads {
		if keep(ad) {
			out = append(out, *ad)
		}
	}
	return out, int64(len(out)), nil
}

func (s *memStore) ListByStatus(_ context.Context, status models.AdStatus, _ utils.PaginationParams) ([]models.SponsoredAd, int64, error) {
	return s.filterAds(func(ad *models.SponsoredAd) bool { return ad.Status == status })
}

func (s *memStore) ListActive(_ context.Context, now time.Time, _ utils.PaginationParams) ([]models.SponsoredAd, int64, error) {
	return s.filterAds(func(ad *models.SponsoredAd) bool {
		return ad.Status == models.AdStatusApproved &&
			ad.StartsAt != nil && !ad.StartsAt.After(now) &&
			ad.EndsAt != nil && ad.EndsAt.After(now)
	})
}

func (s *memStore) ListByAdvertiser(_ context.Context, advertiserID uuid.UUID, _ utils.PaginationParams) ([]models.SponsoredAd, int64, error) {
	return s.filterAds(func(ad *models.SponsoredAd) bool { return ad.AdvertiserID == advertiserID })
}

func (s *memStore) IncrementCounter(_ context.Context, id uuid.UUID, column string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ad, ok := s.ads[id]
	if !ok {
		return errors.New("record not found")
	}
	switch column {
	case "impressions":
		ad.Impressions++
	case "clicks":
		ad.Clicks++
	default:
		return errors.New("unknown counter")
	}
	return nil
}

func (s *memStore) boostFor(adID uuid.UUID) models.BoostTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.boosts[adID]
}

// walletLinks adapts memStore to WalletLinkRepository, whose Get collides
// with AdRepository.Get.
type walletLinks struct{ s *memStore }

func (w walletLinks) Get(_ context.Context, userID uuid.UUID) (*models.WalletLink, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()

	link, ok := w.s.links[userID]
	if !ok {
		return nil, repositories.ErrWalletLinkNotFound
	}
	copied := *link
	return &copied, nil
}

func (w walletLinks) Upsert(_ context.Context, link *models.WalletLink) error {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()

	copied := *link
	w.s.links[link.UserID] = &copied
	return nil
}

func (w walletLinks) MarkUnlinked(_ context.Context, userID uuid.UUID, at time.Time) error {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()

	link, ok := w.s.links[userID]
	if !ok {
		return repositories.ErrWalletLinkNotFound
	}
	link.Status = models.WalletLinkStatusUnlinked
	link.UnlinkedAt = &at
	return nil
}

type recordedEvent struct {
	subject   string
	eventType string
	data      interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *fakePublisher) Publish(subject, eventType string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{subject: subject, eventType: eventType, data: data})
}

func (p *fakePublisher) Close() {}

func (p *fakePublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, e := range p.events {
		if e.eventType == eventType {
			n++
		}
	}
	return n
}
