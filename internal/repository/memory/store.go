// Package memory implements the domain repositories in process memory.
// It backs STORAGE_DRIVER=memory and the concurrency tests; every operation
// holds a single store-wide lock, so check-and-write sequences are atomic.
package memory

import (
	"sort"
	"sync"
	"time"

	"smartevents/internal/domain"

	"github.com/google/uuid"
)

// Store holds every table. A zero Store is not usable; call NewStore.
type Store struct {
	mu sync.RWMutex

	events        map[string]*domain.Event
	discounts     map[string]*domain.DiscountCode // id -> code
	discountByKey map[string]string               // event_id/code -> id
	redemptions   map[string]string               // checkout_id -> discount id
	registrations map[string]*domain.EventRegistration
	payments      map[string]*domain.Payment
	tickets       map[string]*domain.Ticket
	ticketByPay   map[string]string
	checkouts     map[string]*domain.Checkout
	outbox        []*outboxRow
	outboxSeq     int64

	now func() time.Time
}

type outboxRow struct {
	msg         domain.OutboxMessage
	sent        bool
	nextAttempt time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		events:        make(map[string]*domain.Event),
		discounts:     make(map[string]*domain.DiscountCode),
		discountByKey: make(map[string]string),
		redemptions:   make(map[string]string),
		registrations: make(map[string]*domain.EventRegistration),
		payments:      make(map[string]*domain.Payment),
		tickets:       make(map[string]*domain.Ticket),
		ticketByPay:   make(map[string]string),
		checkouts:     make(map[string]*domain.Checkout),
		now:           time.Now,
	}
}

func newID() string {
	return uuid.NewString()
}

func discountKey(eventID, code string) string {
	return eventID + "/" + code
}

// Repositories bundles the per-table views of a Store.
type Repositories struct {
	Events        domain.EventRepository
	Discounts     domain.DiscountCodeRepository
	Registrations domain.EventRegistrationRepository
	Payments      domain.PaymentRepository
	Tickets       domain.TicketRepository
	Checkouts     domain.CheckoutRepository
	Outbox        domain.OutboxRepository
}

// Repositories returns every repository backed by s.
func (s *Store) Repositories() Repositories {
	return Repositories{
		Events:        NewEventRepository(s),
		Discounts:     NewDiscountCodeRepository(s),
		Registrations: NewEventRegistrationRepository(s),
		Payments:      NewPaymentRepository(s),
		Tickets:       NewTicketRepository(s),
		Checkouts:     NewCheckoutRepository(s),
		Outbox:        NewOutboxRepository(s),
	}
}

func sortPaymentsDesc(ps []*domain.Payment) {
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].CreatedAt.After(ps[j].CreatedAt) })
}
