package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domainbooking "stayhub/internal/domain/booking"
	"stayhub/internal/domain/payment"
)

type PaymentRepository struct {
	mu    sync.RWMutex
	items map[payment.PaymentID]payment.Payment
}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{items: make(map[payment.PaymentID]payment.Payment)}
}

func (r *PaymentRepository) ByID(_ context.Context, id payment.PaymentID) (*payment.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return nil, payment.ErrNotFound
	}
	return clonePayment(p), nil
}

func (r *PaymentRepository) Save(_ context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, exists := r.items[p.ID]
	if (!exists && p.Version != 0) || (exists && stored.Version != p.Version) {
		return fmt.Errorf("%w: payment %s", payment.ErrConcurrentUpdate, p.ID)
	}
	p.Version++
	r.items[p.ID] = *clonePayment(*p)
	return nil
}

func (r *PaymentRepository) ListByBooking(_ context.Context, bookingID domainbooking.BookingID) ([]*payment.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*payment.Payment
	for _, p := range r.items {
		if p.BookingID == bookingID {
			out = append(out, clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func clonePayment(p payment.Payment) *payment.Payment {
	out := p
	if p.Refund != nil {
		r := *p.Refund
		out.Refund = &r
	}
	if p.SettledAt != nil {
		t := *p.SettledAt
		out.SettledAt = &t
	}
	return &out
}

var _ payment.Repository = (*PaymentRepository)(nil)
