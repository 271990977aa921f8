package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "stayhub/internal/domain/booking"
	"stayhub/internal/domain/shared/daterange"
	"stayhub/internal/domain/shared/money"
)

var activeStatuses = bson.A{
	string(domainbooking.StatusPending),
	string(domainbooking.StatusAwaitingPayment),
	string(domainbooking.StatusConfirmed),
	string(domainbooking.StatusCompleted),
}

// BookingRepository stores bookings in agg_booking and reserves every occupied night in
// booking_nights. The unique (property_id, night) index rejects overlapping active
// bookings even if two writers slip past the property lock.
type BookingRepository struct {
	col    *mongo.Collection
	nights *mongo.Collection
}

func NewBookingRepository(ctx context.Context, db *mongo.Database) (*BookingRepository, error) {
	r := &BookingRepository{col: db.Collection("agg_booking"), nights: db.Collection("booking_nights")}
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "property_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "guest_id", Value: 1}, {Key: "range.check_in", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "range.check_out", Value: 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("mongo: booking indexes: %w", err)
	}
	_, err = r.nights.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "property_id", Value: 1}, {Key: "night", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "booking_id", Value: 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("mongo: night indexes: %w", err)
	}
	return r, nil
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	doc.Version = b.Version + 1
	if b.Version == 0 {
		if err := r.reserveNights(ctx, b); err != nil {
			return err
		}
		if _, err := r.col.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("%w: booking %s exists", domainbooking.ErrConcurrentUpdate, b.ID)
			}
			return err
		}
		b.Version = doc.Version
		return nil
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": doc.ID, "version": b.Version}, bson.M{"$set": doc})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: booking %s at version %d", domainbooking.ErrConcurrentUpdate, b.ID, b.Version)
	}
	if !b.Status.Active() {
		if _, err := r.nights.DeleteMany(ctx, bson.M{"booking_id": doc.ID}); err != nil {
			return fmt.Errorf("mongo: release nights of %s: %w", b.ID, err)
		}
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) reserveNights(ctx context.Context, b *domainbooking.Booking) error {
	if !b.Status.Active() {
		return nil
	}
	docs := nightDocuments(b)
	if len(docs) == 0 {
		return nil
	}
	if _, err := r.nights.InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s for %s", domainbooking.ErrDatesUnavailable, b.PropertyID, b.Range)
		}
		return err
	}
	return nil
}

func (r *BookingRepository) ActiveByProperty(ctx context.Context, propertyID domainbooking.PropertyID) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{"property_id": string(propertyID), "status": bson.M{"$in": activeStatuses}}, options.Find())
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID domainbooking.UserID) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{"guest_id": string(guestID)}, options.Find())
}

func (r *BookingRepository) DueForCompletion(ctx context.Context, now time.Time, limit int) ([]*domainbooking.Booking, error) {
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	filter := bson.M{
		"status":          string(domainbooking.StatusConfirmed),
		"range.check_out": bson.M{"$lte": now.UTC().UnixMilli()},
	}
	return r.find(ctx, filter, opts)
}

func (r *BookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domainbooking.Booking, error) {
	opts.SetSort(bson.D{{Key: "range.check_in", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*domainbooking.Booking
	for cur.Next(ctx) {
		var doc bookingDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cur.Err()
}

type nightDocument struct {
	ID         string `bson:"_id"`
	PropertyID string `bson:"property_id"`
	Night      int64  `bson:"night"`
	BookingID  string `bson:"booking_id"`
}

func nightDocuments(b *domainbooking.Booking) []any {
	nights := b.Range.EachNight()
	out := make([]any, 0, len(nights))
	for _, n := range nights {
		out = append(out, nightDocument{
			ID:         string(b.PropertyID) + "/" + n.Format(time.DateOnly),
			PropertyID: string(b.PropertyID),
			Night:      n.UnixMilli(),
			BookingID:  string(b.ID),
		})
	}
	return out
}

type bookingDocument struct {
	ID                 string                                   `bson:"_id"`
	PropertyID         string                                   `bson:"property_id"`
	GuestID            string                                   `bson:"guest_id"`
	OwnerID            string                                   `bson:"owner_id"`
	Range              rangeDocument                            `bson:"range"`
	Guests             int                                      `bson:"guests"`
	Total              moneyDocument                            `bson:"total"`
	Status             string                                   `bson:"status"`
	PaymentStatus      string                                   `bson:"payment_status"`
	PaymentReference   string                                   `bson:"payment_reference"`
	CancellationReason string                                   `bson:"cancellation_reason,omitempty"`
	Refunded           moneyDocument                            `bson:"refunded"`
	Waived             moneyDocument                            `bson:"waived"`
	Policy             domainbooking.CancellationPolicySnapshot `bson:"policy"`
	CreatedAt          int64                                    `bson:"created_at"`
	UpdatedAt          int64                                    `bson:"updated_at"`
	ConfirmedAt        *int64                                   `bson:"confirmed_at,omitempty"`
	PaidAt             *int64                                   `bson:"paid_at,omitempty"`
	CancelledAt        *int64                                   `bson:"cancelled_at,omitempty"`
	CompletedAt        *int64                                   `bson:"completed_at,omitempty"`
	Version            int64                                    `bson:"version"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:                 string(b.ID),
		PropertyID:         string(b.PropertyID),
		GuestID:            string(b.GuestID),
		OwnerID:            string(b.OwnerID),
		Range:              rangeDocument{CheckIn: b.Range.CheckIn.UnixMilli(), CheckOut: b.Range.CheckOut.UnixMilli()},
		Guests:             b.GuestsCount,
		Total:              newMoneyDocument(b.TotalPrice),
		Status:             string(b.Status),
		PaymentStatus:      string(b.PaymentStatus),
		PaymentReference:   b.PaymentReference,
		CancellationReason: b.CancellationReason,
		Refunded:           newMoneyDocument(b.RefundedAmount),
		Waived:             newMoneyDocument(b.WaivedAmount),
		Policy:             b.Policy,
		CreatedAt:          b.CreatedAt.UnixMilli(),
		UpdatedAt:          b.UpdatedAt.UnixMilli(),
		ConfirmedAt:        timeToTimestamp(b.ConfirmedAt),
		PaidAt:             timeToTimestamp(b.PaidAt),
		CancelledAt:        timeToTimestamp(b.CancelledAt),
		CompletedAt:        timeToTimestamp(b.CompletedAt),
		Version:            b.Version,
	}
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	return &domainbooking.Booking{
		ID:                 domainbooking.BookingID(d.ID),
		PropertyID:         domainbooking.PropertyID(d.PropertyID),
		GuestID:            domainbooking.UserID(d.GuestID),
		OwnerID:            domainbooking.UserID(d.OwnerID),
		Range:              daterange.DateRange{CheckIn: timestampToTime(d.Range.CheckIn), CheckOut: timestampToTime(d.Range.CheckOut)},
		GuestsCount:        d.Guests,
		TotalPrice:         d.Total.toMoney(),
		Status:             domainbooking.Status(d.Status),
		PaymentStatus:      domainbooking.PaymentStatus(d.PaymentStatus),
		PaymentReference:   d.PaymentReference,
		CancellationReason: d.CancellationReason,
		RefundedAmount:     d.Refunded.toMoney(),
		WaivedAmount:       d.Waived.toMoney(),
		Policy:             d.Policy,
		CreatedAt:          timestampToTime(d.CreatedAt),
		UpdatedAt:          timestampToTime(d.UpdatedAt),
		ConfirmedAt:        timestampToTimePtr(d.ConfirmedAt),
		PaidAt:             timestampToTimePtr(d.PaidAt),
		CancelledAt:        timestampToTimePtr(d.CancelledAt),
		CompletedAt:        timestampToTimePtr(d.CompletedAt),
		Version:            d.Version,
	}
}

type rangeDocument struct {
	CheckIn  int64 `bson:"check_in"`
	CheckOut int64 `bson:"check_out"`
}

type moneyDocument struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

func newMoneyDocument(m money.Money) moneyDocument {
	return moneyDocument{Amount: m.Amount, Currency: m.Currency}
}

func (d moneyDocument) toMoney() money.Money {
	return money.Money{Amount: d.Amount, Currency: d.Currency}
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func timeToTimestamp(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func timestampToTimePtr(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := timestampToTime(*ms)
	return &t
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
