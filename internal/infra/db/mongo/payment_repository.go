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
	"stayhub/internal/domain/payment"
)

type PaymentRepository struct {
	col *mongo.Collection
}

func NewPaymentRepository(ctx context.Context, db *mongo.Database) (*PaymentRepository, error) {
	col := db.Collection("payments")
	idx := mongo.IndexModel{Keys: bson.D{{Key: "booking_id", Value: 1}, {Key: "created_at", Value: 1}}}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, fmt.Errorf("mongo: payment indexes: %w", err)
	}
	return &PaymentRepository{col: col}, nil
}

func (r *PaymentRepository) ByID(ctx context.Context, id payment.PaymentID) (*payment.Payment, error) {
	var doc paymentDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, payment.ErrNotFound
		}
		return nil, err
	}
	return doc.toPayment(), nil
}

func (r *PaymentRepository) Save(ctx context.Context, p *payment.Payment) error {
	doc := newPaymentDocument(p)
	doc.Version = p.Version + 1
	if p.Version == 0 {
		if _, err := r.col.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("%w: payment %s exists", payment.ErrConcurrentUpdate, p.ID)
			}
			return err
		}
		p.Version = doc.Version
		return nil
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": doc.ID, "version": p.Version}, bson.M{"$set": doc})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: payment %s at version %d", payment.ErrConcurrentUpdate, p.ID, p.Version)
	}
	p.Version = doc.Version
	return nil
}

func (r *PaymentRepository) ListByBooking(ctx context.Context, bookingID domainbooking.BookingID) ([]*payment.Payment, error) {
	cur, err := r.col.Find(ctx, bson.M{"booking_id": string(bookingID)}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*payment.Payment
	for cur.Next(ctx) {
		var doc paymentDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toPayment())
	}
	return out, cur.Err()
}

type refundDocument struct {
	ID               string        `bson:"id"`
	Amount           moneyDocument `bson:"amount"`
	Reason           string        `bson:"reason,omitempty"`
	GatewayReference string        `bson:"gateway_reference,omitempty"`
	CreatedAt        int64         `bson:"created_at"`
}

type paymentDocument struct {
	ID               string          `bson:"_id"`
	BookingID        string          `bson:"booking_id"`
	Amount           moneyDocument   `bson:"amount"`
	Status           string          `bson:"status"`
	Provider         string          `bson:"provider"`
	GatewayReference string          `bson:"gateway_reference,omitempty"`
	RedirectURL      string          `bson:"redirect_url,omitempty"`
	Refund           *refundDocument `bson:"refund,omitempty"`
	CreatedAt        int64           `bson:"created_at"`
	UpdatedAt        int64           `bson:"updated_at"`
	SettledAt        *int64          `bson:"settled_at,omitempty"`
	Version          int64           `bson:"version"`
}

func newPaymentDocument(p *payment.Payment) paymentDocument {
	doc := paymentDocument{
		ID:               string(p.ID),
		BookingID:        string(p.BookingID),
		Amount:           newMoneyDocument(p.Amount),
		Status:           string(p.Status),
		Provider:         p.Provider,
		GatewayReference: p.GatewayReference,
		RedirectURL:      p.RedirectURL,
		CreatedAt:        p.CreatedAt.UnixMilli(),
		UpdatedAt:        p.UpdatedAt.UnixMilli(),
		SettledAt:        timeToTimestamp(p.SettledAt),
		Version:          p.Version,
	}
	if p.Refund != nil {
		doc.Refund = &refundDocument{
			ID:               p.Refund.ID,
			Amount:           newMoneyDocument(p.Refund.Amount),
			Reason:           p.Refund.Reason,
			GatewayReference: p.Refund.GatewayReference,
			CreatedAt:        p.Refund.CreatedAt.UnixMilli(),
		}
	}
	return doc
}

func (d paymentDocument) toPayment() *payment.Payment {
	p := &payment.Payment{
		ID:               payment.PaymentID(d.ID),
		BookingID:        domainbooking.BookingID(d.BookingID),
		Amount:           d.Amount.toMoney(),
		Status:           payment.Status(d.Status),
		Provider:         d.Provider,
		GatewayReference: d.GatewayReference,
		RedirectURL:      d.RedirectURL,
		CreatedAt:        timestampToTime(d.CreatedAt),
		UpdatedAt:        timestampToTime(d.UpdatedAt),
		SettledAt:        timestampToTimePtr(d.SettledAt),
		Version:          d.Version,
	}
	if d.Refund != nil {
		p.Refund = &payment.Refund{
			ID:               d.Refund.ID,
			Amount:           d.Refund.Amount.toMoney(),
			Reason:           d.Refund.Reason,
			GatewayReference: d.Refund.GatewayReference,
			CreatedAt:        time.UnixMilli(d.Refund.CreatedAt).UTC(),
		}
	}
	return p
}

var _ payment.Repository = (*PaymentRepository)(nil)
