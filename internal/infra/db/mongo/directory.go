package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stayhub/internal/app/policies"
	domainbooking "stayhub/internal/domain/booking"
	"stayhub/internal/domain/shared/money"
)

// Directory reads the property catalogue and user records owned by other services.
type Directory struct {
	properties *mongo.Collection
	users      *mongo.Collection
}

func NewDirectory(db *mongo.Database) *Directory {
	return &Directory{properties: db.Collection("properties"), users: db.Collection("users")}
}

type propertyDocument struct {
	ID            string        `bson:"_id"`
	OwnerID       string        `bson:"owner_id"`
	Capacity      int           `bson:"capacity"`
	PricePerNight moneyDocument `bson:"price_per_night"`
	Title         string        `bson:"title,omitempty"`
}

type userDocument struct {
	ID   string `bson:"_id"`
	Role string `bson:"role"`
	Name string `bson:"name,omitempty"`
}

func (d *Directory) property(ctx context.Context, id domainbooking.PropertyID) (propertyDocument, error) {
	var doc propertyDocument
	if err := d.properties.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return doc, fmt.Errorf("%w: %s", policies.ErrPropertyNotFound, id)
		}
		return doc, err
	}
	return doc, nil
}

func (d *Directory) Owner(ctx context.Context, id domainbooking.PropertyID) (domainbooking.UserID, error) {
	p, err := d.property(ctx, id)
	return domainbooking.UserID(p.OwnerID), err
}

func (d *Directory) Capacity(ctx context.Context, id domainbooking.PropertyID) (int, error) {
	p, err := d.property(ctx, id)
	return p.Capacity, err
}

func (d *Directory) PricePerNight(ctx context.Context, id domainbooking.PropertyID) (money.Money, error) {
	p, err := d.property(ctx, id)
	return p.PricePerNight.toMoney(), err
}

func (d *Directory) Exists(ctx context.Context, id domainbooking.UserID) (bool, error) {
	n, err := d.users.CountDocuments(ctx, bson.M{"_id": string(id)}, options.Count().SetLimit(1))
	return n > 0, err
}

func (d *Directory) Role(ctx context.Context, id domainbooking.UserID) (domainbooking.Role, error) {
	var doc userDocument
	if err := d.users.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", fmt.Errorf("%w: %s", policies.ErrUserNotFound, id)
		}
		return "", err
	}
	return domainbooking.Role(doc.Role), nil
}

// UpsertProperty seeds or refreshes a catalogue entry.
func (d *Directory) UpsertProperty(ctx context.Context, id domainbooking.PropertyID, owner domainbooking.UserID, capacity int, price money.Money, title string) error {
	doc := propertyDocument{ID: string(id), OwnerID: string(owner), Capacity: capacity, PricePerNight: newMoneyDocument(price), Title: title}
	_, err := d.properties.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (d *Directory) UpsertUser(ctx context.Context, id domainbooking.UserID, role domainbooking.Role, name string) error {
	doc := userDocument{ID: string(id), Role: string(role), Name: name}
	_, err := d.users.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

var (
	_ policies.PropertyLookup = (*Directory)(nil)
	_ policies.UserLookup     = (*Directory)(nil)
)
