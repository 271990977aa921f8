package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"stayhub/internal/app/policies"
	domainbooking "stayhub/internal/domain/booking"
	"stayhub/internal/domain/shared/money"
)

type Property struct {
	ID            domainbooking.PropertyID `json:"id"`
	OwnerID       domainbooking.UserID     `json:"owner_id"`
	Capacity      int                      `json:"capacity"`
	PricePerNight money.Money              `json:"price_per_night"`
	Title         string                   `json:"title"`
}

type User struct {
	ID   domainbooking.UserID `json:"id"`
	Role domainbooking.Role   `json:"role"`
	Name string               `json:"name"`
}

// Directory serves property and user lookups from memory.
type Directory struct {
	mu         sync.RWMutex
	properties map[domainbooking.PropertyID]Property
	users      map[domainbooking.UserID]User
}

func NewDirectory() *Directory {
	return &Directory{
		properties: make(map[domainbooking.PropertyID]Property),
		users:      make(map[domainbooking.UserID]User),
	}
}

func (d *Directory) PutProperty(p Property) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.properties[p.ID] = p
}

func (d *Directory) PutUser(u User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *Directory) property(id domainbooking.PropertyID) (Property, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.properties[id]
	if !ok {
		return Property{}, fmt.Errorf("%w: %s", policies.ErrPropertyNotFound, id)
	}
	return p, nil
}

func (d *Directory) Owner(_ context.Context, id domainbooking.PropertyID) (domainbooking.UserID, error) {
	p, err := d.property(id)
	return p.OwnerID, err
}

func (d *Directory) Capacity(_ context.Context, id domainbooking.PropertyID) (int, error) {
	p, err := d.property(id)
	return p.Capacity, err
}

func (d *Directory) PricePerNight(_ context.Context, id domainbooking.PropertyID) (money.Money, error) {
	p, err := d.property(id)
	return p.PricePerNight, err
}

func (d *Directory) Exists(_ context.Context, id domainbooking.UserID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.users[id]
	return ok, nil
}

func (d *Directory) Role(_ context.Context, id domainbooking.UserID) (domainbooking.Role, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", policies.ErrUserNotFound, id)
	}
	return u.Role, nil
}

// Fixtures is the on-disk seed format for local runs.
type Fixtures struct {
	Users      []User     `json:"users"`
	Properties []Property `json:"properties"`
}

// ReadFixtures decodes a fixture file. Prices without a currency take defaultCurrency.
func ReadFixtures(path, defaultCurrency string) (Fixtures, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Fixtures{}, err
	}
	var fx Fixtures
	if err := json.Unmarshal(raw, &fx); err != nil {
		return Fixtures{}, fmt.Errorf("memory: decode fixtures %s: %w", path, err)
	}
	for i, p := range fx.Properties {
		if p.PricePerNight.Currency != "" {
			continue
		}
		price, err := money.New(p.PricePerNight.Amount, defaultCurrency)
		if err != nil {
			return Fixtures{}, fmt.Errorf("memory: property %s has no currency: %w", p.ID, err)
		}
		fx.Properties[i].PricePerNight = price
	}
	return fx, nil
}

// LoadFixtures reads a JSON fixture file into d and returns how many records were loaded.
func (d *Directory) LoadFixtures(path, defaultCurrency string) (int, error) {
	fx, err := ReadFixtures(path, defaultCurrency)
	if err != nil {
		return 0, err
	}
	for _, u := range fx.Users {
		d.PutUser(u)
	}
	for _, p := range fx.Properties {
		d.PutProperty(p)
	}
	return len(fx.Users) + len(fx.Properties), nil
}

var (
	_ policies.PropertyLookup = (*Directory)(nil)
	_ policies.UserLookup     = (*Directory)(nil)
)
