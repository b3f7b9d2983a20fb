package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/store"
)

type Directory struct {
	mu        sync.RWMutex
	customers map[uuid.UUID]domain.Customer
	staff     map[uuid.UUID]domain.Staff
	services  map[uuid.UUID]domain.Service
}

func NewDirectory() *Directory {
	return &Directory{
		customers: make(map[uuid.UUID]domain.Customer),
		staff:     make(map[uuid.UUID]domain.Staff),
		services:  make(map[uuid.UUID]domain.Service),
	}
}

var _ store.Directory = (*Directory)(nil)

func (d *Directory) PutCustomer(c domain.Customer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.customers[c.ID] = c
}

func (d *Directory) PutStaff(s domain.Staff) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.staff[s.ID] = s
}

func (d *Directory) PutService(s domain.Service) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.services[s.ID] = s
}

func (d *Directory) GetCustomer(ctx context.Context, customerID uuid.UUID) (domain.Customer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.customers[customerID]
	if !ok {
		return domain.Customer{}, store.ErrNotFound
	}
	return c, nil
}

func (d *Directory) GetStaff(ctx context.Context, staffID uuid.UUID) (domain.Staff, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.staff[staffID]
	if !ok {
		return domain.Staff{}, store.ErrNotFound
	}
	return s, nil
}

func (d *Directory) GetService(ctx context.Context, serviceID uuid.UUID) (domain.Service, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.services[serviceID]
	if !ok {
		return domain.Service{}, store.ErrNotFound
	}
	return s, nil
}
