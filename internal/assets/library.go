package assets

import (
	"context"
	"fmt"
)

// Library pairs a catalog with the loader that serves its model files.
type Library struct {
	Catalog *Catalog
	Loader  Loader
}

func NewLibrary(catalog *Catalog, loader Loader) *Library {
	return &Library{Catalog: catalog, Loader: loader}
}

// Model returns the model bytes of a car. An empty id selects the default car.
func (l *Library) Model(ctx context.Context, carID string) ([]byte, error) {
	car, err := l.Catalog.Car(carID)
	if err != nil {
		return nil, err
	}
	select {
	case res := <-LoadAsync(ctx, l.Loader, car.Model):
		if res.Err != nil {
			return nil, fmt.Errorf("car %q: %w", car.ID, res.Err)
		}
		return res.Data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Preload loads every model once, limit at a time, to fail fast on a
// catalog that references missing files.
func (l *Library) Preload(ctx context.Context, limit int) error {
	_, err := LoadAll(ctx, l.Loader, limit, l.Catalog.Models()...)
	return err
}
