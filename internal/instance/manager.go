package instance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aischolar/scholar/internal/vectorstore"
)

// Info describes one instance and its backing collection.
type Info struct {
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	Collection    string            `json:"collection"`
	DocumentCount int64             `json:"document_count"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Manager creates, lists and deletes instances on top of the vector store.
type Manager struct {
	store  *vectorstore.Store
	logger *slog.Logger
}

// NewManager creates an instance manager.
func NewManager(store *vectorstore.Store, logger *slog.Logger) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		logger: logger.With("component", "instance"),
	}, nil
}

// Create validates the name and creates the instance's collection.
// Returns ErrInstanceExists if the instance already exists.
func (m *Manager) Create(ctx context.Context, name, description string) (Info, error) {
	if err := ValidateName(name); err != nil {
		return Info{}, err
	}

	metadata := map[string]string{"instance_name": name}
	if description != "" {
		metadata["description"] = description
	}

	info, err := m.store.CreateCollection(ctx, CollectionName(name), name, metadata)
	if err != nil {
		if errors.Is(err, vectorstore.ErrCollectionExists) {
			return Info{}, fmt.Errorf("%w: %q", ErrInstanceExists, name)
		}
		return Info{}, fmt.Errorf("creating instance %q: %w", name, err)
	}

	m.logger.Info("instance created", "name", name)
	return Info{
		Name:        name,
		Description: description,
		Collection:  info.Name,
		Metadata:    info.Metadata,
		CreatedAt:   info.CreatedAt,
		UpdatedAt:   info.UpdatedAt,
	}, nil
}

// Get returns an instance with its current document count.
// Returns ErrInstanceNotFound if it does not exist.
func (m *Manager) Get(ctx context.Context, name string) (Info, error) {
	if err := ValidateName(name); err != nil {
		return Info{}, err
	}

	collection := CollectionName(name)
	colInfo, err := m.store.GetCollection(ctx, collection)
	if err != nil {
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			return Info{}, fmt.Errorf("%w: %q", ErrInstanceNotFound, name)
		}
		return Info{}, fmt.Errorf("getting instance %q: %w", name, err)
	}

	count, err := m.store.Count(ctx, collection)
	if err != nil {
		return Info{}, fmt.Errorf("counting documents for %q: %w", name, err)
	}

	return Info{
		Name:          name,
		Description:   colInfo.Metadata["description"],
		Collection:    collection,
		DocumentCount: count,
		Metadata:      colInfo.Metadata,
		CreatedAt:     colInfo.CreatedAt,
		UpdatedAt:     colInfo.UpdatedAt,
	}, nil
}

// List returns all instances, skipping collections outside the instance
// namespace.
func (m *Manager) List(ctx context.Context) ([]Info, error) {
	collections, err := m.store.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing instances: %w", err)
	}

	infos := make([]Info, 0, len(collections))
	for _, col := range collections {
		name, ok := InstanceNameFromCollection(col.Name)
		if !ok {
			continue
		}
		count, err := m.store.Count(ctx, col.Name)
		if err != nil {
			m.logger.Warn("failed to count documents", "instance", name, "error", err)
		}
		infos = append(infos, Info{
			Name:          name,
			Description:   col.Metadata["description"],
			Collection:    col.Name,
			DocumentCount: count,
			Metadata:      col.Metadata,
			CreatedAt:     col.CreatedAt,
			UpdatedAt:     col.UpdatedAt,
		})
	}
	return infos, nil
}

// Delete removes an instance and all its documents.
// Returns ErrInstanceNotFound if it does not exist.
func (m *Manager) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	err := m.store.DeleteCollection(ctx, CollectionName(name))
	if err != nil {
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			return fmt.Errorf("%w: %q", ErrInstanceNotFound, name)
		}
		return fmt.Errorf("deleting instance %q: %w", name, err)
	}

	m.logger.Info("instance deleted", "name", name)
	return nil
}

// Exists reports whether the named instance exists.
func (m *Manager) Exists(ctx context.Context, name string) (bool, error) {
	_, err := m.Get(ctx, name)
	if err != nil {
		if errors.Is(err, ErrInstanceNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
