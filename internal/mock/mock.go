// Package mock provides testify mocks for the repository and storage
// interfaces.
package mock

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/reachscan/internal/repository"
	"github.com/reachscan/internal/storage"
	"github.com/reachscan/pkg/model"
)

var (
	_ repository.CheckRepository = (*MockCheckRepository)(nil)
	_ storage.Storage            = (*MockStorage)(nil)
)

// MockCheckRepository is a mock implementation of repository.CheckRepository.
type MockCheckRepository struct {
	mock.Mock
}

// Save mocks the Save method.
func (m *MockCheckRepository) Save(ctx context.Context, report *model.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

// Get mocks the Get method.
func (m *MockCheckRepository) Get(ctx context.Context, checkID string) (*model.Report, error) {
	args := m.Called(ctx, checkID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Report), args.Error(1)
}

// List mocks the List method.
func (m *MockCheckRepository) List(ctx context.Context, limit int) ([]*model.Report, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Report), args.Error(1)
}

// MockStorage is a mock implementation of storage.Storage.
type MockStorage struct {
	mock.Mock
}

// Open mocks the Open method.
func (m *MockStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

// Fetch mocks the Fetch method.
func (m *MockStorage) Fetch(ctx context.Context, key string, localPath string) error {
	args := m.Called(ctx, key, localPath)
	return args.Error(0)
}

// Exists mocks the Exists method.
func (m *MockStorage) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// URL mocks the URL method.
func (m *MockStorage) URL(key string) string {
	args := m.Called(key)
	return args.String(0)
}
