// Package mocks holds testify mocks for storage_manager interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// FileProvider is a mock of storage_manager.FileProvider.
type FileProvider struct {
	mock.Mock
}

// NewFileProvider creates a mock whose expectations are asserted on cleanup.
func NewFileProvider(t interface {
	mock.TestingT
	Cleanup(func())
}) *FileProvider {
	m := &FileProvider{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// FileProviderExpecter gives typed access to expectations.
type FileProviderExpecter struct {
	mock *mock.Mock
}

func (m *FileProvider) EXPECT() *FileProviderExpecter {
	return &FileProviderExpecter{mock: &m.Mock}
}

func (m *FileProvider) Read(ctx context.Context, path string) ([]byte, error) {
	args := m.Called(ctx, path)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (e *FileProviderExpecter) Read(ctx, path interface{}) *mock.Call {
	return e.mock.On("Read", ctx, path)
}

func (m *FileProvider) Write(ctx context.Context, path string, data []byte) error {
	return m.Called(ctx, path, data).Error(0)
}

func (e *FileProviderExpecter) Write(ctx, path, data interface{}) *mock.Call {
	return e.mock.On("Write", ctx, path, data)
}

func (m *FileProvider) Exists(ctx context.Context, path string) (bool, error) {
	args := m.Called(ctx, path)
	return args.Bool(0), args.Error(1)
}

func (e *FileProviderExpecter) Exists(ctx, path interface{}) *mock.Call {
	return e.mock.On("Exists", ctx, path)
}

func (m *FileProvider) Delete(ctx context.Context, path string) error {
	return m.Called(ctx, path).Error(0)
}

func (e *FileProviderExpecter) Delete(ctx, path interface{}) *mock.Call {
	return e.mock.On("Delete", ctx, path)
}

func (m *FileProvider) List(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	paths, _ := args.Get(0).([]string)
	return paths, args.Error(1)
}

func (e *FileProviderExpecter) List(ctx, prefix interface{}) *mock.Call {
	return e.mock.On("List", ctx, prefix)
}
