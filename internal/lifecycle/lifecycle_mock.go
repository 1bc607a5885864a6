package lifecycle

import (
	"context"

	"github.com/huangsam/apigrade/internal/contract"
	"github.com/stretchr/testify/mock"
)

// MockLifecycle is a mock implementation of Lifecycle for testing.
type MockLifecycle struct {
	mock.Mock
}

var _ contract.Lifecycle = &MockLifecycle{} // Compile-time check

// Name implements the Lifecycle interface.
func (m *MockLifecycle) Name() string {
	return m.Called().String(0)
}

// ProjectID implements the Lifecycle interface.
func (m *MockLifecycle) ProjectID() string {
	return m.Called().String(0)
}

// FetchRepo implements the Lifecycle interface.
func (m *MockLifecycle) FetchRepo(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// ValidateMainFiles implements the Lifecycle interface.
func (m *MockLifecycle) ValidateMainFiles(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// InstallDependencies implements the Lifecycle interface.
func (m *MockLifecycle) InstallDependencies(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// Start implements the Lifecycle interface.
func (m *MockLifecycle) Start(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// Stop implements the Lifecycle interface.
func (m *MockLifecycle) Stop(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockPorts is a mock implementation of PortController for testing.
type MockPorts struct {
	mock.Mock
}

var _ contract.PortController = &MockPorts{} // Compile-time check

// Free implements the PortController interface.
func (m *MockPorts) Free(ctx context.Context, port int) error {
	return m.Called(ctx, port).Error(0)
}
