package registry

import (
	"context"

	"github.com/famkit/location-sharing-backend/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockFamilyRegistry mocks the interfaces.FamilyRegistry interface
type MockFamilyRegistry struct {
	mock.Mock
}

// CreateFamily mocks the CreateFamily method
func (m *MockFamilyRegistry) CreateFamily(ctx context.Context, settings interfaces.FamilySettings) (*interfaces.FamilyDocument, error) {
	args := m.Called(ctx, settings)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.FamilyDocument), args.Error(1)
}

// ResolveConnectionCode mocks the ResolveConnectionCode method
func (m *MockFamilyRegistry) ResolveConnectionCode(ctx context.Context, code interfaces.ConnectionCode) (interfaces.FamilyID, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(interfaces.FamilyID), args.Error(1)
}

// GetFamily mocks the GetFamily method
func (m *MockFamilyRegistry) GetFamily(ctx context.Context, id interfaces.FamilyID) (*interfaces.FamilyDocument, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.FamilyDocument), args.Error(1)
}

// UpdateSettings mocks the UpdateSettings method
func (m *MockFamilyRegistry) UpdateSettings(ctx context.Context, id interfaces.FamilyID, settings interfaces.FamilySettings) (*interfaces.FamilyDocument, error) {
	args := m.Called(ctx, id, settings)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.FamilyDocument), args.Error(1)
}

// SetApprovalStatus mocks the SetApprovalStatus method
func (m *MockFamilyRegistry) SetApprovalStatus(ctx context.Context, id interfaces.FamilyID, status interfaces.ApprovalStatus) (*interfaces.FamilyDocument, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.FamilyDocument), args.Error(1)
}

// UpdateLocation mocks the UpdateLocation method
func (m *MockFamilyRegistry) UpdateLocation(ctx context.Context, id interfaces.FamilyID, envelope interfaces.LocationEnvelope) (*interfaces.FamilyDocument, error) {
	args := m.Called(ctx, id, envelope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.FamilyDocument), args.Error(1)
}

// WatchApproval mocks the WatchApproval method
func (m *MockFamilyRegistry) WatchApproval(ctx context.Context, id interfaces.FamilyID) (<-chan interfaces.ApprovalStatus, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan interfaces.ApprovalStatus), args.Error(1)
}
