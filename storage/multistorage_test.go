package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/famkit/location-sharing-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockDocumentBackend implements interfaces.DocumentBackend for testing
type MockDocumentBackend struct {
	mock.Mock
	name string
}

func (m *MockDocumentBackend) Fetch(ctx context.Context, kind interfaces.DocumentKind, key string) ([]byte, error) {
	args := m.Called(ctx, kind, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockDocumentBackend) Store(ctx context.Context, kind interfaces.DocumentKind, key string, data []byte) error {
	args := m.Called(ctx, kind, key, data)
	return args.Error(0)
}

func (m *MockDocumentBackend) Delete(ctx context.Context, kind interfaces.DocumentKind, key string) error {
	args := m.Called(ctx, kind, key)
	return args.Error(0)
}

func (m *MockDocumentBackend) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockDocumentBackend) Name() string {
	return m.name
}

func (m *MockDocumentBackend) LocationURI() string {
	return "mock:"
}

func TestMultiBackend_Available(t *testing.T) {
	tests := []struct {
		name     string
		backends []bool
		expected bool
	}{
		{
			name:     "all backends available",
			backends: []bool{true, true, true},
			expected: true,
		},
		{
			name:     "some backends available",
			backends: []bool{false, true, false},
			expected: true,
		},
		{
			name:     "no backends available",
			backends: []bool{false, false, false},
			expected: false,
		},
		{
			name:     "no backends",
			backends: []bool{},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var backends []interfaces.DocumentBackend
			for i, available := range tt.backends {
				mockBackend := &MockDocumentBackend{name: fmt.Sprintf("mock-%d", i)}
				mockBackend.On("Available", mock.Anything).Return(available).Maybe()
				backends = append(backends, mockBackend)
			}

			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			multi := NewMultiBackend(backends, logger)

			assert.Equal(t, tt.expected, multi.Available(context.Background()))

			for _, backend := range backends {
				backend.(*MockDocumentBackend).AssertExpectations(t)
			}
		})
	}
}

func TestMultiBackend_Fetch(t *testing.T) {
	testData := []byte(`{"family_id":"f_abc"}`)
	testErr := errors.New("backend exploded")

	tests := []struct {
		name          string
		setupMocks    func() []interfaces.DocumentBackend
		expectedData  []byte
		expectedErr   error
		expectGeneric bool
	}{
		{
			name: "first backend successful",
			setupMocks: func() []interfaces.DocumentBackend {
				mock1 := &MockDocumentBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Fetch", mock.Anything, interfaces.FamilyKind, "f_abc").Return(testData, nil)

				mock2 := &MockDocumentBackend{name: "mock-B"}
				return []interfaces.DocumentBackend{mock1, mock2}
			},
			expectedData: testData,
		},
		{
			name: "fallback to second backend",
			setupMocks: func() []interfaces.DocumentBackend {
				mock1 := &MockDocumentBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Fetch", mock.Anything, interfaces.FamilyKind, "f_abc").Return(nil, testErr)

				mock2 := &MockDocumentBackend{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Fetch", mock.Anything, interfaces.FamilyKind, "f_abc").Return(testData, nil)
				return []interfaces.DocumentBackend{mock1, mock2}
			},
			expectedData: testData,
		},
		{
			name: "unavailable backend skipped",
			setupMocks: func() []interfaces.DocumentBackend {
				mock1 := &MockDocumentBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(false)

				mock2 := &MockDocumentBackend{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Fetch", mock.Anything, interfaces.FamilyKind, "f_abc").Return(testData, nil)
				return []interfaces.DocumentBackend{mock1, mock2}
			},
			expectedData: testData,
		},
		{
			name: "not found everywhere reports not found",
			setupMocks: func() []interfaces.DocumentBackend {
				mock1 := &MockDocumentBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Fetch", mock.Anything, interfaces.FamilyKind, "f_abc").Return(nil, interfaces.ErrDocumentNotFound)

				mock2 := &MockDocumentBackend{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Fetch", mock.Anything, interfaces.FamilyKind, "f_abc").Return(nil, interfaces.ErrDocumentNotFound)
				return []interfaces.DocumentBackend{mock1, mock2}
			},
			expectedErr: interfaces.ErrDocumentNotFound,
		},
		{
			name: "all backends fail",
			setupMocks: func() []interfaces.DocumentBackend {
				mock1 := &MockDocumentBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Fetch", mock.Anything, interfaces.FamilyKind, "f_abc").Return(nil, testErr)

				mock2 := &MockDocumentBackend{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Fetch", mock.Anything, interfaces.FamilyKind, "f_abc").Return(nil, testErr)
				return []interfaces.DocumentBackend{mock1, mock2}
			},
			expectGeneric: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backends := tt.setupMocks()
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			multi := NewMultiBackend(backends, logger)

			data, err := multi.Fetch(context.Background(), interfaces.FamilyKind, "f_abc")

			switch {
			case tt.expectedErr != nil:
				assert.ErrorIs(t, err, tt.expectedErr)
			case tt.expectGeneric:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.expectedData, data)
			}
		})
	}
}

func TestMultiBackend_Store(t *testing.T) {
	data := []byte(`{"family_id":"f_abc"}`)
	testErr := errors.New("write refused")

	t.Run("replicates to all available backends", func(t *testing.T) {
		mock1 := &MockDocumentBackend{name: "mock-A"}
		mock1.On("Available", mock.Anything).Return(true)
		mock1.On("Store", mock.Anything, interfaces.FamilyKind, "f_abc", data).Return(nil)

		mock2 := &MockDocumentBackend{name: "mock-B"}
		mock2.On("Available", mock.Anything).Return(true)
		mock2.On("Store", mock.Anything, interfaces.FamilyKind, "f_abc", data).Return(nil)

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		multi := NewMultiBackend([]interfaces.DocumentBackend{mock1, mock2}, logger)

		require.NoError(t, multi.Store(context.Background(), interfaces.FamilyKind, "f_abc", data))
		mock1.AssertExpectations(t)
		mock2.AssertExpectations(t)
	})

	t.Run("succeeds when at least one backend accepts", func(t *testing.T) {
		mock1 := &MockDocumentBackend{name: "mock-A"}
		mock1.On("Available", mock.Anything).Return(true)
		mock1.On("Store", mock.Anything, interfaces.FamilyKind, "f_abc", data).Return(testErr)

		mock2 := &MockDocumentBackend{name: "mock-B"}
		mock2.On("Available", mock.Anything).Return(true)
		mock2.On("Store", mock.Anything, interfaces.FamilyKind, "f_abc", data).Return(nil)

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		multi := NewMultiBackend([]interfaces.DocumentBackend{mock1, mock2}, logger)

		require.NoError(t, multi.Store(context.Background(), interfaces.FamilyKind, "f_abc", data))
	})

	t.Run("fails when every backend refuses", func(t *testing.T) {
		mock1 := &MockDocumentBackend{name: "mock-A"}
		mock1.On("Available", mock.Anything).Return(true)
		mock1.On("Store", mock.Anything, interfaces.FamilyKind, "f_abc", data).Return(testErr)

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		multi := NewMultiBackend([]interfaces.DocumentBackend{mock1}, logger)

		assert.Error(t, multi.Store(context.Background(), interfaces.FamilyKind, "f_abc", data))
	})
}
