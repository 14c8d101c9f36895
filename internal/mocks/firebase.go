package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/build1/unityconfig/pkg/firebase"
)

var _ firebase.Client = (*MockRemoteClient)(nil)

// MockRemoteClient mocks firebase.Client.
type MockRemoteClient struct {
	mock.Mock
}

// SetConfigSettings mocks the SetConfigSettings method.
func (m *MockRemoteClient) SetConfigSettings(ctx context.Context, s firebase.ConfigSettings) error {
	return m.Called(ctx, s).Error(0)
}

// FetchAndActivate mocks the FetchAndActivate method.
func (m *MockRemoteClient) FetchAndActivate(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

// AllValues mocks the AllValues method.
func (m *MockRemoteClient) AllValues() map[string]string {
	args := m.Called()
	var values map[string]string
	if args.Get(0) != nil {
		values = args.Get(0).(map[string]string)
	}
	return values
}
