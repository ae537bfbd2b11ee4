package identity

import (
	"github.com/stretchr/testify/mock"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Resolve(token string) (string, error) {
	args := m.Called(token)
	return args.String(0), args.Error(1)
}
