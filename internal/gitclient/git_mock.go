package gitclient

import (
	"context"

	"github.com/huangsam/cfpscan/internal/contract"
	"github.com/stretchr/testify/mock"
)

// MockGitClient is a mock implementation of contract.GitClient.
type MockGitClient struct {
	mock.Mock
}

var _ contract.GitClient = &MockGitClient{} // Compile-time check

// Run mocks the Run method.
func (m *MockGitClient) Run(ctx context.Context, repoPath string, args ...string) ([]byte, error) {
	ret := m.Called(ctx, repoPath, args)
	var out []byte
	if v := ret.Get(0); v != nil {
		out = v.([]byte)
	}
	return out, ret.Error(1)
}

// Clone mocks the Clone method.
func (m *MockGitClient) Clone(ctx context.Context, url, dest string) error {
	return m.Called(ctx, url, dest).Error(0)
}
