package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/resbridge/pkg/config"
	"github.com/ajitpratap0/resbridge/pkg/connector"
)

// ConnectorSuite builds a fresh connector from Config before every test and
// closes it afterwards. Embed it and set Config in SetupSuite or before
// suite.Run.
type ConnectorSuite struct {
	suite.Suite

	// Config returns the configuration of the connector under test.
	Config func(s *ConnectorSuite) *config.BaseConfig

	Connector *connector.Connector
	ctx       context.Context
	cancel    context.CancelFunc
	tempDir   string
}

// SetupSuite creates the suite's temp directory.
func (s *ConnectorSuite) SetupSuite() {
	dir, err := os.MkdirTemp("", "resbridge-test-*")
	require.NoError(s.T(), err)
	s.tempDir = dir
}

// TearDownSuite removes the temp directory.
func (s *ConnectorSuite) TearDownSuite() {
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
}

// SetupTest builds the connector under test.
func (s *ConnectorSuite) SetupTest() {
	require.NotNil(s.T(), s.Config, "ConnectorSuite.Config must be set")
	s.ctx, s.cancel = context.WithTimeout(context.Background(), time.Minute)
	s.Connector = NewConnector(s.T(), s.Config(s))
}

// TearDownTest closes the connector if the test left it open.
func (s *ConnectorSuite) TearDownTest() {
	if s.Connector != nil && !s.Connector.IsClosed() {
		s.NoError(s.Connector.Close(context.Background()))
	}
	s.cancel()
}

// Context returns the per-test context.
func (s *ConnectorSuite) Context() context.Context {
	return s.ctx
}

// TempPath returns a path inside the suite's temp directory.
func (s *ConnectorSuite) TempPath(name string) string {
	return filepath.Join(s.tempDir, name)
}

// IntegrationTest skips timing-dependent tests in short mode.
func IntegrationTest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}
