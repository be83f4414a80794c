package sqlquery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/resbridge/pkg/config"
	"github.com/ajitpratap0/resbridge/pkg/testutil"
)

// fileSuite runs against a SQLite file shared by every test of the suite.
type fileSuite struct {
	testutil.ConnectorSuite
}

func TestFileSuite(t *testing.T) {
	s := &fileSuite{}
	s.Config = func(cs *testutil.ConnectorSuite) *config.BaseConfig {
		cfg := config.NewBaseConfig("counters", "sqlquery")
		cfg.Options["driver"] = "sqlite3"
		cfg.Options["dsn"] = cs.TempPath("counters.db")
		cfg.Options["init"] = `CREATE TABLE IF NOT EXISTS counters (name TEXT PRIMARY KEY, n INTEGER);
INSERT OR IGNORE INTO counters VALUES ('visits', 0);`
		cfg.Options["statement.bump"] = "UPDATE counters SET n = n + 1 WHERE name = 'visits'"
		cfg.Attributes = []config.AttributeConfig{{ID: "visits", Options: map[string]string{
			"type":   "int64",
			"query":  "SELECT n FROM counters WHERE name = 'visits'",
			"update": "UPDATE counters SET n = ? WHERE name = 'visits'",
		}}}
		cfg.Lists = []config.NotificationConfig{{
			ListID:   "visits",
			Category: ChangeCategory,
			Options:  map[string]string{"query": "SELECT n FROM counters WHERE name = 'visits'", "interval": "10ms"},
		}}
		return cfg
	}
	suite.Run(t, s)
}

func (s *fileSuite) TestWriteSurvivesReopen() {
	ok, err := s.Connector.SetAttribute(s.Context(), "visits", time.Second, "41")
	s.Require().NoError(err)
	s.True(ok)
	s.Require().NoError(s.Connector.Close(s.Context()))

	reopened := testutil.NewConnector(s.T(), s.Config(&s.ConnectorSuite))
	v, err := reopened.GetAttribute(s.Context(), "visits", time.Second, nil)
	s.Require().NoError(err)
	s.Equal(int64(41), v)
}

func (s *fileSuite) TestWatcherSeesUpdates() {
	testutil.IntegrationTest(s.T())
	before, err := s.Connector.GetAttribute(s.Context(), "visits", time.Second, nil)
	s.Require().NoError(err)

	rec := &testutil.Recorder{}
	_, err = s.Connector.Subscribe(s.Context(), "visits", rec)
	s.Require().NoError(err)

	// Let the watcher record its baseline before changing the row.
	time.Sleep(50 * time.Millisecond)
	_, err = s.Connector.InvokeAction(s.Context(), "exec", map[string]any{"statement": "bump"}, time.Second)
	s.Require().NoError(err)

	seen := rec.WaitFor(s.T(), 1, 5*time.Second)
	s.Equal(Change{Query: "SELECT n FROM counters WHERE name = 'visits'", Old: before, New: before.(int64) + 1}, seen[0].Data)
}
