package store

import (
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest"
	"github.com/ory/dockertest/docker"
	"github.com/stretchr/testify/require"

	"github.com/Eleven711/ledgersync/crypto"
)

const (
	auditTestUser     = "postgres"
	auditTestPassword = "secret"
	auditTestDB       = "postgres"
	auditTestDSN      = "postgres://%s:%s@localhost:%s/%s?sslmode=disable"
)

// startAuditTestPostgres needs a reachable docker daemon to bring up the
// Postgres container behind auditTestDSN; the test that calls it is
// skipped unless LEDGERSYNC_POSTGRES_TESTS is set.
func startAuditTestPostgres(t *testing.T) string {
	t.Helper()
	pool, err := dockertest.NewPool(os.Getenv("DOCKER_URL"))
	require.NoError(t, err)

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "13",
		Env: []string{
			"POSTGRES_USER=" + auditTestUser,
			"POSTGRES_PASSWORD=" + auditTestPassword,
			"POSTGRES_DB=" + auditTestDB,
		},
		ExposedPorts: []string{"5432"},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			log.Printf("purging audit log test container: %v", err)
		}
	})

	dsn := fmt.Sprintf(auditTestDSN, auditTestUser, auditTestPassword, resource.GetPort("5432/tcp"), auditTestDB)
	var log_ *AuditLog
	require.NoError(t, pool.Retry(func() error {
		opened, err := OpenAuditLog(dsn)
		if err != nil {
			return err
		}
		log_ = opened
		return nil
	}))
	require.NoError(t, log_.Close())
	return dsn
}

func TestAuditLogRecordsAndCountsCompletions(t *testing.T) {
	if os.Getenv("LEDGERSYNC_POSTGRES_TESTS") == "" {
		t.Skip("set LEDGERSYNC_POSTGRES_TESTS=1 to run audit log tests against a real Postgres container")
	}
	dsn := startAuditTestPostgres(t)

	a, err := OpenAuditLog(dsn)
	require.NoError(t, err)
	defer a.Close()

	ok := crypto.Sum256([]byte("ok"))
	bad := crypto.Sum256([]byte("bad"))

	require.NoError(t, a.RecordCompletion(ok, true, time.Now()))
	require.NoError(t, a.RecordCompletion(bad, false, time.Now()))

	count, err := a.SucceededCount()
	require.NoError(t, err)
	require.Equal(t, 1, count)

	// Re-recording the same hash overwrites rather than duplicates.
	require.NoError(t, a.RecordCompletion(ok, true, time.Now()))
	count, err = a.SucceededCount()
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
