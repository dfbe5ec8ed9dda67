package audit_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restopay/internal/domain/audit"
	"restopay/internal/platform/config"
	"restopay/internal/platform/db"
)

func TestRecordAndList(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.Connect(ctx, config.Config{DatabaseURL: dbURL})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(ctx, pool, "../../../migrations"))

	actor := "it-" + uuid.NewString()[:8]
	t.Cleanup(func() { _, _ = pool.Exec(ctx, "DELETE FROM audit_events WHERE actor_id = $1", actor) })

	log := audit.New(pool)
	require.NoError(t, log.Record(ctx, audit.Entry{
		ActorID:    actor,
		Action:     audit.ActionRunCreated,
		EntityType: audit.EntityRun,
		EntityID:   "run-1",
		Details:    map[string]any{"isValid": true},
	}))
	require.NoError(t, log.Record(ctx, audit.Entry{
		ActorID:    actor,
		Action:     audit.ActionPayrollHoursUpdated,
		EntityType: audit.EntityPayrollHours,
		EntityID:   "2031-03-03/2031-03-09",
	}))

	total, err := log.Count(ctx, audit.Filter{ActorID: actor})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	events, err := log.List(ctx, audit.Filter{ActorID: actor, Action: audit.ActionRunCreated}, true, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "run-1", events[0].EntityID)
	var details map[string]any
	require.NoError(t, json.Unmarshal(events[0].Details, &details))
	assert.Equal(t, true, details["isValid"])

	all, err := log.List(ctx, audit.Filter{ActorID: actor}, false, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, audit.ActionPayrollHoursUpdated, all[0].Action)
	assert.Nil(t, all[0].Details)
}
