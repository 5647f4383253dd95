package catalog

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trialviewer/internal/monitoring"
	"github.com/banshee-data/trialviewer/internal/sessionio"
	"github.com/banshee-data/trialviewer/internal/testutil"
	"github.com/banshee-data/trialviewer/internal/timeseries"
)

func init() {
	monitoring.SetLogger(nil)
}

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(testutil.TempDBPath(t))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func synthetic(name string) *sessionio.Session {
	return sessionio.Synthetic(sessionio.SyntheticOptions{Name: name, Trials: 6, TrialFrames: 100, Seed: 3})
}

func TestOpen_MigratesToLatest(t *testing.T) {
	c := openTestCatalog(t)
	version, dirty, err := c.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// a second MigrateUp is a no-op
	require.NoError(t, c.MigrateUp())
}

func TestMigrateDownAndUp(t *testing.T) {
	c := openTestCatalog(t)

	require.NoError(t, c.MigrateDown())
	version, _, err := c.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var cols int
	require.NoError(t, c.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('sessions') WHERE name = 'subject'`).Scan(&cols))
	assert.Equal(t, 0, cols)

	require.NoError(t, c.MigrateTo(2))
	require.NoError(t, c.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('sessions') WHERE name = 'subject'`).Scan(&cols))
	assert.Equal(t, 1, cols)
}

func TestOpenUnmigrated(t *testing.T) {
	path := testutil.TempDBPath(t)
	c, err := OpenUnmigrated(path)
	require.NoError(t, err)
	version, _, err := c.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	require.NoError(t, c.MigrateTo(1))
	require.NoError(t, c.Close())

	c, err = OpenUnmigrated(path)
	require.NoError(t, err)
	defer c.Close()
	version, _, err = c.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version, "reopening leaves the schema alone")
}

func TestImportAndLoad(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()
	s := synthetic("KS014_2019-12-03")

	info, err := c.Import(ctx, s, ImportOptions{Subject: "KS014"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, info.ID)
	assert.Equal(t, "KS014_2019-12-03", info.Name)
	assert.Equal(t, "KS014", info.Subject)
	assert.Equal(t, 600, info.Frames)
	assert.Equal(t, 6, info.Trials)
	assert.Equal(t, s.Bytes, info.ChannelBytes)
	assert.NotEmpty(t, info.Size())

	correct := 0
	for _, r := range s.Trials {
		if r.Correct {
			correct++
		}
	}
	assert.Equal(t, correct, info.Correct)

	recs, err := c.Trials(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Trials, recs)

	loaded, err := c.Load(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Channels, loaded.Channels)
	store, index, err := loaded.Open()
	require.NoError(t, err)
	assert.Equal(t, 600, store.Len())
	assert.Equal(t, 6, index.Count())
}

func TestImport_Rejects(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	_, err := c.Import(ctx, synthetic("dup"), ImportOptions{})
	require.NoError(t, err)
	_, err = c.Import(ctx, synthetic("dup"), ImportOptions{})
	assert.True(t, errors.Is(err, ErrDuplicateSession))

	broken := synthetic("broken")
	delete(broken.Channels, timeseries.WheelAngleSignal)
	_, err = c.Import(ctx, broken, ImportOptions{})
	assert.True(t, errors.Is(err, timeseries.ErrUnknownChannel))

	sessions, err := c.Sessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 1, "failed imports leave nothing behind")
}

func TestResolveAndDelete(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	a, err := c.Import(ctx, synthetic("alpha"), ImportOptions{})
	require.NoError(t, err)
	_, err = c.Import(ctx, synthetic("beta"), ImportOptions{})
	require.NoError(t, err)

	byName, err := c.Resolve(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, a.ID, byName.ID)

	byID, err := c.Resolve(ctx, a.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "alpha", byID.Name)

	_, err = c.Resolve(ctx, "gamma")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
	_, err = c.Session(ctx, uuid.New())
	assert.True(t, errors.Is(err, ErrSessionNotFound))
	_, err = c.Trials(ctx, uuid.New())
	assert.True(t, errors.Is(err, ErrSessionNotFound))

	require.NoError(t, c.Delete(ctx, a.ID))
	assert.True(t, errors.Is(c.Delete(ctx, a.ID), ErrSessionNotFound))

	var orphans int
	require.NoError(t, c.QueryRow(`SELECT COUNT(*) FROM channels WHERE session_id = ?`, a.ID.String()).Scan(&orphans))
	assert.Zero(t, orphans, "channels cascade with their session")

	sessions, err := c.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "beta", sessions[0].Name)
}

func TestSummarize(t *testing.T) {
	st := Summarize("x", []float32{1, 2, 3, float32(math.NaN()), 4})
	assert.Equal(t, 5, st.Frames)
	assert.Equal(t, 1, st.NaN)
	assert.Equal(t, 1.0, st.Min)
	assert.Equal(t, 4.0, st.Max)
	assert.InDelta(t, 2.5, st.Mean, 1e-9)
	assert.InDelta(t, 1.2909944, st.StdDev, 1e-6)

	one := Summarize("y", []float32{7})
	assert.Equal(t, 0.0, one.StdDev)

	empty := Summarize("z", nil)
	assert.Equal(t, ChannelStats{Name: "z"}, empty)
}

func TestChannelStats(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()
	info, err := c.Import(ctx, synthetic("stats"), ImportOptions{})
	require.NoError(t, err)

	stats, err := c.ChannelStats(ctx, info.ID)
	require.NoError(t, err)
	require.Len(t, stats, len(timeseries.Required()))
	for i := 1; i < len(stats); i++ {
		assert.Less(t, stats[i-1].Name, stats[i].Name)
	}
	for _, st := range stats {
		assert.Equal(t, 600, st.Frames)
		assert.LessOrEqual(t, st.Min, st.Mean)
		assert.GreaterOrEqual(t, st.Max, st.Mean)
	}
}

func TestAdminRoutes(t *testing.T) {
	c := openTestCatalog(t)
	_, err := c.Import(context.Background(), synthetic("backup"), ImportOptions{})
	require.NoError(t, err)

	mux := http.NewServeMux()
	require.NoError(t, c.AttachAdminRoutes(mux))

	rec := httptest.NewRecorder()
	c.serveBackup(rec, httptest.NewRequest(http.MethodGet, "/debug/backup", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "SQLite format 3\x00", string(data[:16]))
}
