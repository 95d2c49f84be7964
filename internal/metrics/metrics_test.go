package metrics

import (
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/isle/internal/errors"
	"github.com/conneroisu/isle/internal/loader"
)

var _ loader.Observer = (*Metrics)(nil)

func TestHookInvokedLabels(t *testing.T) {
	m := New()

	m.HookInvoked("css-scoping", loader.PhaseLoad, nil)
	m.HookInvoked("css-scoping", loader.PhaseLoad, nil)
	m.HookInvoked("client-only", loader.PhaseResolve, errors.NewResolutionError("./x.js", "file:///a.js", nil))
	m.HookInvoked("universal", loader.PhaseLoad, io.EOF)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.hookCalls.WithLabelValues("css-scoping", "load", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.hookCalls.WithLabelValues("client-only", "resolve", "error:resolution")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.hookCalls.WithLabelValues("universal", "load", "error:internal")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.hookCalls))
}

func TestBuildFinished(t *testing.T) {
	m := New()

	m.BuildFinished(120*time.Millisecond, nil)
	m.BuildFinished(time.Second, errors.NewAnalysisError("TIMEOUT", "analysis timed out", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.builds.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.builds.WithLabelValues("error:analysis")))

	expected := `
# HELP isle_builds_total Completed builds by result.
# TYPE isle_builds_total counter
isle_builds_total{result="error:analysis"} 1
isle_builds_total{result="ok"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(m.builds, strings.NewReader(expected)))
}

func TestModulesAndClientFiles(t *testing.T) {
	m := New()

	m.ModuleLoaded(loader.FormatModule)
	m.ModuleLoaded(loader.FormatModule)
	m.ModuleLoaded(loader.FormatJSON)
	m.SetClientFiles(7)
	m.AnalysisFinished(5 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.modules.WithLabelValues("module")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.modules.WithLabelValues("json")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.clientFiles))
	assert.Equal(t, 1, testutil.CollectAndCount(m.analysisDuration))
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.SetClientFiles(3)

	assert.Equal(t, 3.0, testutil.ToFloat64(a.clientFiles))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.clientFiles))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.BuildFinished(time.Millisecond, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `isle_builds_total{result="ok"} 1`)
	assert.Contains(t, rec.Body.String(), "isle_build_duration_seconds_bucket")
}

func TestWriteFile(t *testing.T) {
	m := New()
	m.SetClientFiles(2)

	path := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, m.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "isle_client_files 2")

	err = m.WriteFile(filepath.Join(t.TempDir(), "missing", "metrics.prom"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))
}
