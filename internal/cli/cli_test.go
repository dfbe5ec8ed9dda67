package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restopay/internal/domain/attendance"
)

const sampleBatch = `{
  "clockEvents": [
    {"employeeId": "E1", "type": "in", "timestamp": "2025-03-03T09:00:00Z", "validated": true},
    {"employeeId": "E1", "type": "out", "timestamp": "2025-03-03T20:00:00Z", "validated": true},
    {"employeeId": "E2", "type": "in", "timestamp": "2025-03-03T10:00:00Z", "validated": true},
    {"employeeId": "E2", "type": "out", "timestamp": "2025-03-03T14:00:00Z", "validated": true}
  ]
}`

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("MAX_DAILY_HOURS", "")
	t.Setenv("RULES_FILE", "")
	t.Setenv("DATABASE_URL", "")

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunJSON(t *testing.T) {
	out, err := execute(t, sampleBatch, "run", "--format", "json")
	require.NoError(t, err)

	var res attendance.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Timelines, 2)
	assert.True(t, res.Validation.IsValid)
	assert.True(t, res.Validation.HasCode(attendance.CodeExcessiveDuration))
}

func TestRunTableAndFlagsOverride(t *testing.T) {
	out, err := execute(t, sampleBatch, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "EMPLOYEE")
	assert.Contains(t, out, "11.00")
	assert.Contains(t, out, attendance.CodeExcessiveDuration)

	out, err = execute(t, sampleBatch, "run", "--max-daily", "12")
	require.NoError(t, err)
	assert.NotContains(t, out, attendance.CodeExcessiveDuration)
	assert.Contains(t, out, "valid: 0 errors, 0 warnings")
}

func TestRunFromFileAsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleBatch), 0o600))

	out, err := execute(t, "", "run", "--input", path, "--format", "timelines")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "E1,2025-03-03,work"))
}

func TestRunStrict(t *testing.T) {
	batch := `{"payroll": [{"regular": "8", "overtime": "0"}]}`
	_, err := execute(t, batch, "run", "--strict")
	require.ErrorIs(t, err, ErrValidationFailed)

	_, err = execute(t, batch, "run")
	require.NoError(t, err)
}

func TestRunRejectsBadInput(t *testing.T) {
	_, err := execute(t, `{"clockEvents": [`, "run")
	require.Error(t, err)

	_, err = execute(t, `{"punches": []}`, "run")
	require.Error(t, err)

	_, err = execute(t, sampleBatch, "run", "--format", "xml")
	require.ErrorContains(t, err, "unknown format")
}

func TestHours(t *testing.T) {
	out, err := execute(t, sampleBatch, "hours")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"E1", "8.00", "3.00", "0.00"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"E2", "4.00", "0.00", "0.00"}, strings.Fields(lines[2]))
}

func TestValidateRules(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(good, []byte("maxDailyHours: 9\npayroll:\n  night:\n    start: \"21:00\"\n    end: \"05:00\"\n"), 0o600))
	out, err := execute(t, "", "validate-rules", good)
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "max daily hours: 9")
	assert.Contains(t, out, "night window: 21:00-05:00")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("priorities: [work, lunch]\n"), 0o600))
	_, err = execute(t, "", "validate-rules", bad)
	require.Error(t, err)
}

func TestPeriodNeedsDatabase(t *testing.T) {
	_, err := execute(t, "", "period", "--from", "2025-03-03", "--to", "2025-03-10")
	require.ErrorContains(t, err, "DATABASE_URL")

	_, err = execute(t, "", "period", "--from", "2025-03-03")
	require.Error(t, err)
}
