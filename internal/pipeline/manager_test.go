package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briantruongvn/ngocson-tss-converter/internal/quality"
)

// writeInput creates a dummy input file for manager tests. The fake
// steps never parse it, so plain bytes are enough.
func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Supplier.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("workbook bytes"), 0o644))
	return path
}

func okFactory(ids ...string) StepFactory {
	return func(*quality.Reporter) []Step {
		var out []Step
		for _, id := range ids {
			out = append(out, newFakeStep(id, nil, nil))
		}
		return out
	}
}

func waitForStatus(t *testing.T, m *Manager, runID string, want Status) Snapshot {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		snap, err := m.Get(runID)
		require.NoError(t, err)
		if snap.Status == want {
			return snap
		}
		select {
		case <-deadline:
			t.Fatalf("run %s never reached %s (now %s)", runID, want, snap.Status)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestManagerRunsToCompletion(t *testing.T) {
	m := NewManager(okFactory("template", "extract"), nil, testLogger())

	snap, err := m.Start(writeInput(t))
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.NotEmpty(t, snap.Fingerprint)

	require.NoError(t, m.Wait(context.Background(), snap.ID))
	final := waitForStatus(t, m, snap.ID, StatusCompleted)
	assert.Len(t, final.Steps, 2)

	artifact, err := m.FinalArtifact(snap.ID)
	require.NoError(t, err)
	assert.Contains(t, artifact, "+extract")
}

func TestManagerRejectsInvalidInput(t *testing.T) {
	m := NewManager(okFactory("template"), nil, testLogger(),
		WithInputValidator(rejectingValidator{}))

	_, err := m.Start(writeInput(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a workbook")
	assert.Empty(t, m.List())
}

type rejectingValidator struct{}

func (rejectingValidator) ValidateInput(string) error {
	return errors.New("not a workbook")
}

func TestManagerGetUnknownRun(t *testing.T) {
	m := NewManager(okFactory("template"), nil, testLogger())
	_, err := m.Get("no-such-run")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, m.Cancel("no-such-run"), ErrRunNotFound)
}

func TestManagerCancelStopsRun(t *testing.T) {
	started := make(chan struct{})
	factory := func(*quality.Reporter) []Step {
		return []Step{
			newFakeStep("template", nil, func(ctx context.Context, state *State) error {
				close(started)
				<-ctx.Done()
				return ctx.Err()
			}),
			newFakeStep("extract", nil, nil),
		}
	}

	m := NewManager(factory, nil, testLogger())
	snap, err := m.Start(writeInput(t))
	require.NoError(t, err)

	<-started
	require.NoError(t, m.Cancel(snap.ID))

	final := waitForStatus(t, m, snap.ID, StatusCancelled)
	assert.Equal(t, StatusCancelled, final.Status)

	// A finished run cannot be cancelled again.
	assert.ErrorIs(t, m.Cancel(snap.ID), ErrRunNotRunning)

	_, err = m.FinalArtifact(snap.ID)
	assert.ErrorIs(t, err, ErrRunNotCompleted)
}

func TestManagerListNewestFirst(t *testing.T) {
	m := NewManager(okFactory("template"), nil, testLogger())

	first, err := m.Start(writeInput(t))
	require.NoError(t, err)
	require.NoError(t, m.Wait(context.Background(), first.ID))

	second, err := m.Start(writeInput(t))
	require.NoError(t, err)
	require.NoError(t, m.Wait(context.Background(), second.ID))

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestManagerRunDirAndReport(t *testing.T) {
	base := t.TempDir()
	factory := func(*quality.Reporter) []Step {
		return []Step{newFakeStep("template", nil, func(_ context.Context, state *State) error {
			state.AdvanceTo(filepath.Join(state.OutputDir(), "Supplier - Step1.xlsx"))
			return nil
		})}
	}
	m := NewManager(factory, func(runID string) string {
		return filepath.Join(base, runID)
	}, testLogger())

	snap, err := m.Start(writeInput(t))
	require.NoError(t, err)
	require.NoError(t, m.Wait(context.Background(), snap.ID))

	got, err := m.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, snap.ID, "Supplier - Step1.xlsx"), got.CurrentPath)

	report, err := m.Report(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.Fingerprint, report.InputFingerprint)
	assert.Equal(t, 100.0, report.Summary.QualityScore)
}
