package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyralis/blockflow-go/internal/graph"
	"github.com/kyralis/blockflow-go/internal/script"
	"github.com/kyralis/blockflow-go/internal/world"
)

// lineScenario is a 5-cell belt line with one packet inserted at tick 0.
func lineScenario() *script.Scenario {
	blocks := make([]script.Block, 5)
	for i := range blocks {
		blocks[i] = script.Block{Kind: "belt", At: script.Cell{X: i}}
	}
	return &script.Scenario{
		Name:  "line",
		Ticks: 16,
		Types: []script.TypeSpec{{
			Name:  "transport",
			Kinds: []script.KindSpec{{Kind: "belt", Behavior: script.BehaviorTransport}},
		}},
		Blocks:  blocks,
		Packets: []script.Insertion{{ID: 1, Payload: "ore", At: script.Cell{X: 0}, Tick: 0}},
	}
}

func writeScenario(t *testing.T, scn string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.json")
	require.NoError(t, os.WriteFile(path, []byte(scn), 0o644))
	return path
}

func TestBuildEngine(t *testing.T) {
	t.Parallel()

	scn := lineScenario()
	require.NoError(t, scn.Validate())

	eng, err := buildEngine(scn, world.NewMemoryWorld())
	require.NoError(t, err)

	assert.Equal(t, 1, eng.mgr.InstanceCount())
	in := eng.mgr.Instances()[0]
	assert.Equal(t, 3, in.NodeCount())

	_, _, ok := eng.mgr.TypeForKind(graph.BlockKind("belt"))
	assert.True(t, ok)
}

func TestBehaviorFor(t *testing.T) {
	t.Parallel()

	_, err := behaviorFor(script.KindSpec{Kind: "belt", Behavior: script.BehaviorTransport})
	assert.NoError(t, err)
	_, err = behaviorFor(script.KindSpec{Kind: "drop", Behavior: script.BehaviorSink})
	assert.NoError(t, err)
	_, err = behaviorFor(script.KindSpec{Kind: "odd", Behavior: "teleport"})
	assert.Error(t, err)
}

func TestRunScenario(t *testing.T) {
	t.Parallel()

	scn := lineScenario()
	require.NoError(t, scn.Validate())
	require.NoError(t, runScenario(scn, world.NewMemoryWorld(), true))
}

func TestRunCmd_EndToEnd(t *testing.T) {
	t.Parallel()

	path := writeScenario(t, `{
		"name": "pair",
		"ticks": 8,
		"types": [{
			"name": "transport",
			"kinds": [{"kind": "belt", "behavior": "transport"}]
		}],
		"blocks": [
			{"kind": "belt", "at": {"x": 0, "y": 0, "z": 0}},
			{"kind": "belt", "at": {"x": 1, "y": 0, "z": 0}}
		],
		"packets": [{"id": 1, "at": {"x": 0, "y": 0, "z": 0}, "tick": 0}]
	}`)

	cmd := &RunCmd{Script: path, Quiet: true}
	assert.NoError(t, cmd.Run())
}

func TestRunCmd_BadgerBacked(t *testing.T) {
	t.Parallel()

	path := writeScenario(t, `{
		"ticks": 4,
		"types": [{
			"name": "transport",
			"kinds": [{"kind": "belt", "behavior": "transport"}]
		}],
		"blocks": [{"kind": "belt", "at": {"x": 0, "y": 0, "z": 0}}]
	}`)

	cmd := &RunCmd{Script: path, DB: filepath.Join(t.TempDir(), "db"), Quiet: true}
	assert.NoError(t, cmd.Run())
}

func TestInspectCmd(t *testing.T) {
	t.Parallel()

	path := writeScenario(t, `{
		"ticks": 1,
		"types": [{
			"name": "transport",
			"kinds": [{"kind": "belt", "behavior": "transport"}]
		}],
		"blocks": [
			{"kind": "belt", "at": {"x": 0, "y": 0, "z": 0}},
			{"kind": "belt", "at": {"x": 1, "y": 0, "z": 0}},
			{"kind": "belt", "at": {"x": 2, "y": 0, "z": 0}}
		]
	}`)

	cmd := &InspectCmd{Script: path}
	assert.NoError(t, cmd.Run())
}

func TestRunCmd_InvalidScenario(t *testing.T) {
	t.Parallel()

	path := writeScenario(t, `{"ticks": 4, "types": []}`)
	cmd := &RunCmd{Script: path, Quiet: true}
	assert.ErrorIs(t, cmd.Run(), script.ErrInvalidScenario)
}
