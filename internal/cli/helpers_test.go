package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const kvSpecCUE = `machine: {
	name: "kv_store"

	vars: {
		stored: {type: "bool"}
		writes: {min: 0, max: 3}
	}

	init: {
		stored: false
		writes: 0
	}

	actions: {
		set: {
			kind: "kv.set"
			params: {n: {min: 1, max: 2}}
			guard: {op: "lt", left: {var: "writes"}, right: 3}
			payload: {
				key:    "counter"
				value:  {param: "n"}
				ttl_ms: 0
			}
			updates: {
				stored: true
				writes: {op: "add", left: {var: "writes"}, right: 1}
			}
			outcomes: [
				{case: "ok"},
				{case: "timeout"},
			]
		}
		get_hit: {
			kind: "kv.get"
			guard: {var: "stored"}
			payload: {key: "counter"}
			outcomes: [
				{case: "ok"},
			]
		}
		get_miss: {
			kind: "kv.get"
			guard: {op: "not", expr: {var: "stored"}}
			payload: {key: "counter"}
			outcomes: [
				{case: "missing"},
			]
		}
	}

	invariants: {
		writes_bounded: {op: "le", left: {var: "writes"}, right: 3}
	}

	liveness: {
		eventually_stored: {var: "stored"}
	}
}
`

const brokenSpecCUE = `machine: {
	name: "broken"
	vars: {on: {type: "bool"}}
	init: {on: false}
	actions: {
		flip: {
			kind: "kv.set"
			payload: {key: "k", value: 1, ttl_ms: 0}
			updates: {on: true}
			outcomes: [{case: "ok"}]
		}
	}
	invariants: {never_on: {op: "not", expr: {var: "on"}}}
}
`

// writeKVSpec writes the passing kv machine spec into a temp dir and
// returns its path.
func writeKVSpec(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kv.cue")
	require.NoError(t, os.WriteFile(path, []byte(kvSpecCUE), 0o644))
	return path
}

// writeBrokenSpec writes a machine whose invariant fails on the first
// transition.
func writeBrokenSpec(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "broken.cue")
	require.NoError(t, os.WriteFile(path, []byte(brokenSpecCUE), 0o644))
	return path
}

// writeSuite writes a suite YAML next to the given spec file and
// returns the suite path. The runners body is included verbatim.
func writeSuite(t *testing.T, specPath, name, runners string) string {
	t.Helper()
	dir := filepath.Dir(specPath)
	src := "name: " + name + "\n" +
		"description: cli test suite\n" +
		"spec: " + filepath.Base(specPath) + "\n" +
		"runners:\n" + runners
	path := filepath.Join(dir, name+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

// execute runs the root command with the given args and returns the
// captured stdout and stderr.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}
