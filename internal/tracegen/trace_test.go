package tracegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tuee22/parapet/internal/effect"
)

func sampleTrace() *Trace {
	return &Trace{
		Machine:  "kv_store",
		SpecHash: "abc123",
		Steps: []Step{
			{
				Action: "get_miss",
				Params: effect.Object{},
				Effect: effect.KVGet("counter"),
				Accept: []Expectation{{Case: "missing"}},
			},
			{
				Action: "set",
				Params: effect.Object{"n": effect.Int(1)},
				Effect: effect.KVSet("counter", effect.Int(1), 0),
				Accept: []Expectation{
					{Case: "ok", Value: effect.Object{"stored": effect.Int(1)}},
					{Case: "timeout"},
				},
			},
		},
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tr := sampleTrace()

	data, err := Encode(tr)
	require.NoError(t, err)

	back, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, tr.Machine, back.Machine)
	assert.Equal(t, tr.SpecHash, back.SpecHash)
	require.Len(t, back.Steps, 2)

	assert.Equal(t, "get_miss", back.Steps[0].Action)
	assert.True(t, back.Steps[0].Effect.Equal(tr.Steps[0].Effect))
	assert.Equal(t, tr.Steps[0].Accept, back.Steps[0].Accept)

	require.Len(t, back.Steps[1].Accept, 2)
	assert.True(t, effect.Equal(
		effect.Int(1), back.Steps[1].Accept[0].Value["stored"]))

	// Re-encoding the decoded trace reproduces the exact bytes.
	data2, err := Encode(back)
	require.NoError(t, err)
	assert.Equal(t, data, data2)
}

func TestDecode_Errors(t *testing.T) {
	valid, err := Encode(sampleTrace())
	require.NoError(t, err)

	tests := []struct {
		name    string
		data    string
		wantMsg string
	}{
		{"not json", "nope", "parsing trace"},
		{"root not object", `[1]`, "must be an object"},
		{"missing generator", `{"machine":"m","spec_hash":"","steps":[]}`, "missing generator"},
		{
			"wrong generator",
			`{"generator":"other/v9","machine":"m","spec_hash":"","steps":[]}`,
			"unsupported trace generator",
		},
		{
			"missing steps",
			`{"generator":"parapet.tracegen/v1","machine":"m","spec_hash":""}`,
			"missing steps",
		},
		{
			"step missing action",
			`{"generator":"parapet.tracegen/v1","machine":"m","spec_hash":"","steps":[{"params":{}}]}`,
			"missing action",
		},
		{
			"empty accept set",
			`{"generator":"parapet.tracegen/v1","machine":"m","spec_hash":"","steps":[{"accept":[],"action":"a","effect":{"kind":"time.now","payload":{}},"params":{}}]}`,
			"accept set must not be empty",
		},
		{
			"unknown effect kind",
			`{"generator":"parapet.tracegen/v1","machine":"m","spec_hash":"","steps":[{"accept":[{"case":"ok"}],"action":"a","effect":{"kind":"kv.flush","payload":{}},"params":{}}]}`,
			"unknown effect kind",
		},
		{
			"case outside variant table",
			`{"generator":"parapet.tracegen/v1","machine":"m","spec_hash":"","steps":[{"accept":[{"case":"no_rows"}],"action":"a","effect":{"kind":"kv.get","payload":{}},"params":{}}]}`,
			"variant table",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	// Sanity: the valid encoding still decodes.
	_, err = Decode(valid)
	require.NoError(t, err)
}

func TestExpectation_Matches(t *testing.T) {
	caseOnly := Expectation{Case: "missing"}
	assert.True(t, caseOnly.Matches(effect.Data("missing", nil)))
	assert.True(t, caseOnly.Matches(effect.Data("missing", effect.Object{"extra": effect.Int(1)})),
		"case-only expectations ignore the value entirely")
	assert.False(t, caseOnly.Matches(effect.Ok(nil)))

	withValue := Expectation{Case: "ok", Value: effect.Object{"n": effect.Int(2)}}
	assert.True(t, withValue.Matches(effect.Ok(effect.Object{"n": effect.Int(2)})))
	assert.False(t, withValue.Matches(effect.Ok(effect.Object{"n": effect.Int(3)})))
	assert.False(t, withValue.Matches(effect.Ok(effect.Object{"n": effect.Int(2), "extra": effect.Int(1)})))

	// Diagnostics never participate.
	out := effect.Fail("timeout", "deadline exceeded after 1s")
	assert.True(t, Expectation{Case: "timeout"}.Matches(out))
}

func TestStep_Accepted(t *testing.T) {
	s := sampleTrace().Steps[1]

	assert.True(t, s.Accepted(effect.Ok(effect.Object{"stored": effect.Int(1)})))
	assert.True(t, s.Accepted(effect.Fail("timeout", "slow backend")))
	assert.False(t, s.Accepted(effect.Ok(effect.Object{"stored": effect.Int(9)})))
	assert.False(t, s.Accepted(effect.Fail("invalid", "bad key")))
}

func TestHash_TracksContent(t *testing.T) {
	tr := sampleTrace()
	h1, err := Hash(tr)
	require.NoError(t, err)
	assert.Len(t, h1, 64)

	tr.Steps[0].Accept[0].Case = "ok"
	h2, err := Hash(tr)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
