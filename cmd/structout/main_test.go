package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reoring/structout/classify"
)

const defs = `
- kind: enum
  name: TaskResult
  tagging: {mode: adjacent, tag: status, content: data}
  variants:
    - name: Success
      fields: [{name: output, type: string}]
    - name: Pending
`

func writeDefs(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "defs.yaml")
	require.NoError(t, os.WriteFile(p, []byte(defs), 0o644))
	return p
}

func TestBuildSchema(t *testing.T) {
	sf := schemaFlags{file: writeDefs(t), typeName: "TaskResult", dialect: "constrained", depth: 3}
	res, err := buildSchema(sf, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, res.Reversals, 1)
	assert.Equal(t, "status", res.Reversals[0].TagKey)

	sf.typeName = "Missing"
	_, err = buildSchema(sf, zaptest.NewLogger(t))
	require.ErrorContains(t, err, "TaskResult")

	sf.typeName, sf.dialect = "TaskResult", "fuzzy"
	_, err = buildSchema(sf, zaptest.NewLogger(t))
	require.Error(t, err)
}

func TestWriteOutput(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "schema.json")
	require.NoError(t, writeOutput(p, []byte("{}")))
	got, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(got))
}

func TestDescribeKind(t *testing.T) {
	out := describeKind(classify.Classify(429, "", "5"))
	assert.Equal(t, "kind: rate_limited\nmessage: rate limited: retry after 5s\nretryable: true\nbackoff: 5s\n", out)
	out = describeKind(classify.Classify(401, "", ""))
	assert.NotContains(t, out, "backoff")
}
