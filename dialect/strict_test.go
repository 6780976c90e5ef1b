package dialect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/structout/descriptor"
	"github.com/reoring/structout/dialect"
	"github.com/reoring/structout/jsonschema"
	"github.com/reoring/structout/synth"
)

func taskResult() descriptor.ContainerDescriptor {
	return descriptor.Enum("TaskResult").
		Adjacent("status", "data").
		Named("Success", descriptor.F("output", descriptor.String()), descriptor.F("tokens_used", descriptor.Int())).
		Named("Failure", descriptor.F("error_code", descriptor.Int()), descriptor.F("reason", descriptor.String())).
		Unit("Pending").
		MustBuild()
}

func fileNode() descriptor.ContainerDescriptor {
	return descriptor.Struct("FileNode").
		Field("name", descriptor.String()).
		Field("is_dir", descriptor.Bool()).
		Field("children", descriptor.Opt(descriptor.ArrayOf(descriptor.Box(descriptor.Ref("FileNode"))))).
		Field("size", descriptor.Opt(descriptor.Int())).
		MustBuild()
}

func mustSynth(t *testing.T, c descriptor.ContainerDescriptor) jsonschema.Schema {
	t.Helper()
	s, err := synth.Synthesize(c, nil)
	require.NoError(t, err)
	return s
}

func TestStrict_ClosesEveryObject(t *testing.T) {
	for _, c := range []descriptor.ContainerDescriptor{fileNode(), taskResult()} {
		in := mustSynth(t, c)
		before, err := jsonschema.Fingerprint(in)
		require.NoError(t, err)

		out := dialect.ToStrict(in)

		after, err := jsonschema.Fingerprint(in)
		require.NoError(t, err)
		assert.Equal(t, before, after, "input modified")

		jsonschema.Walk(out, func(ptr string, node map[string]any) bool {
			props, ok := node["properties"].(map[string]any)
			if node["type"] != "object" && !ok {
				return true
			}
			assert.Equal(t, false, node["additionalProperties"], "additionalProperties at %q", ptr)
			if ok {
				req, _ := jsonschema.Strings(node["required"])
				assert.Len(t, req, len(props), "required at %q", ptr)
				for k := range props {
					assert.Contains(t, req, k, "required at %q", ptr)
				}
			}
			return true
		})
	}
}

func TestStrict_RequiredOrder(t *testing.T) {
	out := dialect.ToStrict(mustSynth(t, fileNode()))
	node := out["$defs"].(map[string]any)["FileNode"].(map[string]any)
	assert.Equal(t, []string{"name", "is_dir", "children", "size"}, node["required"])
	assert.Equal(t, "#/$defs/FileNode", out["$ref"])
}

func TestNew(t *testing.T) {
	for name, want := range map[string]string{
		"":            dialect.NameCanonical,
		"canonical":   dialect.NameCanonical,
		"strict":      dialect.NameStrict,
		"constrained": dialect.NameConstrained,
	} {
		a, err := dialect.New(name, 0)
		require.NoError(t, err)
		assert.Equal(t, want, a.Name())
	}
	_, err := dialect.New("lenient", 0)
	require.ErrorIs(t, err, dialect.ErrUnknownDialect)
}

func TestCanonical_Copies(t *testing.T) {
	in := mustSynth(t, fileNode())
	res, err := dialect.Canonical{}.Adapt(in)
	require.NoError(t, err)
	assert.Equal(t, in, res.Schema)
	assert.False(t, res.Lossy())
	res.Schema["title"] = "changed"
	assert.NotContains(t, in, "title")
}

func synthWith(c descriptor.ContainerDescriptor, r descriptor.Resolver) (jsonschema.Schema, error) {
	return synth.Synthesize(c, r)
}
