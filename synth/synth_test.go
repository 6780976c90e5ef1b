package synth_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/structout/descriptor"
	"github.com/reoring/structout/jsonschema"
	"github.com/reoring/structout/synth"
)

func fileNode() descriptor.ContainerDescriptor {
	return descriptor.Struct("FileNode").
		Field("name", descriptor.String()).
		Field("is_dir", descriptor.Bool()).
		Field("children", descriptor.Opt(descriptor.ArrayOf(descriptor.Box(descriptor.Ref("FileNode"))))).
		Field("size", descriptor.Opt(descriptor.Int())).
		MustBuild()
}

func TestSynthesize_SelfReference(t *testing.T) {
	got, err := synth.Synthesize(fileNode(), nil)
	require.NoError(t, err)

	want := jsonschema.Schema{
		"$ref": "#/$defs/FileNode",
		"$defs": map[string]any{
			"FileNode": map[string]any{
				"type":  "object",
				"title": "FileNode",
				"properties": map[string]any{
					"name":     map[string]any{"type": "string"},
					"is_dir":   map[string]any{"type": "boolean"},
					"children": map[string]any{"type": "array", "items": map[string]any{"$ref": "#/$defs/FileNode"}},
					"size":     map[string]any{"type": "integer"},
				},
				"required": []string{"name", "is_dir"},
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("schema mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesize_NoRefWithoutRecursion(t *testing.T) {
	addr := descriptor.Struct("Address").Field("city", descriptor.String()).MustBuild()
	user := descriptor.Struct("User").
		RenameAll(descriptor.RenameCamel).
		Field("user_id", descriptor.UUID()).
		Field("home", descriptor.Ref("Address")).Describe("home address").
		Field("work", descriptor.Opt(descriptor.Ref("Address"))).
		Field("nick_name", descriptor.Opt(descriptor.String())).
		MustBuild()
	reg, err := descriptor.NewRegistry(addr)
	require.NoError(t, err)

	got, err := synth.Synthesize(user, reg)
	require.NoError(t, err)

	jsonschema.Walk(got, func(path string, node map[string]any) bool {
		_, hasRef := node["$ref"]
		assert.False(t, hasRef, "unexpected $ref at %s", path)
		return true
	})
	assert.NotContains(t, got, "$defs")
	assert.Equal(t, []string{"userId", "home"}, got["required"])

	props := got["properties"].(map[string]any)
	assert.Equal(t, "home address", props["home"].(map[string]any)["description"])
	assert.Equal(t, "uuid", props["userId"].(map[string]any)["format"])
	assert.Contains(t, props, "nickName")
}

func TestSynthesize_AdjacentEnum(t *testing.T) {
	task := descriptor.Enum("TaskResult").
		Adjacent("status", "data").
		Named("Success", descriptor.F("output", descriptor.String()), descriptor.F("tokens_used", descriptor.Int())).
		Named("Failure", descriptor.F("error_code", descriptor.Int()), descriptor.F("reason", descriptor.String())).
		Unit("Pending").
		MustBuild()

	got, err := synth.Synthesize(task, nil)
	require.NoError(t, err)

	members := got["oneOf"].([]any)
	require.Len(t, members, 3)

	success := members[0].(map[string]any)
	wantSuccess := map[string]any{
		"type":        "object",
		"description": "Variant Success",
		"properties": map[string]any{
			"status": map[string]any{"type": "string", "enum": []string{"Success"}},
			"data": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"output":      map[string]any{"type": "string"},
					"tokens_used": map[string]any{"type": "integer"},
				},
				"required":             []string{"output", "tokens_used"},
				"additionalProperties": false,
			},
		},
		"required":             []string{"status", "data"},
		"additionalProperties": false,
	}
	if diff := cmp.Diff(wantSuccess, success); diff != "" {
		t.Fatalf("Success member mismatch (-want +got):\n%s", diff)
	}

	pending := members[2].(map[string]any)
	assert.Equal(t, []string{"status"}, pending["required"])
	assert.NotContains(t, pending["properties"], "data")
}

func TestSynthesize_EnumTaggings(t *testing.T) {
	build := func(b *descriptor.EnumBuilder) descriptor.ContainerDescriptor {
		return b.Named("Circle", descriptor.F("radius", descriptor.Number())).
			Tuple("Point", descriptor.Number(), descriptor.Number()).
			Unit("Empty").
			MustBuild()
	}

	ext, err := synth.Synthesize(build(descriptor.Enum("Shape")), nil)
	require.NoError(t, err)
	m := ext["oneOf"].([]any)
	assert.Equal(t, []string{"Circle"}, m[0].(map[string]any)["required"])
	point := m[1].(map[string]any)["properties"].(map[string]any)["Point"].(map[string]any)
	assert.Equal(t, 2, point["minItems"])
	assert.Equal(t, map[string]any{"type": "string", "enum": []string{"Empty"}, "description": "Variant Empty"}, m[2])

	in, err := synth.Synthesize(build(descriptor.Enum("Shape").Internal("kind")), nil)
	require.NoError(t, err)
	m = in["oneOf"].([]any)
	assert.Equal(t, []string{"kind", "radius"}, m[0].(map[string]any)["required"])
	assert.Equal(t, []string{"kind"}, m[1].(map[string]any)["required"])

	un, err := synth.Synthesize(build(descriptor.Enum("Shape").Untagged()), nil)
	require.NoError(t, err)
	m = un["oneOf"].([]any)
	assert.Equal(t, "object", m[0].(map[string]any)["type"])
	assert.Equal(t, "null", m[2].(map[string]any)["type"])
}

func TestSynthesize_AllUnitEnum(t *testing.T) {
	status := descriptor.Enum("Status").
		RenameAll(descriptor.RenameSnake).
		Internal("kind").
		Unit("InProgress").
		Unit("Done").
		MustBuild()
	got, err := synth.Synthesize(status, nil)
	require.NoError(t, err)
	want := jsonschema.Schema{"type": "string", "enum": []string{"in_progress", "done"}, "title": "Status"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesize_MutualRecursion(t *testing.T) {
	a := descriptor.Struct("A").Field("b", descriptor.Opt(descriptor.Ref("B"))).MustBuild()
	b := descriptor.Struct("B").Field("a", descriptor.Opt(descriptor.Ref("A"))).MustBuild()
	reg, err := descriptor.NewRegistry(a, b)
	require.NoError(t, err)

	_, err = synth.Synthesize(a, reg)
	var de *descriptor.Error
	require.True(t, errors.As(err, &de), "got %v", err)

	got, err := synth.Synthesize(a, reg, synth.Options{LiftAncestorRefs: true})
	require.NoError(t, err)
	assert.Equal(t, "#/$defs/A", got["$ref"])
	assert.Contains(t, got["$defs"], "A")
}

func TestSynthesize_UnresolvedRef(t *testing.T) {
	c := descriptor.Struct("A").Field("b", descriptor.Ref("Missing")).MustBuild()
	_, err := synth.Synthesize(c, &descriptor.Registry{})
	var de *descriptor.Error
	require.True(t, errors.As(err, &de))
}

func TestSynthesize_MapAndTuple(t *testing.T) {
	c := descriptor.Struct("Stats").
		Field("counts", descriptor.MapOf(descriptor.Int())).
		Field("pair", descriptor.TupleOf(descriptor.String(), descriptor.Int())).
		Field("tags", descriptor.SetOf(descriptor.String())).
		Field("raw", descriptor.Any()).
		MustBuild()
	got, err := synth.Synthesize(c, nil)
	require.NoError(t, err)
	props := got["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "integer"}}, props["counts"])
	assert.Equal(t, []any{map[string]any{"type": "string"}, map[string]any{"type": "integer"}}, props["pair"].(map[string]any)["prefixItems"])
	assert.Equal(t, true, props["tags"].(map[string]any)["uniqueItems"])
	assert.Equal(t, map[string]any{}, props["raw"])
}

func TestSynthesize_Deterministic(t *testing.T) {
	a, err := synth.Synthesize(fileNode(), nil)
	require.NoError(t, err)
	b, err := synth.Synthesize(fileNode(), nil)
	require.NoError(t, err)
	fa, err := jsonschema.Fingerprint(a)
	require.NoError(t, err)
	fb, err := jsonschema.Fingerprint(b)
	require.NoError(t, err)
	assert.Equal(t, fa, fb)
}
