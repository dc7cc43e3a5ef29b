package pingdom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChecksSchemaResolvesFromOpenAPI(t *testing.T) {
	schema, err := Checks.Schema()
	if err != nil {
		t.Fatal(err)
	}

	props := schema["properties"].(map[string]any)
	require.Equal(t, "integer", props["id"].(map[string]any)["type"])

	// the Tag $ref must come back inlined
	tags := props["tags"].(map[string]any)
	items := tags["items"].(map[string]any)
	tagProps := items["properties"].(map[string]any)
	require.Equal(t, "string", tagProps["name"].(map[string]any)["type"])
}

func TestContactsSchemaIsPatched(t *testing.T) {
	schema, err := Contacts.Schema()
	if err != nil {
		t.Fatal(err)
	}

	targets := schema["properties"].(map[string]any)["notification_targets"].(map[string]any)
	require.NotContains(t, targets, "anyOf")
	require.Equal(t, []any{"object", "null"}, targets["type"])
	require.Equal(t, "Notification targets configuration", targets["description"])

	// untouched siblings survive the patch
	name := schema["properties"].(map[string]any)["name"].(map[string]any)
	require.Equal(t, "string", name["type"])
}

func TestRestrictedSchemasResolve(t *testing.T) {
	for _, s := range []*Stream{Probes, Teams, TMSChecks} {
		schema, err := s.Schema()
		require.NoError(t, err, s.Name)
		require.Equal(t, "object", schema["type"], s.Name)
	}
}

func TestRootsFiltersRestricted(t *testing.T) {
	var names []string
	for _, s := range Roots(false) {
		names = append(names, s.Name)
	}
	require.Equal(t, []string{"checks", "actions", "contacts"}, names)

	require.Len(t, Roots(true), 8)
}

func TestChildStreamWiring(t *testing.T) {
	require.Equal(t, []*Stream{Results}, Checks.Children)
	require.Equal(t, "checks", Results.Parent)

	ctx := Checks.ChildContext(map[string]any{"id": float64(85975), "name": "homepage"})
	require.Equal(t, map[string]any{"checkid": float64(85975)}, ctx)

	// results never appears at the top level
	for _, s := range Roots(true) {
		require.NotEqual(t, "results", s.Name)
	}
	require.NotNil(t, Lookup("results"))
	require.Nil(t, Lookup("nope"))
}

func TestConfigStartTimestamp(t *testing.T) {
	ts, err := Config{StartDate: "2024-06-01T12:00:00Z"}.StartTimestamp()
	require.NoError(t, err)
	require.EqualValues(t, 1717243200, ts)

	ts, err = Config{StartDate: "2024-06-01"}.StartTimestamp()
	require.NoError(t, err)
	require.EqualValues(t, 1717200000, ts)

	ts, err = Config{}.StartTimestamp()
	require.NoError(t, err)
	require.Zero(t, ts)

	_, err = Config{StartDate: "junk"}.StartTimestamp()
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	require.Error(t, Config{}.Validate())
	require.Error(t, Config{Token: "x", StartDate: "junk"}.Validate())
	require.NoError(t, Config{Token: "x", StartDate: "2024-06-01"}.Validate())
}
