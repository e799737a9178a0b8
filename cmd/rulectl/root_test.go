package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withFlags(t *testing.T, file, track string) {
	t.Helper()
	prevFile, prevTrack := ruleFile, visaType
	ruleFile, visaType = file, track
	t.Cleanup(func() { ruleFile, visaType = prevFile, prevTrack })
}

func TestLoadDefinitionsBuiltinTrack(t *testing.T) {
	withFlags(t, "", "E")

	defs, err := loadDefinitions()
	require.NoError(t, err)
	assert.Len(t, defs, 11)
}

func TestLoadDefinitionsUnknownTrack(t *testing.T) {
	withFlags(t, "", "Z")

	_, err := loadDefinitions()
	assert.Error(t, err)
}

func TestLoadDefinitionsYAMLDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	doc := `version: "1.0"
visa_type: E
rules:
  - name: grant
    visa_type: E
    rule_type: terminal
    condition_logic: AND
    conditions: [a, b]
    actions: [c]
    priority: 10
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	withFlags(t, path, "")

	defs, err := loadDefinitions()
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "grant", defs[0].Name)
	assert.Equal(t, []string{"a", "b"}, defs[0].Conditions)
}

func TestLoadDefinitionsBareJSONList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	doc := `[{"name":"grant","visa_type":"E","rule_type":"terminal",` +
		`"condition_logic":"AND","conditions":["a"],"actions":["b"],"priority":10}]`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	withFlags(t, path, "")

	defs, err := loadDefinitions()
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "grant", defs[0].Name)
}

func TestLoadDefinitionsEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"rules":[]}`), 0o644))
	withFlags(t, path, "")

	_, err := loadDefinitions()
	assert.Error(t, err)
}
