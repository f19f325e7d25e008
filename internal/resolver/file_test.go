package resolver

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/taljindergill78/FSE570/internal/entities"
)

const registryYAML = `entities:
  - entity_id: acme_corp
    name: Acme Corporation
    entity_type: private_company
    country: US
    identifiers:
      duns: "123456789"
    aliases: [Acme, ACME Corp]
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	writeFile(t, path, registryYAML)

	list, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "acme_corp", list[0].ID)
	assert.Equal(t, entities.EntityPrivateCompany, list[0].Type)
	assert.Equal(t, "US", list[0].Country)
	assert.Equal(t, "123456789", list[0].Identifier("duns"))
	assert.Equal(t, []string{"Acme", "ACME Corp"}, list[0].Aliases)
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	missingName := filepath.Join(dir, "a.yaml")
	writeFile(t, missingName, "entities:\n  - entity_id: x\n")
	_, err := LoadFile(missingName)
	assert.Error(t, err)

	dup := filepath.Join(dir, "b.yaml")
	writeFile(t, dup, "entities:\n  - {entity_id: x, name: X}\n  - {entity_id: x, name: Y}\n")
	_, err = LoadFile(dup)
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestReloadFileKeepsContentsOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	writeFile(t, path, "not: [valid")

	r := DefaultRegistry()
	assert.Error(t, r.ReloadFile(path))
	assert.Equal(t, 1, r.Len())
	_, ok := r.Lookup(TeslaID)
	assert.True(t, ok)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	writeFile(t, path, "entities:\n  - {entity_id: first, name: First Co}\n")

	r := NewRegistry(nil)
	require.NoError(t, r.ReloadFile(path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.Watch(ctx, path, zaptest.NewLogger(t)))

	writeFile(t, path, registryYAML)

	require.Eventually(t, func() bool {
		_, ok := r.ResolveOne("acme")
		return ok
	}, 5*time.Second, 20*time.Millisecond)
}
