package configx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Addr string `json:"addr" yaml:"addr"`
	Size int    `json:"size" yaml:"size"`
}

func write(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_JSONAndYAML(t *testing.T) {
	var j sample
	require.NoError(t, Load(write(t, "c.json", `{"addr":"a:1","size":3}`), &j))
	assert.Equal(t, sample{Addr: "a:1", Size: 3}, j)

	var y sample
	require.NoError(t, Load(write(t, "c.yml", "addr: b:2\nsize: 4\n"), &y))
	assert.Equal(t, sample{Addr: "b:2", Size: 4}, y)
}

func TestLoad_Errors(t *testing.T) {
	var s sample
	assert.Error(t, Load(filepath.Join(t.TempDir(), "missing.json"), &s))
	assert.Error(t, Load(write(t, "bad.json", "{nope"), &s))
}
