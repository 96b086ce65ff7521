// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package envfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestRead(t *testing.T) {
	path := writeFile(t, "# comment\n\nA=1\nexport B=\"two words\"\nC='x#y'\n")

	vars, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "two words", "C": "x#y"}, vars)
}

func TestRead_Missing(t *testing.T) {
	vars, err := Read(filepath.Join(t.TempDir(), "nope.env"))
	require.NoError(t, err)
	assert.Empty(t, vars)

	vars, err = Read("")
	require.NoError(t, err)
	assert.Empty(t, vars)
}

func TestMerge(t *testing.T) {
	base := []string{"PATH=/bin", "HOME=/root", "EMPTY"}
	out := Merge(base,
		map[string]string{"HOME": "/home/a", "Z": "1", "B": "file"},
		map[string]string{"B": "declared"},
	)

	assert.Equal(t, []string{"PATH=/bin", "HOME=/home/a", "EMPTY", "B=declared", "Z=1"}, out)
	assert.Equal(t, []string{"PATH=/bin", "HOME=/root", "EMPTY"}, base, "base must not be modified")
}

func TestEnviron(t *testing.T) {
	t.Setenv("LAUNCHPAD_TEST_BASE", "base")
	path := writeFile(t, "LAUNCHPAD_TEST_FILE=file\nLAUNCHPAD_TEST_BASE=overridden\n")

	env, err := Environ(path, map[string]string{"LAUNCHPAD_TEST_DECLARED": "yes"})
	require.NoError(t, err)
	assert.Contains(t, env, "LAUNCHPAD_TEST_FILE=file")
	assert.Contains(t, env, "LAUNCHPAD_TEST_BASE=overridden")
	assert.Contains(t, env, "LAUNCHPAD_TEST_DECLARED=yes")
	assert.NotContains(t, env, "LAUNCHPAD_TEST_BASE=base")
}

func TestUpdate_ReplacesInPlace(t *testing.T) {
	original := "# tunnel settings\n\nFIRST=1\nPUBLIC_URL=http://old\n   # indented comment\nLAST=3\n"
	path := writeFile(t, original)

	require.NoError(t, Update(path, "PUBLIC_URL", "https://abc.ngrok.app"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# tunnel settings\n\nFIRST=1\nPUBLIC_URL=https://abc.ngrok.app\n   # indented comment\nLAST=3\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestUpdate_PreservesExportAndCRLF(t *testing.T) {
	path := writeFile(t, "export URL=a\r\nOTHER=b\r\n")

	require.NoError(t, Update(path, "URL", "c"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "export URL=c\r\nOTHER=b\r\n", string(data))
}

func TestUpdate_AppendsAbsentKey(t *testing.T) {
	original := "A=1\n# keep me\nB=2"
	path := writeFile(t, original)

	require.NoError(t, Update(path, "PUBLIC_URL", "https://x.trycloudflare.com"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original+"\n"+AddedComment+"\nPUBLIC_URL=https://x.trycloudflare.com\n", string(data))
}

func TestUpdate_DoesNotMatchPrefixOrComment(t *testing.T) {
	path := writeFile(t, "PORTS=1,2\n#PORT=1\n")

	require.NoError(t, Update(path, "PORT", "3000"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "PORTS=1,2\n#PORT=1\n"+AddedComment+"\nPORT=3000\n", string(data))
}

func TestUpdate_CreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", ".env.local")

	require.NoError(t, Update(path, "KEY", "value with spaces"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, AddedComment+"\nKEY=\"value with spaces\"\n", string(data))

	vars, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "value with spaces", vars["KEY"])
}

func TestUpdate_Errors(t *testing.T) {
	assert.Error(t, Update("", "K", "v"))
	assert.Error(t, Update(filepath.Join(t.TempDir(), ".env"), "", "v"))
}
