package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalArchive_Put(t *testing.T) {
	dir := t.TempDir()
	a := NewLocalArchive(dir)

	loc, err := a.Put(context.Background(), "user1/user1_file1.csv", []byte("a,b\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "user1", "user1_file1.csv"), loc)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))

	entries, err := os.ReadDir(filepath.Join(dir, "user1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalArchive_RejectsEscapingKeys(t *testing.T) {
	a := NewLocalArchive(t.TempDir())

	for _, key := range []string{"../x.csv", "user1/../../x.csv", "", "a//b.csv"} {
		_, err := a.Put(context.Background(), key, []byte("x"))
		assert.Error(t, err, key)
	}
}

func TestGCSArchive_ObjectName(t *testing.T) {
	a := &gcsArchive{bucket: "b", prefix: "uploads"}

	name, err := a.objectName("user1/user1_file2.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "uploads/user1/user1_file2.xlsx", name)

	_, err = a.objectName("../secret")
	assert.Error(t, err)
}

func TestClientOptionsFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS_JSON", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	assert.Empty(t, ClientOptionsFromEnv())

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/etc/sa.json")
	assert.Len(t, ClientOptionsFromEnv(), 1)
}
