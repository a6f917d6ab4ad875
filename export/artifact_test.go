package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArtifactName(t *testing.T) {
	tests := []struct {
		name    string
		schema  string
		section Section
		ts      string
		ok      bool
	}{
		{"shop_structure_20240506_070809.sql", "shop", SectionStructure, "20240506_070809", true},
		{"my_shop_db_data_20240506_070809.sql", "my_shop_db", SectionData, "20240506_070809", true},
		{"shop_triggers_20231231_235959.sql", "shop", SectionTriggers, "20231231_235959", true},
		{"shop_structure_20240506_070809.sql.partial", "", "", "", false},
		{"shop_indexes_20240506_070809.sql", "", "", "", false},
		{"shop_data_2024_0708.sql", "", "", "", false},
		{"_views_20240506_070809.sql", "", "", "", false},
		{"notes.sql", "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema, section, ts, ok := ParseArtifactName(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.schema, schema)
			assert.Equal(t, tt.section, section)
			assert.Equal(t, tt.ts, ts)
		})
	}
}

func TestArtifactName_RoundTrip(t *testing.T) {
	name := ArtifactName("shop_v2", SectionRoutines, "20240506_070809")
	assert.Equal(t, "shop_v2_routines_20240506_070809.sql", name)
	schema, section, ts, ok := ParseArtifactName(name)
	require.True(t, ok)
	assert.Equal(t, "shop_v2", schema)
	assert.Equal(t, SectionRoutines, section)
	assert.Equal(t, "20240506_070809", ts)
}

func TestArtifact_CommitAndDiscard(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.sql")

	a, err := createArtifact(path)
	require.NoError(t, err)
	_, err = a.Write([]byte("SELECT 1;\n"))
	require.NoError(t, err)
	require.NoFileExists(t, path)
	require.FileExists(t, path+partialSuffix)

	require.NoError(t, a.commit())
	a.discard()
	assert.NoFileExists(t, path+partialSuffix)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;\n", string(data))

	b, err := createArtifact(filepath.Join(dir, "dropped.sql"))
	require.NoError(t, err)
	_, err = b.Write([]byte("partial"))
	require.NoError(t, err)
	b.discard()
	assert.Equal(t, []string{"out.sql"}, dirEntries(t, dir))
}

func TestArtifact_ReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "full.sql")
	a, err := createArtifact(path)
	require.NoError(t, err)
	_, err = a.Write([]byte("structure\n"))
	require.NoError(t, err)
	require.NoError(t, a.close())

	_, err = a.Write([]byte("lost"))
	assert.Error(t, err)

	require.NoError(t, a.reopen())
	_, err = a.Write([]byte("data\n"))
	require.NoError(t, err)
	require.NoError(t, a.commit())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "structure\ndata\n", string(data))
}

func TestAppendFile_LargerThanChunk(t *testing.T) {
	src := filepath.Join(t.TempDir(), "data.sql")
	content := bytes.Repeat([]byte("INSERT INTO t VALUES (1);\n"), copyChunkSize/10)
	require.Greater(t, len(content), 2*copyChunkSize)
	require.NoError(t, os.WriteFile(src, content, 0644))

	var dst bytes.Buffer
	dst.WriteString("head\n")
	n, err := appendFile(&dst, src)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)
	assert.Equal(t, append([]byte("head\n"), content...), dst.Bytes())
}

func TestStripAutoIncrement(t *testing.T) {
	in := "CREATE TABLE `t` (\n  `id` int NOT NULL AUTO_INCREMENT\n) ENGINE=InnoDB AUTO_INCREMENT=42 DEFAULT CHARSET=utf8mb4"
	assert.Equal(t, "CREATE TABLE `t` (\n  `id` int NOT NULL AUTO_INCREMENT\n) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4", StripAutoIncrement(in))
	assert.Equal(t, "CREATE TABLE `t` (x int)", StripAutoIncrement("CREATE TABLE `t` (x int)"))
}

func TestStripAutoIncrement_LeavesCommentsAlone(t *testing.T) {
	in := "CREATE TABLE `jobs` (\n" +
		"  `id` int NOT NULL AUTO_INCREMENT COMMENT 'reset AUTO_INCREMENT=5 nightly',\n" +
		"  PRIMARY KEY (`id`)\n" +
		") ENGINE=InnoDB AUTO_INCREMENT=812 DEFAULT CHARSET=utf8mb4 COMMENT='seeded with AUTO_INCREMENT=5, it''s fine'\n" +
		"/*!50100 PARTITION BY HASH (`id`) PARTITIONS 4 */"
	want := "CREATE TABLE `jobs` (\n" +
		"  `id` int NOT NULL AUTO_INCREMENT COMMENT 'reset AUTO_INCREMENT=5 nightly',\n" +
		"  PRIMARY KEY (`id`)\n" +
		") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COMMENT='seeded with AUTO_INCREMENT=5, it''s fine'\n" +
		"/*!50100 PARTITION BY HASH (`id`) PARTITIONS 4 */"
	assert.Equal(t, want, StripAutoIncrement(in))

	escaped := "CREATE TABLE `t` (\n  `id` int\n) ENGINE=InnoDB COMMENT='a\\' AUTO_INCREMENT=9' AUTO_INCREMENT=3"
	assert.Equal(t, "CREATE TABLE `t` (\n  `id` int\n) ENGINE=InnoDB COMMENT='a\\' AUTO_INCREMENT=9'", StripAutoIncrement(escaped))
}

func TestErrorComment_SingleLine(t *testing.T) {
	assert.Equal(t, "-- ERROR: could not export view v: line one line two\n", errorComment("could not export view v: line one\n  line two"))
}
