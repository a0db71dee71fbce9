package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"cfetariff/internal/tariff"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dataset(values ...string) *tariff.Dataset {
	ds := &tariff.Dataset{State: "jalisco", Year: "2022"}
	for _, v := range values {
		ds.Rows = append(ds.Rows, tariff.Row{
			Tariff: "GDMTH", Value: v, Year: "2022", Month: 3, State: "jalisco",
			Municipality: "39", Division: "Residencial", DivisionValue: "5",
		})
	}
	return ds
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriteCreatesStateDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "scraped_data")
	w := NewWriter(root)

	path, err := w.Write(dataset("1.01", "1.62"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "jalisco", "scraped_data_2022.csv"), path)

	records := readCSV(t, path)
	require.Len(t, records, 3)
	// No index column: the header starts with the table schema.
	assert.Equal(t, tariff.Header(), records[0])
	assert.Equal(t, "1.01", records[1][5])
	assert.Equal(t, "3", records[1][7])
}

func TestWriteOverwrites(t *testing.T) {
	w := NewWriter(t.TempDir())

	_, err := w.Write(dataset("1", "2", "3"))
	require.NoError(t, err)
	path, err := w.Write(dataset("4"))
	require.NoError(t, err)

	records := readCSV(t, path)
	require.Len(t, records, 2)
	assert.Equal(t, "4", records[1][5])
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root)
	_, err := w.Write(dataset("1"))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(root, "jalisco"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "scraped_data_2022.csv", entries[0].Name())

	info, err := entries[0].Info()
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestWriteRejectsEmptyDataset(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root)

	_, err := w.Write(&tariff.Dataset{State: "jalisco", Year: "2022"})
	assert.ErrorIs(t, err, tariff.ErrEmptyResult)

	_, err = os.Stat(filepath.Join(root, "jalisco"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteRequiresStateAndYear(t *testing.T) {
	w := NewWriter(t.TempDir())
	ds := dataset("1")
	ds.State = ""
	_, err := w.Write(ds)
	assert.Error(t, err)
}

func TestNewWriterDefaultRoot(t *testing.T) {
	assert.Equal(t, DefaultRoot, NewWriter("").Root)
	assert.Equal(t, filepath.Join("out", "sonora", "scraped_data_2021.csv"), NewWriter("out").Path("sonora", "2021"))
}
