package threats

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOK(t *testing.T) {
	records, err := Load(strings.NewReader(`{
		"Count": [5, 3, 4294967296],
		"Source": ["8.8.8.8", "8.8.4.4", "2001:4860:4860::8888"]
	}`))

	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "8.8.8.8", records[0].Source)
	assert.Equal(t, "8.8.8.8", records[0].IP.String())
	assert.EqualValues(t, 5, records[0].Count)

	assert.Equal(t, "8.8.4.4", records[1].Source)
	assert.EqualValues(t, 3, records[1].Count)

	assert.Equal(t, "2001:4860:4860::8888", records[2].IP.String())
	assert.Equal(t, uint64(4294967296), records[2].Count)
}

func TestLoadNested(t *testing.T) {
	records, err := Load(strings.NewReader(`{
		"Threat Sources": {"Count": [7], "Source": ["81.2.69.142"]},
		"Count": [1, 2],
		"Source": ["1.1.1.1"]
	}`))

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "81.2.69.142", records[0].Source)
	assert.EqualValues(t, 7, records[0].Count)
}

func TestLoadEmpty(t *testing.T) {
	records, err := Load(strings.NewReader(`{"Count": [], "Source": []}`))

	assert.NoError(t, err)
	assert.Len(t, records, 0)
}

func TestLoadLengthMismatch(t *testing.T) {
	_, err := Load(strings.NewReader(`{"Count": [1, 2], "Source": ["8.8.8.8"]}`))

	require.Error(t, err)
	assert.Equal(t, ErrMalformedInput, errors.Cause(err))
	assert.Contains(t, err.Error(), "Count has 2 elements but Source has 1")
}

func TestLoadMalformed(t *testing.T) {
	docs := []string{
		``,
		`[]`,
		`{"Count": [1], "Source": `,
		`{"Count": [-1], "Source": ["8.8.8.8"]}`,
		`{"Count": ["1"], "Source": ["8.8.8.8"]}`,
		`{"Count": [1]}`,
		`{"Source": ["8.8.8.8"]}`,
		`{"Count": null, "Source": null}`,
		`{"Count": [null], "Source": ["8.8.8.8"]}`,
		`{"Count": [1, null], "Source": ["8.8.8.8", "8.8.4.4"]}`,
		`{"Count": [1], "Source": ["8.8.8.8"]} trailing`,
		`{"Count": [1], "Source": ["8.8.8.8"]}}`,
		`{"Count": [1], "Source": ["8.8.8.8"]}{"Count": [], "Source": []}`,
	}

	for _, doc := range docs {
		_, err := Load(strings.NewReader(doc))

		if assert.Error(t, err, doc) {
			assert.Equal(t, ErrMalformedInput, errors.Cause(err), doc)
		}
	}
}

func TestLoadInvalidAddress(t *testing.T) {
	for _, source := range []string{"", "x", "256.1.1.1", "8.8.8", "fe80::1%eth0"} {
		doc := `{"Count": [1, 1], "Source": ["8.8.8.8", "` + source + `"]}`
		records, err := Load(strings.NewReader(doc))

		assert.Nil(t, records)
		if assert.Error(t, err, source) {
			assert.Equal(t, ErrInvalidAddress, errors.Cause(err), source)
			assert.Contains(t, err.Error(), "source #1")
		}
	}
}

func TestLoadFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "threats_")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "threat_sources.json")
	require.NoError(t, ioutil.WriteFile(path,
		[]byte(`{"Count": [2], "Source": ["8.8.8.8"]}`), 0644))

	records, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = LoadFile(filepath.Join(dir, "absent.json"))
	require.Error(t, err)
	assert.Equal(t, ErrMalformedInput, errors.Cause(err))
}
