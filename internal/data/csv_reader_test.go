package data

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabforest/internal/errors"
)

func TestParseCSVDetectsTypesFromFirstRow(t *testing.T) {
	input := "age,city,score\n34,Berlin,7.5\n41,Paris,\nabc,Rome,3\n"

	ds, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"age", "city", "score"}, ds.Columns)
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, Numeric, ds.Types["age"])
	assert.Equal(t, Categorical, ds.Types["city"])
	assert.Equal(t, Numeric, ds.Types["score"])

	// only the first row is consulted, so the later "abc" keeps age numeric
	assert.Equal(t, KindString, ds.Rows[2]["age"].Kind)
	assert.True(t, ds.Rows[1]["score"].IsMissing())
}

func TestParseCSVErrors(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"header only":  "a,b\n",
		"ragged":       "a,b\n1,2\n3\n",
		"empty header": "a,,c\n1,2,3\n",
		"duplicate":    "a,a\n1,2\n",
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.CodeParse), "got %v", err)
		})
	}
}

func TestParseCSVSkipsBlankRows(t *testing.T) {
	ds, err := ParseCSV(strings.NewReader("x,y\n1,a\n , \n2,b\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
}

func TestCSVReaderLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte("x,label\n1,A\n2,B\n"), 0o644))

	ds, err := NewCSVReader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, path, ds.Source)

	_, err = NewCSVReader(filepath.Join(t.TempDir(), "missing.csv")).Load()
	assert.True(t, errors.Is(err, errors.CodeParse))
}

func TestValueCoercion(t *testing.T) {
	f, ok := ParseValue("3.25").Float()
	assert.True(t, ok)
	assert.Equal(t, 3.25, f)

	_, ok = ParseValue("red").Float()
	assert.False(t, ok)

	_, ok = MissingValue().Float()
	assert.False(t, ok)

	assert.Equal(t, "unknown", MissingValue().Text())
	assert.Equal(t, "5", NumberValue(5).Text())
	assert.Equal(t, "0.5", NumberValue(0.5).Text())
}

func TestParsedNumbersKeepTheirText(t *testing.T) {
	for _, raw := range []string{"007", "07", "7", "1.0", "01"} {
		v := ParseValue(raw)
		assert.Equal(t, KindNumber, v.Kind)
		assert.Equal(t, raw, v.Text())
	}
	f, ok := ParseValue("007").Float()
	assert.True(t, ok)
	assert.Equal(t, 7.0, f)
}

func TestStreamingReaderBatches(t *testing.T) {
	r, err := newStreamingReader(strings.NewReader("x,c\n1,a\n2,b\n\n3,c\n"), nil)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{"x", "c"}, r.GetHeaders())

	first, err := r.ReadBatch(2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, NumberValue(1), first[0]["x"])

	second, err := r.ReadBatch(2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, StringValue("c"), second[0]["c"])

	rest, err := r.ReadBatch(2)
	require.NoError(t, err)
	assert.Empty(t, rest)
}

func TestStreamingReaderRejectsRaggedRow(t *testing.T) {
	r, err := newStreamingReader(strings.NewReader("x,c\n1\n"), nil)
	require.NoError(t, err)
	_, err = r.ReadBatch(10)
	assert.True(t, errors.Is(err, errors.CodeParse))

	_, err = newStreamingReader(strings.NewReader(""), nil)
	assert.True(t, errors.Is(err, errors.CodeParse))
}
