package path

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		want       string
		root       RootType
		components []string
	}{
		{"relative", "a/b", "a/b", RootNone, []string{"a", "b"}},
		{"absolute", "/a/b", "/a/b", RootSlash, []string{"a", "b"}},
		{"root only", "/", "/", RootSlash, nil},
		{"expression", "<REPO:ARCHIVE>/a", "<REPO:ARCHIVE>/a", RootExpression, []string{"a"}},
		{"expression only", "<PG:DATA>", "<PG:DATA>", RootExpression, nil},
		{"empty", "", ".", RootNone, nil},
		{"dot", ".", ".", RootNone, nil},
		{"dots dropped", "/a/./b/.", "/a/b", RootSlash, []string{"a", "b"}},
		{"dotdot folded", "/a/b/../c", "/a/c", RootSlash, []string{"a", "c"}},
		{"repeated separators", "//a///b/", "/a/b", RootSlash, []string{"a", "b"}},
		{"relative above origin", "a/../..", "..", RootNone, []string{".."}},
		{"leading dotdots kept", "../../a", "../../a", RootNone, []string{"..", "..", "a"}},
		{"trailing slash after expression", "<X>/", "<X>", RootExpression, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.String())
			assert.Equal(t, tt.root, p.RootType())
			if tt.components == nil {
				assert.Equal(t, 0, p.Len())
			} else {
				assert.Equal(t, tt.components, p.Components())
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"nul", "a/b\x00c", ErrMalformedPath},
		{"empty expression", "<>/a", ErrMalformedPath},
		{"unterminated expression", "<REPO", ErrMalformedPath},
		{"bad expression char", "<RE-PO>", ErrMalformedPath},
		{"no separator after expression", "<REPO>a", ErrMalformedPath},
		{"escape absolute root", "/a/../..", ErrPathEscapesRoot},
		{"escape absolute root directly", "/..", ErrPathEscapesRoot},
		{"escape expression root", "<REPO:BACKUP>/../x", ErrPathEscapesRoot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for _, s := range []string{
		"/", ".", "a", "a/b/c", "/var/lib/pgsql", "<REPO:ARCHIVE>", "<REPO:ARCHIVE>/main/000000010000000000000001",
		"../a", "../../b/c", "<SPOOL:ARCHIVE:IN>/x.ok",
	} {
		p, err := Parse(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, p.String())
	}
}

func TestClean_Idempotent(t *testing.T) {
	for _, s := range []string{"/a/./b/../c", "a/../../b", "<X>/a/b/..", ".", "/"} {
		p := MustParse(s)
		once, err := p.Clean()
		require.NoError(t, err)
		twice, err := once.Clean()
		require.NoError(t, err)
		assert.True(t, once.Equal(twice), s)
		assert.True(t, once.Equal(p), s)
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, MustParse("/a/b").Equal(MustParse("/a/./b")))
	assert.False(t, MustParse("/a/b").Equal(MustParse("a/b")))
	assert.False(t, MustParse("<A>/b").Equal(MustParse("<B>/b")))
	assert.False(t, MustParse("/a/B").Equal(MustParse("/a/b")))
	assert.True(t, Path{}.Equal(MustParse(".")))
}

func TestName(t *testing.T) {
	assert.Equal(t, "c", MustParse("/a/b/c").Name())
	assert.Equal(t, "", MustParse("/").Name())
	assert.Equal(t, "", MustParse("../..").Name())
	assert.Equal(t, "a", MustParse("<X>/a").Name())
}

func TestBuilder(t *testing.T) {
	p, err := NewBuilder().Slash().Append("var", "lib", ".", "pg").Build()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/pg", p.String())

	p, err = NewBuilder().Expression("<PG:DATA>").Append("base").Build()
	require.NoError(t, err)
	assert.Equal(t, "<PG:DATA>/base", p.String())

	_, err = NewBuilder().Expression("PG").Build()
	assert.ErrorIs(t, err, ErrMalformedPath)

	_, err = NewBuilder().Append("a/b").Build()
	assert.ErrorIs(t, err, ErrMalformedPath)

	_, err = NewBuilder().Append("").Build()
	assert.ErrorIs(t, err, ErrMalformedPath)
}

func TestTextMarshaling(t *testing.T) {
	type doc struct {
		Path Path `json:"path"`
	}

	data, err := json.Marshal(doc{Path: MustParse("<REPO:BACKUP>/main")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"<REPO:BACKUP>/main"}`, string(data))

	var got doc
	require.NoError(t, json.Unmarshal([]byte(`{"path":"/a/../b"}`), &got))
	assert.Equal(t, "/b", got.Path.String())

	assert.Error(t, json.Unmarshal([]byte(`{"path":"/.."}`), &got))
}
