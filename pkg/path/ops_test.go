package path

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeAbsolute(t *testing.T) {
	base := MustParse("/var/lib")

	p, err := MustParse("pg/data").MakeAbsolute(base)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/pg/data", p.String())

	p, err = MustParse("../log").MakeAbsolute(base)
	require.NoError(t, err)
	assert.Equal(t, "/var/log", p.String())

	// Rooted paths are untouched.
	p, err = MustParse("/etc").MakeAbsolute(base)
	require.NoError(t, err)
	assert.Equal(t, "/etc", p.String())

	_, err = MustParse("../../../x").MakeAbsolute(base)
	assert.ErrorIs(t, err, ErrPathEscapesRoot)

	_, err = MustParse("x").MakeAbsolute(MustParse("rel"))
	assert.ErrorIs(t, err, ErrRootMismatch)
}

func TestMakeRelativeTo(t *testing.T) {
	tests := []struct {
		path, base, want string
	}{
		{"/a/b/c", "/a", "b/c"},
		{"/a/b", "/a/b", "."},
		{"/a/x", "/a/b/c", "../../x"},
		{"/x", "/", "x"},
		{"/", "/a", ".."},
		{"<X>/a/b", "<X>/a", "b"},
	}

	for _, tt := range tests {
		t.Run(tt.path+" from "+tt.base, func(t *testing.T) {
			got, err := MustParse(tt.path).MakeRelativeTo(MustParse(tt.base))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
			assert.True(t, got.IsRelative())
		})
	}
}

func TestMakeRelativeTo_RootMismatch(t *testing.T) {
	_, err := MustParse("/a").MakeRelativeTo(MustParse("<X>/a"))
	assert.ErrorIs(t, err, ErrRootMismatch)

	_, err = MustParse("<Y>/a").MakeRelativeTo(MustParse("<X>/a"))
	assert.ErrorIs(t, err, ErrRootMismatch)

	_, err = MustParse("a").MakeRelativeTo(MustParse("a"))
	assert.ErrorIs(t, err, ErrRootMismatch)
}

func TestJoinRelativizeInverse(t *testing.T) {
	bases := []string{"/", "/a", "/a/b/c"}
	rels := []string{".", "x", "x/y/z", "../q", "./m/../n"}

	for _, b := range bases {
		for _, r := range rels {
			base := MustParse(b)
			rel := MustParse(r)

			abs, err := rel.MakeAbsolute(base)
			if err != nil {
				// "../q" cannot be rooted at "/".
				assert.ErrorIs(t, err, ErrPathEscapesRoot)
				continue
			}
			back, err := abs.MakeRelativeTo(base)
			require.NoError(t, err)

			cleaned, err := rel.Clean()
			require.NoError(t, err)
			assert.True(t, back.Equal(cleaned), "base=%s rel=%s got=%s", b, r, back)
		}
	}
}

func TestResolveExpression(t *testing.T) {
	base := MustParse("/repo/archive")

	got, err := MustParse("<X>/a/b").ResolveExpression(base)
	require.NoError(t, err)

	want, err := MustParse("a/b").MakeAbsolute(base)
	require.NoError(t, err)
	assert.True(t, got.Equal(want))

	rel, err := MustParse("<X>/a").ResolveExpression(MustParse("archive/main"))
	require.NoError(t, err)
	assert.Equal(t, "archive/main/a", rel.String())

	rel, err = MustParse("<X>").ResolveExpression(Path{})
	require.NoError(t, err)
	assert.True(t, rel.IsZero())

	_, err = MustParse("/a").ResolveExpression(base)
	assert.ErrorIs(t, err, ErrNotExpression)
}

func TestParent(t *testing.T) {
	p, err := MustParse("/a/b").Parent()
	require.NoError(t, err)
	assert.Equal(t, "/a", p.String())

	p, err = MustParse("a").Parent()
	require.NoError(t, err)
	assert.Equal(t, ".", p.String())

	p, err = MustParse(".").Parent()
	require.NoError(t, err)
	assert.Equal(t, "..", p.String())

	_, err = MustParse("/").Parent()
	assert.ErrorIs(t, err, ErrPathEscapesRoot)
}

func TestSetName(t *testing.T) {
	p, err := MustParse("/a/b").SetName("c")
	require.NoError(t, err)
	assert.Equal(t, "/a/c", p.String())

	p, err = MustParse("/").SetName("c")
	require.NoError(t, err)
	assert.Equal(t, "/c", p.String())

	_, err = MustParse("/a").SetName("x/y")
	assert.ErrorIs(t, err, ErrMalformedPath)
}

func TestSetParent(t *testing.T) {
	p, err := MustParse("/a/b/file").SetParent(MustParse("/z"))
	require.NoError(t, err)
	assert.Equal(t, "/z/file", p.String())
}

func TestAppendPrepend(t *testing.T) {
	p, err := MustParse("/a").Append("b", "..", "c")
	require.NoError(t, err)
	assert.Equal(t, "/a/c", p.String())

	p, err = MustParse("<X>/c").Prepend("a", "b")
	require.NoError(t, err)
	assert.Equal(t, "<X>/a/b/c", p.String())

	_, err = MustParse("/a").Append("b\x00")
	assert.ErrorIs(t, err, ErrMalformedPath)
}

func TestJoin(t *testing.T) {
	p, err := MustParse("/a").Join(MustParse("b/c"))
	require.NoError(t, err)
	assert.Equal(t, "/a/b/c", p.String())

	_, err = MustParse("/a").Join(MustParse("/b"))
	assert.ErrorIs(t, err, ErrNotRelative)
}

func TestIsRelativeTo(t *testing.T) {
	tests := []struct {
		path, base string
		want       bool
	}{
		{"/a/b", "/", true},
		{"/", "/", true},
		{"/a/b", "/a", true},
		{"/a", "/a", true},
		{"/ab", "/a", false},
		{"/a", "/a/b", false},
		{"a/b", "/a", false},
		{"<X>/a", "<X>", true},
		{"<X>/a", "<Y>", false},
		{"/VFS/mount-point-1/a", "/VFS/mount-point-10", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MustParse(tt.path).IsRelativeTo(MustParse(tt.base)), "%s in %s", tt.path, tt.base)
	}
}
