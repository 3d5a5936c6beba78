package bytesize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		input string
		want  ByteSize
	}{
		{"0", 0},
		{"1024", 1024},
		{"1024B", 1024},
		{"1024b", 1024},
		{"1Ki", KiB},
		{"1KiB", KiB},
		{"256Ki", 256 * KiB},
		{"100Mi", 100 * MiB},
		{"1mib", MiB},
		{"1GI", GiB},
		{"2Ti", 2 * TiB},
		{"1K", KB},
		{"100MB", 100 * MB},
		{"1g", GB},
		{"1T", TB},
		{"  1Gi  ", GiB},
		{"1 Gi", GiB},
		{"1.5Mi", ByteSize(1.5 * float64(MiB))},
		{"0.5Gi", 512 * MiB},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseByteSize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseByteSize_Invalid(t *testing.T) {
	for _, input := range []string{"", "   ", "Mi", "-1", "1.Mi", ".5Mi", "1.2.3Mi", "10XB", "1 Mi B", "99999999999999999999", "20000000Ti"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseByteSize(input)
			assert.Error(t, err)
		})
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "0B", ByteSize(0).String())
	assert.Equal(t, "512B", ByteSize(512).String())
	assert.Equal(t, "1Ki", KiB.String())
	assert.Equal(t, "1.50Ki", ByteSize(1536).String())
	assert.Equal(t, "1Mi", MiB.String())
	assert.Equal(t, "16Mi", (16 * MiB).String())
	assert.Equal(t, "1.50Gi", (GiB + 512*MiB).String())
	assert.Equal(t, "3Ti", (3 * TiB).String())
}

func TestMarshalText_RoundTrip(t *testing.T) {
	for _, size := range []ByteSize{0, 1, 1000, KiB, 1536, MiB, 16 * MiB, GiB + 1, 5 * TiB} {
		text, err := size.MarshalText()
		require.NoError(t, err)

		var back ByteSize
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, size, back, string(text))
	}

	text, err := (64 * MiB).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "64Mi", string(text))
}

func TestYAML(t *testing.T) {
	type doc struct {
		Size ByteSize `yaml:"size"`
	}

	out, err := yaml.Marshal(doc{Size: 256 * KiB})
	require.NoError(t, err)
	assert.Equal(t, "size: 256Ki\n", string(out))

	var d doc
	require.NoError(t, yaml.Unmarshal([]byte("size: 2Mi\n"), &d))
	assert.Equal(t, 2*MiB, d.Size)
}

func TestInt64Saturates(t *testing.T) {
	assert.Equal(t, int64(MiB), MiB.Int64())
	assert.Equal(t, int64(math.MaxInt64), ByteSize(math.MaxUint64).Int64())
	assert.Equal(t, uint64(GiB), GiB.Uint64())
}
