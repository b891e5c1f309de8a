package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type modelMeta struct {
	Strategy string            `json:"strategy"`
	Seed     int64             `json:"seed"`
	Epochs   int               `json:"epochs"`
	QE       float64           `json:"qe"`
	Params   map[string]string `json:"params"`
}

func sampleMeta() modelMeta {
	return modelMeta{
		Strategy: "som",
		Seed:     7,
		Epochs:   12,
		QE:       0.0421,
		Params: map[string]string{
			"rows":         "20",
			"cols":         "20",
			"neighborhood": "gaussian",
		},
	}
}

func TestCodecs_RoundTrip(t *testing.T) {
	for _, c := range []Codec{JSON{}, GoJSON{}} {
		t.Run(c.Name(), func(t *testing.T) {
			data, err := c.Marshal(sampleMeta())
			require.NoError(t, err)

			var got modelMeta
			require.NoError(t, c.Unmarshal(data, &got))
			assert.Equal(t, sampleMeta(), got)
		})
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json"} {
		c, ok := ByName(name)
		require.True(t, ok, name)
		assert.Equal(t, name, c.Name())
	}

	_, ok := ByName("msgpack")
	assert.False(t, ok)
}

func TestCodecs_CrossDecode(t *testing.T) {
	// Both codecs speak JSON, so either can read the other's output. The
	// snapshot loader relies on this when the configured codec differs
	// from the one recorded in the header.
	data := MustMarshal(JSON{}, sampleMeta())

	var got modelMeta
	require.NoError(t, GoJSON{}.Unmarshal(data, &got))
	assert.Equal(t, sampleMeta(), got)
}

func BenchmarkCodec_Marshal(b *testing.B) {
	meta := sampleMeta()
	for _, c := range []Codec{JSON{}, GoJSON{}} {
		b.Run(c.Name(), func(b *testing.B) {
			b.ReportAllocs()
			var sink []byte
			for b.Loop() {
				out, err := c.Marshal(meta)
				if err != nil {
					b.Fatal(err)
				}
				sink = out
			}
			_ = sink
		})
	}
}
