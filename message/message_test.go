package message

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiandiShan/rclgo/errors"
)

// stringMsg mirrors std_msgs/msg/String for tests
type stringMsg struct {
	Data string `json:"data"`
}

func (m *stringMsg) TypeName() string { return "std_msgs/msg/String" }

func (m *stringMsg) MarshalPayload() ([]byte, error) { return json.Marshal(m) }

func (m *stringMsg) UnmarshalPayload(data []byte) error { return json.Unmarshal(data, m) }

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{"std_msgs/msg/String", Type{"std_msgs", "msg", "String"}, false},
		{"example_interfaces/srv/AddTwoInts", Type{"example_interfaces", "srv", "AddTwoInts"}, false},
		{"action_tutorials/action/Fibonacci", Type{"action_tutorials", "action", "Fibonacci"}, false},
		{"String", Type{}, true},
		{"std_msgs/String", Type{}, true},
		{"std_msgs/topic/String", Type{}, true},
		{"/msg/String", Type{}, true},
		{"std_msgs/msg/", Type{}, true},
	}

	for _, tt := range tests {
		got, err := ParseType(tt.in)
		if tt.wantErr {
			assert.True(t, errors.IsUnsupportedType(err), "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.in, got.String())
	}
}

func TestCodec_EncodeDecode(t *testing.T) {
	codec := NewCodec()
	codec.Register("std_msgs/msg/String", func() Message { return &stringMsg{} })

	stamp := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	data, err := codec.Encode(&stringMsg{Data: "hello"}, "/talker", stamp)
	require.NoError(t, err)

	msg, env, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "std_msgs/msg/String", env.Type)
	assert.Equal(t, "/talker", env.Publisher)
	assert.True(t, env.Stamp.Equal(stamp))

	decoded, ok := msg.(*stringMsg)
	require.True(t, ok)
	assert.Equal(t, "hello", decoded.Data)
}

func TestCodec_UnknownTypeIsUnsupported(t *testing.T) {
	codec := NewCodec()

	_, err := codec.New("std_msgs/msg/String")
	assert.True(t, errors.IsUnsupportedType(err))

	data, err := NewCodecWith("std_msgs/msg/String").Encode(&stringMsg{Data: "x"}, "", time.Now())
	require.NoError(t, err)
	_, _, err = codec.Decode(data)
	assert.True(t, errors.IsUnsupportedType(err))
}

// NewCodecWith is a test helper building a codec that knows stringMsg
func NewCodecWith(typeName string) *Codec {
	c := NewCodec()
	c.Register(typeName, func() Message { return &stringMsg{} })
	return c
}

func TestCodec_RawPassthrough(t *testing.T) {
	codec := NewCodec()
	codec.Register("std_msgs/msg/String", func() Message { return &stringMsg{} })

	data, err := codec.Encode(&stringMsg{Data: "opaque"}, "/talker", time.Now())
	require.NoError(t, err)

	raw, env, err := codec.DecodeRaw(data)
	require.NoError(t, err)
	assert.Equal(t, "std_msgs/msg/String", raw.TypeName())
	assert.Equal(t, env.Data, raw.Data)

	// Re-encoding the raw payload round-trips the original bytes.
	reencoded, err := codec.Encode(raw, "/relay", time.Now())
	require.NoError(t, err)
	msg, _, err := codec.Decode(reencoded)
	require.NoError(t, err)
	assert.Equal(t, "opaque", msg.(*stringMsg).Data)
}

func TestRaw_UnmarshalCopies(t *testing.T) {
	src := []byte(`{"data":"x"}`)
	r := &Raw{Type: "std_msgs/msg/String"}
	require.NoError(t, r.UnmarshalPayload(src))
	src[0] = '?'
	assert.Equal(t, byte('{'), r.Data[0])
}
