package names

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiandiShan/rclgo/errors"
)

func TestValidateTopicName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantIndex int // -1 means valid
	}{
		{"empty", "", 0},
		{"simple", "chatter", -1},
		{"absolute", "/chatter", -1},
		{"nested", "/foo/bar/baz", -1},
		{"private", "~/status", -1},
		{"tilde alone", "~", -1},
		{"substitution", "{node}/status", -1},
		{"trailing slash", "chatter/", 7},
		{"repeated slash", "foo//bar", 4},
		{"tilde mid-name", "foo/~bar", 4},
		{"tilde without slash", "~foo", 1},
		{"bad character", "foo bar", 3},
		{"token starts with number", "foo/1bar", 4},
		{"leading number", "1foo", 0},
		{"unmatched open brace", "{node/status", 0},
		{"unmatched close brace", "node}/status", 4},
		{"empty substitution", "{}/status", 1},
		{"substitution starts with number", "{1node}", 1},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			v := ValidateTopicName(test.input)
			if test.wantIndex < 0 {
				assert.Nil(t, v)
				return
			}
			require.NotNil(t, v, "expected %q to be invalid", test.input)
			assert.Equal(t, test.wantIndex, v.Index)
			assert.NotEmpty(t, v.Message)
		})
	}
}

func TestValidateFullTopicName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantIndex int
	}{
		{"empty", "", 0},
		{"valid", "/foo/bar", -1},
		{"single token", "/chatter", -1},
		{"relative", "foo/bar", 0},
		{"root only", "/", 0},
		{"trailing slash", "/foo/", 4},
		{"repeated slash", "/foo//bar", 5},
		{"tilde", "/foo/~bar", 5},
		{"substitution", "/foo/{node}", 5},
		{"token starts with number", "/foo/9bar", 5},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			v := ValidateFullTopicName(test.input)
			if test.wantIndex < 0 {
				assert.Nil(t, v)
				return
			}
			require.NotNil(t, v)
			assert.Equal(t, test.wantIndex, v.Index)
		})
	}
}

func TestValidateNamespace(t *testing.T) {
	assert.Nil(t, ValidateNamespace("/"))
	assert.Nil(t, ValidateNamespace("/robots/r2"))

	v := ValidateNamespace("")
	require.NotNil(t, v)
	assert.Equal(t, 0, v.Index)

	v = ValidateNamespace("relative")
	require.NotNil(t, v)
	assert.Equal(t, 0, v.Index)

	v = ValidateNamespace("/robots/")
	require.NotNil(t, v)
	assert.Contains(t, v.Message, "namespace")
}

func TestValidateNodeName(t *testing.T) {
	assert.Nil(t, ValidateNodeName("camera_driver"))

	tests := []struct {
		input     string
		wantIndex int
	}{
		{"", 0},
		{"9lives", 0},
		{"has/slash", 3},
		{"has space", 3},
		{"t~lde", 1},
	}
	for _, test := range tests {
		v := ValidateNodeName(test.input)
		require.NotNil(t, v, "expected %q to be invalid", test.input)
		assert.Equal(t, test.wantIndex, v.Index)
	}
}

func TestExpandTopicName(t *testing.T) {
	tests := []struct {
		name     string
		topic    string
		node     string
		ns       string
		expected string
	}{
		{"relative in namespace", "chatter", "talker", "/demo", "/demo/chatter"},
		{"relative in root", "chatter", "talker", "/", "/chatter"},
		{"absolute unchanged", "/other/chatter", "talker", "/demo", "/other/chatter"},
		{"private", "~/status", "talker", "/demo", "/demo/talker/status"},
		{"private alone", "~", "talker", "/demo", "/demo/talker"},
		{"private in root", "~/status", "talker", "/", "/talker/status"},
		{"node substitution", "{node}/cmd", "talker", "/demo", "/demo/talker/cmd"},
		{"ns substitution", "{ns}/shared", "talker", "/demo", "/demo/shared"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := ExpandTopicName(test.topic, test.node, test.ns)
			require.NoError(t, err)
			assert.Equal(t, test.expected, got)
		})
	}
}

func TestExpandTopicName_InvalidInputs(t *testing.T) {
	_, err := ExpandTopicName("", "talker", "/demo")
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))

	_, err = ExpandTopicName("chatter", "bad name", "/demo")
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))

	_, err = ExpandTopicName("chatter", "talker", "demo")
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestRemap_FirstMatchWins(t *testing.T) {
	rules := []RemapRule{
		{From: "/chatter", To: "/first"},
		{From: "/chatter", To: "/second"},
		{From: "/other", To: "/elsewhere"},
	}
	assert.Equal(t, "/first", RemapName("/chatter", rules))
	assert.Equal(t, "/elsewhere", RemapName("/other", rules))
}

func TestRemap_NoMatchUnchanged(t *testing.T) {
	rules := []RemapRule{{From: "/chatter", To: "/renamed"}}
	assert.Equal(t, "/unmatched", RemapName("/unmatched", rules))
	assert.Equal(t, "/plain", RemapName("/plain", nil))
}

func TestResolveName(t *testing.T) {
	rules := []RemapRule{{From: "/demo/chatter", To: "/demo/conversation"}}
	got, err := ResolveName("chatter", "talker", "/demo", rules)
	require.NoError(t, err)
	assert.Equal(t, "/demo/conversation", got)
}

func TestResolveName_EmptyRulesIsIdempotent(t *testing.T) {
	expanded, err := ExpandTopicName("chatter", "talker", "/demo")
	require.NoError(t, err)

	resolved, err := ResolveName("chatter", "talker", "/demo", nil)
	require.NoError(t, err)
	assert.Equal(t, expanded, resolved)

	// Resolving an already fully qualified name with no rules is a no-op.
	again, err := ResolveName(resolved, "talker", "/demo", nil)
	require.NoError(t, err)
	assert.Equal(t, resolved, again)
}

func TestFullyQualifiedNodeName(t *testing.T) {
	fqn, err := FullyQualifiedNodeName("talker", "/demo")
	require.NoError(t, err)
	assert.Equal(t, "/demo/talker", fqn)

	fqn, err = FullyQualifiedNodeName("talker", "/")
	require.NoError(t, err)
	assert.Equal(t, "/talker", fqn)

	_, err = FullyQualifiedNodeName("", "/")
	require.Error(t, err)
}
