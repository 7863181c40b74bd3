package transport

import (
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"

	"github.com/XiandiShan/rclgo/qos"
)

func TestUsesJetStream_TransientLocalOnly(t *testing.T) {
	cases := []struct {
		durability qos.Durability
		want       bool
	}{
		{qos.DurabilitySystemDefault, false},
		{qos.DurabilityVolatile, false},
		{qos.DurabilityUnknown, false},
		{qos.DurabilityTransientLocal, true},
	}
	for _, tc := range cases {
		p := qos.ProfileDefault()
		p.Durability = tc.durability
		assert.Equal(t, tc.want, usesJetStream(p), tc.durability.String())
	}
}

func TestStreamConfig_SubjectAndRetention(t *testing.T) {
	p := qos.ProfileDefault()
	p.Durability = qos.DurabilityTransientLocal
	p.Depth = 7

	cfg := streamConfig(42, "/ns/chatter", p)
	assert.Equal(t, "ros-42-ns-chatter", cfg.Name)
	assert.Equal(t, []string{"ros.42.ns.chatter"}, cfg.Subjects)
	assert.Equal(t, jetstream.LimitsPolicy, cfg.Retention)
	assert.Equal(t, int64(7), cfg.MaxMsgsPerSubject)
}

func TestStreamConfig_DepthFloor(t *testing.T) {
	p := qos.ProfileDefault()
	p.Durability = qos.DurabilityTransientLocal
	p.Depth = 0

	cfg := streamConfig(0, "/chatter", p)
	assert.Equal(t, int64(1), cfg.MaxMsgsPerSubject)
}
