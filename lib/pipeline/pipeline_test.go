package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowmerak/pubsub.go/lib/broker"
	"github.com/snowmerak/pubsub.go/lib/message"
	"github.com/snowmerak/pubsub.go/lib/roles"
	"github.com/snowmerak/pubsub.go/lib/ticker"
)

func TestLoad(t *testing.T) {
	p, err := Load(filepath.Join("testdata", "pull.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "faces-pull", p.Name)
	assert.Equal(t, "pull", p.Strategy)
	assert.Equal(t, "abort", p.OnDeliveryFailure)
	assert.Nil(t, p.Acks)
	assert.Equal(t, time.Second, p.TickInterval())
	require.Len(t, p.Modules, 3)
	assert.Equal(t, Module{Name: "FaceDetector", Role: "face_detector"}, p.Modules[1])

	require.NoError(t, p.Validate(roles.DefaultRegistry()))

	opts, err := p.BrokerOptions(nil)
	require.NoError(t, err)
	o := broker.New(opts...).Options()
	assert.Equal(t, broker.StrategyPull, o.Strategy)
	assert.Equal(t, 50*time.Millisecond, o.IdleInterval)
	assert.True(t, o.Acks)
	assert.Equal(t, broker.FailureAbort, o.FailurePolicy)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read pipeline file")

	_, err = Parse([]byte("modules: [unterminated"))
	assert.ErrorContains(t, err, "failed to parse pipeline")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "faces.yaml")
	require.NoError(t, Save(Default(), path))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestValidate(t *testing.T) {
	reg := roles.DefaultRegistry()

	tests := []struct {
		name string
		yaml string
		want []string
	}{
		{
			name: "empty",
			yaml: "name: empty\n",
			want: []string{"pipeline has no modules"},
		},
		{
			name: "duplicates and unknown role",
			yaml: `
modules:
  - {name: A, role: camera}
  - {name: A, role: display}
  - {name: B, role: microphone}
  - {role: display}
`,
			want: []string{`module "A": duplicate name`, `unknown role "microphone"`, "module 4: name is empty"},
		},
		{
			name: "bad settings",
			yaml: `
strategy: poll
on_delivery_failure: panic
idle_interval: soon
tick: {interval: -1s, target: Nobody}
modules:
  - {name: A, role: camera}
`,
			want: []string{`unknown strategy "poll"`, `unknown delivery failure policy "panic"`, "idle_interval:", "tick.interval: must not be negative", `tick target "Nobody" is not a module`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)

			err = p.Validate(reg)
			require.Error(t, err)
			for _, w := range tt.want {
				assert.ErrorContains(t, err, w)
			}
		})
	}
}

func TestValidate_NilRegistry(t *testing.T) {
	assert.NoError(t, Default().Validate(nil))

	p := Default()
	p.Modules[0].Role = "lidar"
	assert.ErrorContains(t, p.Validate(nil), `unknown role "lidar"`)

	rt, err := Default().Build(nil, nil)
	require.NoError(t, err)
	require.Len(t, rt.Handlers, 4)
	_, ok := rt.Broker.Lookup("Display")
	assert.True(t, ok)
}

func TestBuild_RejectsInvalid(t *testing.T) {
	p := Default()
	p.Modules = append(p.Modules, Module{Name: "Camera", Role: "camera"})

	_, err := p.Build(roles.DefaultRegistry(), nil)
	assert.ErrorContains(t, err, `invalid pipeline "faces"`)
}

func TestBuild_DefaultRunsEndToEnd(t *testing.T) {
	p := Default()
	p.Tick.Interval = "10ms"

	rt, err := p.Build(roles.DefaultRegistry(), nil, broker.WithShutdownGrace(time.Second))
	require.NoError(t, err)

	cam, ok := rt.Broker.Lookup("Camera")
	require.True(t, ok)
	assert.Equal(t, cam, rt.TickTarget)
	assert.Equal(t, 10*time.Millisecond, rt.TickInterval)
	require.Len(t, rt.Handlers, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- rt.Broker.Run(ctx) }()
	go func() { _ = ticker.New(rt.Broker, rt.TickInterval, rt.TickTarget, nil).Run(ctx) }()

	display := rt.Handlers["Display"].(*roles.DisplayHandler)
	other := rt.Handlers["OtherDisplay"].(*roles.DisplayHandler)
	require.Eventually(t, func() bool {
		return display.Received() >= 2 && other.Received() >= 2
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("broker did not stop")
	}

	topics := map[string][]string{}
	for _, info := range rt.Broker.Modules() {
		topics[info.Name] = info.Topics
	}
	assert.Empty(t, topics["Camera"])
	assert.Equal(t, []string{"/frames"}, topics["FaceDetector"])
	assert.Equal(t, []string{"/faces"}, topics["Display"])
	assert.Equal(t, []string{"/faces"}, topics["OtherDisplay"])
}

func TestBuild_BroadcastTickTarget(t *testing.T) {
	p := Default()
	p.Tick = Tick{Interval: "1s"}

	rt, err := p.Build(roles.DefaultRegistry(), nil)
	require.NoError(t, err)
	assert.Equal(t, message.External, rt.TickTarget)
}
