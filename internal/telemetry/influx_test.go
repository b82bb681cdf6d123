package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/carview/internal/core/camera"
	"github.com/zeusync/carview/internal/core/observability/log"
	"github.com/zeusync/carview/internal/core/systems/physics"
	"github.com/zeusync/carview/internal/sim"
)

func sampleFrame() sim.Frame {
	return sim.Frame{
		Seq:  12,
		Time: 0.2,
		Vehicle: sim.VehicleFrame{
			Position: physics.V3(1, 0, 2),
			Heading:  0.5,
			Speed:    3,
		},
		Mode: camera.ModeFixed,
	}
}

func TestPoint(t *testing.T) {
	ts := time.Unix(100, 0)
	p := Point("abc", sampleFrame(), ts)

	assert.Equal(t, Measurement, p.Name())
	assert.Equal(t, ts, p.Time())

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, map[string]string{"session": "abc", "mode": "fixed"}, tags)

	fields := map[string]any{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, 3.0, fields["speed"])
	assert.Equal(t, 0.5, fields["heading"])
	assert.Equal(t, 1.0, fields["x"])
	assert.Equal(t, 2.0, fields["z"])
	assert.Equal(t, false, fields["reset"])
}

func TestInfluxSink_Writes(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v2/write" {
			b, _ := io.ReadAll(r.Body)
			mu.Lock()
			bodies = append(bodies, string(b))
			mu.Unlock()
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewInfluxSink(InfluxConfig{URL: srv.URL, Org: "o", Bucket: "b", BatchSize: 10}, log.Nop())
	require.NoError(t, s.Record(context.Background(), "abc", sampleFrame()))
	require.NoError(t, s.Close())

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(bodies) > 0 && strings.HasPrefix(bodies[0], "vehicle,")
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, bodies[0], "session=abc")
	assert.Contains(t, bodies[0], "speed=3")
}
