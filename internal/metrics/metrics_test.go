package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const battery = "/home/sensors/ABCD1234/current_battery_level"

func TestObserveReading(t *testing.T) {
	m := New()
	m.ObserveReading("home", battery, "%", 60.1)
	m.ObserveReading("home", battery, "%", 59.8)
	m.ObserveDecodeError("home", battery)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.messages.WithLabelValues("home", battery)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decodeErrors.WithLabelValues("home", battery)))
	assert.Equal(t, 59.8, testutil.ToFloat64(m.readingValue.WithLabelValues("home", battery, "%")))
}

func TestRouter(t *testing.T) {
	m := New()
	m.ObserveReading("home", battery, "%", 60.1)
	srv := httptest.NewServer(m.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `sensor_reading_value{channel="/home/sensors/ABCD1234/current_battery_level",connection="home",units="%"} 60.1`)

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/healthz", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
