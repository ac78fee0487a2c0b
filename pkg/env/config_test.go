package env

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/framelink/pkg/framing"
	"github.com/robotalks/framelink/pkg/link"
)

func envOf(vars map[string]string) func(string) string {
	return func(key string) string {
		return vars[key]
	}
}

func TestLoadEnv(t *testing.T) {
	conf := &Config{}
	require.NoError(t, conf.LoadEnv(envOf(map[string]string{
		"FRAMELINK_URL":          "ws://host/link",
		"FRAMELINK_MQTT_URL":     "mqtt://broker:1883/robo",
		"FRAMELINK_NAME":         "arm",
		"FRAMELINK_VARIANT":      "Extended",
		"FRAMELINK_TIMEOUT":      "20",
		"FRAMELINK_MAX_ATTEMPTS": "3",
	})))
	require.Equal(t, "ws://host/link", conf.URL)
	require.Equal(t, "mqtt://broker:1883/robo", conf.MQTTURL)
	require.Equal(t, "arm", conf.Name)
	require.Equal(t, uint(20), conf.Timeout)
	require.Equal(t, 3, conf.MaxAttempts)

	v, err := conf.FramingVariant()
	require.NoError(t, err)
	require.Equal(t, framing.Extended, v)
	opts := conf.ArqOptions()
	require.Equal(t, framing.Tick(20), opts.Timeout)
	require.Equal(t, 3, opts.MaxAttempts)

	require.Error(t, conf.LoadEnv(envOf(map[string]string{"FRAMELINK_TIMEOUT": "soon"})))
	require.Error(t, conf.LoadEnv(envOf(map[string]string{"FRAMELINK_MAX_ATTEMPTS": "-1"})))
}

func TestNewConfig(t *testing.T) {
	conf := NewConfig()
	require.NotEmpty(t, conf.URL)
	conf.URL = "changed"
	require.NotEqual(t, "changed", Default().URL)
	require.Equal(t, Default().Interval, conf.NewLoop().Interval)
}

func TestFramingVariant(t *testing.T) {
	conf := &Config{}
	v, err := conf.FramingVariant()
	require.NoError(t, err)
	require.Equal(t, framing.Standard, v)

	conf.Variant = "crc16"
	_, err = conf.FramingVariant()
	require.Error(t, err)
	require.Contains(t, err.Error(), "crc16")
}

func TestBrokerURL(t *testing.T) {
	conf := &Config{Name: "arm", MQTTURL: "mqtt://broker:1883/robo/"}
	brokerURL, err := conf.BrokerURL(link.RoleSend)
	require.NoError(t, err)
	u, err := url.Parse(brokerURL)
	require.NoError(t, err)
	require.Equal(t, "/robo/", u.Path)
	clientID := u.Query().Get("client-id")
	require.True(t, strings.HasPrefix(clientID, "framelink-"))
	require.True(t, strings.HasSuffix(clientID, "-arm-send"))

	conf.MQTTURL = "mqtt://broker:1883/?client-id=fixed"
	brokerURL, err = conf.BrokerURL(link.RoleRecv)
	require.NoError(t, err)
	require.Equal(t, conf.MQTTURL, brokerURL)
}

func TestNewEndpointErrors(t *testing.T) {
	conf := &Config{URL: "udp://nowhere", Variant: "standard"}
	_, err := conf.NewEndpoint(link.RoleSend, nil)
	require.Error(t, err)

	conf.Variant = "unknown"
	_, err = conf.NewEndpoint(link.RoleSend, nil)
	require.Error(t, err)

	b, err := conf.NewBridge(nil)
	require.NoError(t, err)
	require.Nil(t, b)
}

func TestMachineID(t *testing.T) {
	id := MachineID()
	require.NotEmpty(t, id)
	require.True(t, len(id) <= 12)
}
