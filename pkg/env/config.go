// Package env provides common configuration for commands.
package env

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/robotalks/framelink/pkg/arq"
	"github.com/robotalks/framelink/pkg/bridge/mqtt"
	fx "github.com/robotalks/framelink/pkg/framework"
	"github.com/robotalks/framelink/pkg/framing"
	"github.com/robotalks/framelink/pkg/link"
	"github.com/robotalks/framelink/pkg/stream"
	"github.com/robotalks/framelink/pkg/transport"
)

// Config provides common options to setup links.
type Config struct {
	// URL specifies the byte stream, see transport.Open.
	URL string
	// MQTTURL enables the MQTT bridge when not empty.
	// e.g. mqtt://host:port/topic-prefix
	MQTTURL string
	// Name is the name of the link used in MQTT topics.
	Name string
	// Variant is the protocol variant name.
	Variant string
	// Timeout is the ACK timeout in ticks.
	Timeout uint
	// MaxAttempts bounds transmissions, 0 is unbounded.
	MaxAttempts int
	// Interval is the duration of a tick.
	Interval time.Duration
}

var defaultConfig = Config{
	URL:      "tcp://localhost:7700",
	Name:     "link",
	Variant:  framing.Standard.Name,
	Timeout:  500,
	Interval: fx.DefaultInterval,
}

func init() {
	if err := defaultConfig.LoadEnv(os.Getenv); err != nil {
		log.Fatalln(err)
	}
}

// LoadEnv overrides the config with environment variables.
func (c *Config) LoadEnv(getenv func(string) string) error {
	if val := getenv("FRAMELINK_URL"); val != "" {
		c.URL = val
	}
	if val := getenv("FRAMELINK_MQTT_URL"); val != "" {
		c.MQTTURL = val
	}
	if val := getenv("FRAMELINK_NAME"); val != "" {
		c.Name = val
	}
	if val := getenv("FRAMELINK_VARIANT"); val != "" {
		c.Variant = val
	}
	if val := getenv("FRAMELINK_TIMEOUT"); val != "" {
		n, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid FRAMELINK_TIMEOUT: %v", err)
		}
		c.Timeout = uint(n)
	}
	if val := getenv("FRAMELINK_MAX_ATTEMPTS"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid FRAMELINK_MAX_ATTEMPTS: %q", val)
		}
		c.MaxAttempts = n
	}
	return nil
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.URL, "url", defaultConfig.URL, "Stream URL: tcp://, tcp-listen://, ws://, file:// or device path.")
	flag.StringVar(&defaultConfig.MQTTURL, "mqtt", defaultConfig.MQTTURL, "MQTT broker URL to bridge payloads.")
	flag.StringVar(&defaultConfig.Name, "name", defaultConfig.Name, "Link name used in MQTT topics.")
	flag.StringVar(&defaultConfig.Variant, "variant", defaultConfig.Variant, "Protocol variant: standard or extended.")
	flag.UintVar(&defaultConfig.Timeout, "timeout", defaultConfig.Timeout, "ACK timeout in ticks.")
	flag.IntVar(&defaultConfig.MaxAttempts, "max-attempts", defaultConfig.MaxAttempts, "Max transmissions per payload, 0 for unlimited.")
	flag.DurationVar(&defaultConfig.Interval, "tick", defaultConfig.Interval, "Duration of a tick.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// FramingVariant resolves the protocol variant.
func (c *Config) FramingVariant() (framing.Variant, error) {
	v, err := framing.VariantByName(c.Variant)
	if err != nil {
		return v, fmt.Errorf("%v: %q", err, c.Variant)
	}
	return v, nil
}

// MustFramingVariant resolves the protocol variant and fails on error.
func (c *Config) MustFramingVariant() framing.Variant {
	v, err := c.FramingVariant()
	if err != nil {
		log.Fatalln(err)
	}
	return v
}

// ArqOptions returns the options for sending.
func (c *Config) ArqOptions() arq.Options {
	return arq.Options{
		Timeout:     framing.Tick(c.Timeout),
		MaxAttempts: c.MaxAttempts,
	}
}

// NewLoop creates a Loop paced by Interval.
func (c *Config) NewLoop() *fx.Loop {
	l := fx.NewLoop()
	if c.Interval > 0 {
		l.Interval = c.Interval
	}
	return l
}

// OpenPort opens the stream.
func (c *Config) OpenPort() (*stream.Port, error) {
	rw, err := transport.Open(c.URL)
	if err != nil {
		return nil, err
	}
	return stream.NewPort(rw), nil
}

// NewEndpoint opens the stream and creates an Endpoint of the role.
func (c *Config) NewEndpoint(role link.Role, handler arq.PayloadHandler) (*link.Endpoint, error) {
	v, err := c.FramingVariant()
	if err != nil {
		return nil, err
	}
	port, err := c.OpenPort()
	if err != nil {
		return nil, err
	}
	if role == link.RoleRecv {
		return link.NewReceiver(port, v, handler), nil
	}
	return link.NewSender(port, v, c.ArqOptions()), nil
}

// MustNewEndpoint creates an Endpoint and fails on error.
func (c *Config) MustNewEndpoint(role link.Role, handler arq.PayloadHandler) *link.Endpoint {
	ep, err := c.NewEndpoint(role, handler)
	if err != nil {
		log.Fatalln(err)
	}
	return ep
}

// BrokerURL returns MQTTURL with a client-id derived from the machine ID
// when none is specified.
func (c *Config) BrokerURL(role link.Role) (string, error) {
	u, err := url.Parse(c.MQTTURL)
	if err != nil {
		return "", fmt.Errorf("invalid MQTT URL: %v", err)
	}
	query := u.Query()
	if query.Get("client-id") == "" {
		query.Set("client-id", "framelink-"+MachineID()+"-"+c.Name+"-"+role.String())
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

// NewBridge creates the MQTT bridge for ep. It returns nil if MQTTURL
// is not set.
func (c *Config) NewBridge(ep *link.Endpoint) (*mqtt.Bridge, error) {
	if c.MQTTURL == "" {
		return nil, nil
	}
	brokerURL, err := c.BrokerURL(ep.Role())
	if err != nil {
		return nil, err
	}
	return mqtt.NewBridge(brokerURL, c.Name, ep)
}

// MustNewBridge creates the MQTT bridge and fails on error.
func (c *Config) MustNewBridge(ep *link.Endpoint) *mqtt.Bridge {
	b, err := c.NewBridge(ep)
	if err != nil {
		log.Fatalln(err)
	}
	return b
}
