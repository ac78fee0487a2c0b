package main

import (
	"encoding/hex"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/robotalks/framelink/pkg/bridge/mqtt"
)

var (
	mqttURL = "mqtt://localhost:1883/framelink/"
)

func init() {
	if val := os.Getenv("FRAMELINK_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}

	q.Sub("#", mqtt.Handler(func(topic string, payload []byte) {
		switch {
		case strings.HasSuffix(topic, "/meta"), strings.HasSuffix(topic, "/status"):
			log.Printf("%s: %s", topic, string(payload))
		default:
			log.Printf("%s: [%d] %s", topic, len(payload), hex.EncodeToString(payload))
		}
	}))
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
	<-(chan struct{})(nil)
}
