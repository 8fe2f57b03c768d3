package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"os"
	"time"

	mqtt "github.com/soypat/natiu-mqtt"
	"github.com/tarm/serial"
)

func main() {
	port := flag.String("port", "/dev/ttyACM0", "Serial port of the sink.")
	baud := flag.Int("baud", 115200, "Serial baud rate.")
	broker := flag.String("broker", "test.mosquitto.org:1883", "MQTT broker address.")
	topic := flag.String("topic", "spin", "MQTT topic prefix.")
	clientID := flag.String("id", "rssigw", "MQTT client identifier.")
	nodes := flag.Int("nodes", 4, "Number of measurement nodes.")
	verbose := flag.Bool("v", false, "Log every report.")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "rssigw - Forward RSSI reports from a sink on a serial port to an MQTT broker.\n\tUsage:\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	sp, err := serial.OpenPort(&serial.Config{Name: *port, Baud: *baud})
	if err != nil {
		log.Fatalf("failed to open serial port %s: %v", *port, err)
	}
	defer sp.Close()

	cfg := mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: make([]byte, 4096)},
		OnPub: func(pubHead mqtt.Header, varPub mqtt.VariablesPublish, r io.Reader) error {
			return nil
		},
	}
	client := mqtt.NewClient(cfg)
	var varconn mqtt.VariablesConnect
	varconn.SetDefaultMQTT([]byte(*clientID))
	pubFlags, _ := mqtt.NewPublishFlags(mqtt.QoS0, false, false)
	var packetID uint16

	var conn net.Conn
	connected := false
	connect := func() error {
		if conn != nil {
			conn.Close()
		}
		conn, err = net.DialTimeout("tcp", *broker, 5*time.Second)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = client.Connect(ctx, conn, &varconn)
		connected = err == nil
		return err
	}
	publish := func(topic string, payload []byte) error {
		for retries := 3; ; retries-- {
			if !connected || !client.IsConnected() {
				logger.Info("mqtt:connect", slog.String("broker", *broker))
				if err := connect(); err != nil {
					logger.Error("mqtt:connect-failed", slog.String("reason", err.Error()))
					if retries == 0 {
						return err
					}
					time.Sleep(time.Second)
					continue
				}
			}
			packetID++
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			err := client.PublishPayload(pubFlags, mqtt.VariablesPublish{TopicName: []byte(topic), PacketIdentifier: packetID}, payload)
			if err == nil || retries == 0 {
				return err
			}
			logger.Error("mqtt:publish-failed", slog.String("reason", err.Error()))
			connected = false
		}
	}

	gw := newGateway(sp, *nodes, *topic, publish, logger)
	logger.Info("rssigw:start", slog.String("port", *port), slog.Int("nodes", *nodes))
	if err := gw.run(); err != nil {
		log.Fatal(err)
	}
}
