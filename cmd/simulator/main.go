// Command simulator runs a fleet of fake radiators on the MQTT topic.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"radiator_control/internal/config"
	"radiator_control/internal/logger"
	"radiator_control/internal/mqtt"
	"radiator_control/internal/protocol"
	"radiator_control/internal/simulator"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	flags := pflag.NewFlagSet("simulator", pflag.ExitOnError)
	flags.String("host", "127.0.0.1", "MQTT broker host")
	flags.Int("port", 1883, "MQTT broker port")
	flags.String("topic", "test", "topic listened to and answered on")
	flags.StringSlice("devices", nil, "simulated radiators, e.g. --devices Salon,Cuisine")
	flags.String("initial-state", "DEFAULT", "state every radiator starts in")
	flags.StringSlice("mute", nil, "radiators that never answer")
	flags.String("format", string(protocol.FormatLiteral), "reply encoding: literal or json")
	flags.String("username", "", "MQTT username")
	flags.String("password", "", "MQTT password")
	flags.Bool("verbose", false, "log every message")
	_ = flags.Parse(os.Args[1:])

	v := viper.New()
	v.SetEnvPrefix("simulator")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		logger.Get(logger.InfoLevel).Fatalw("bind flags", "err", err)
	}

	level := logger.InfoLevel
	if v.GetBool("verbose") {
		level = logger.DebugLevel
	}
	log := logger.Get(level)

	devices := v.GetStringSlice("devices")
	if len(devices) == 0 {
		log.Fatalw("at least one device is required (--devices)")
	}
	format, err := protocol.ParseFormat(v.GetString("format"))
	if err != nil {
		log.Fatalw("invalid format", "err", err)
	}

	fleet := simulator.NewFleet(devices, v.GetString("initial-state"),
		simulator.WithMute(v.GetStringSlice("mute")...),
		simulator.WithFormat(format),
		simulator.WithLogger(log),
	)

	topic := v.GetString("topic")
	client := mqtt.New(config.MQTT{
		Host:      v.GetString("host"),
		Port:      v.GetInt("port"),
		ClientID:  "radiator-simulator",
		Username:  v.GetString("username"),
		Password:  v.GetString("password"),
		Topic:     topic,
		Retention: time.Minute,
	}, nil, log)
	if err := client.Connect(); err != nil {
		log.Fatalw("mqtt connect failed", "err", err)
	}
	defer client.Close()
	if err := client.Subscribe(topic); err != nil {
		log.Fatalw("mqtt subscribe failed", "topic", topic, "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infow("simulator_started", "devices", fleet.Devices(), "topic", topic, "muted", v.GetStringSlice("mute"))
	fleet.Serve(ctx, client, topic)
	log.Infow("simulator_stopped")
}
