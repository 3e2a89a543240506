// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// console subscribes to the MQTT event topic and prints every epoch
// detector event as it arrives, in the event-type/payload shape
// internal/eventclient publishes.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type eventEnvelope struct {
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data"`
}

func main() {
	broker := flag.String("broker", "tcp://localhost:1883", "MQTT broker address")
	topic := flag.String("topic", "imud/events", "event topic to subscribe to")
	flag.Parse()

	opts := mqtt.NewClientOptions().
		AddBroker(*broker).
		SetClientID("imud-console")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("console: connect: %v", token.Error())
	}
	log.Printf("console: connected to MQTT broker at %s", *broker)

	token := client.Subscribe(*topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var ev eventEnvelope
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			log.Printf("console: payload unmarshal error: %v", err)
			return
		}
		fmt.Printf("%-14s %v\n", ev.EventType, ev.Data)
	})
	token.Wait()
	if token.Error() != nil {
		log.Fatalf("console: subscribe: %v", token.Error())
	}
	log.Printf("console: subscribed to %s", *topic)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
}
