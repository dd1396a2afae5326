// Command quicmediademo drives a two-party call end to end over an
// in-process signaling bus, without a real QUIC handshake, to exercise
// the call state machine, capability exchange, and event broadcast in
// isolation from network transport.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/quicmedia/call"
	"github.com/opd-ai/quicmedia/config"
	"github.com/opd-ai/quicmedia/identity"
	"github.com/opd-ai/quicmedia/signaling"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bus := signaling.NewInProcessBus()
	cfg := config.Default()

	alice := call.NewManager(cfg, bus.Register("alice"), identity.Opaque("alice"))
	bob := call.NewManager(cfg, bus.Register("bob"), identity.Opaque("bob"))

	aliceEvents := alice.SubscribeEvents()
	bobEvents := bob.SubscribeEvents()

	go logEvents("alice", aliceEvents)
	go func() {
		for ev := range bobEvents {
			logEvent("bob", ev)
			if ev.Kind == call.EventIncomingCall {
				if err := bob.AcceptCall(ctx, ev.CallID); err != nil {
					logrus.WithError(err).Error("bob: accept call failed")
				}
			}
		}
	}()

	go runLoop("alice", alice, ctx)
	go runLoop("bob", bob, ctx)

	id, err := alice.InitiateCall(ctx, identity.Opaque("bob"), call.MediaConstraints{
		Audio:            true,
		Video:            true,
		MaxBandwidthKbps: 512,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "initiate call:", err)
		os.Exit(1)
	}

	fmt.Printf("call %s initiated, waiting for handshake\n", id)

	<-ctx.Done()
}

func runLoop(name string, m *call.Manager, ctx context.Context) {
	if err := m.RunSignalingLoop(ctx); err != nil {
		logrus.WithFields(logrus.Fields{"who": name}).WithError(err).Debug("signaling loop stopped")
	}
}

func logEvents(who string, events <-chan call.Event) {
	for ev := range events {
		logEvent(who, ev)
	}
}

func logEvent(who string, ev call.Event) {
	logrus.WithFields(logrus.Fields{
		"who":     who,
		"call_id": ev.CallID,
		"kind":    ev.Kind,
		"peer":    ev.Peer,
		"reason":  ev.Reason,
	}).Info("call event")
}
