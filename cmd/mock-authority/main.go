// Package main runs a stand-in Authority for local and end-to-end setups.
// It consumes authorization requests from Kafka, applies a static
// controller policy and publishes verdicts back to the registry.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"vcregistry/internal/authority"
	"vcregistry/internal/platform/kafka"
	"vcregistry/internal/platform/kafka/consumer"
	"vcregistry/internal/platform/kafka/producer"
	"vcregistry/internal/platform/logger"
	id "vcregistry/pkg/domain"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "mock-authority:", err)
		os.Exit(1)
	}
}

func run() error {
	brokers := flag.String("brokers", os.Getenv("KAFKA_BROKERS"), "Comma-separated Kafka brokers")
	address := flag.String("address", os.Getenv("LOCAL_AUTHORITY_ADDRESS"), "Address this authority answers for")
	policy := flag.String("policy", os.Getenv("LOCAL_AUTHORITY_POLICY"), "Controller policy: did=0x..|0x..;did2=0x..")
	requestTopic := flag.String("request-topic", envOr("AUTHORITY_REQUEST_TOPIC", "vcregistry.authority.requests"), "Topic carrying authorization requests")
	verdictTopic := flag.String("verdict-topic", envOr("AUTHORITY_VERDICT_TOPIC", "vcregistry.authority.verdicts"), "Topic receiving verdicts")
	groupID := flag.String("group", envOr("MOCK_AUTHORITY_GROUP_ID", "vcregistry-mock-authority"), "Consumer group")
	level := flag.String("log-level", envOr("LOG_LEVEL", "info"), "Log level")
	flag.Parse()

	log := logger.New(*level)

	brokerList := splitList(*brokers)
	if len(brokerList) == 0 {
		return fmt.Errorf("-brokers or KAFKA_BROKERS is required")
	}
	addr, err := id.ParseAddress(*address)
	if err != nil {
		return fmt.Errorf("-address: %w", err)
	}
	p, err := authority.ParsePolicy(*policy)
	if err != nil {
		return fmt.Errorf("-policy: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	admin, err := kafka.NewAdmin(brokerList)
	if err != nil {
		return fmt.Errorf("create kafka admin: %w", err)
	}
	defer admin.Close()
	if err := admin.EnsureTopics(ctx, 3, 1, *requestTopic, *verdictTopic); err != nil {
		return fmt.Errorf("ensure topics: %w", err)
	}

	prod, err := producer.New(producer.DefaultConfig(brokerList), log)
	if err != nil {
		return fmt.Errorf("create producer: %w", err)
	}
	defer prod.Close() //nolint:errcheck // best-effort flush on exit

	responder := authority.NewResponder(authority.New(addr, p, log), prod, *verdictTopic, log)
	c, err := consumer.New(consumer.Config{
		Brokers: brokerList,
		GroupID: *groupID,
		Topics:  []string{*requestTopic},
	}, responder, log)
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	log.Info("mock authority listening",
		"authority", addr,
		"dids", p.DIDs(),
		"request_topic", *requestTopic,
		"verdict_topic", *verdictTopic,
	)
	c.Start()
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.Stop(stopCtx)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
