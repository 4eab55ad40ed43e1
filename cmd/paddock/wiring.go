package main

import (
	"github.com/sirupsen/logrus"
	"github.com/yourusername/paddock/internal/config"
	"github.com/yourusername/paddock/internal/events"
	"github.com/yourusername/paddock/internal/feed"
	"github.com/yourusername/paddock/internal/lifecycle"
	"github.com/yourusername/paddock/internal/session"
	"github.com/yourusername/paddock/internal/wallet"
)

// Kafka carries the durable race history; ticks stay off the topic
var kafkaTypes = []events.Type{
	events.RaceCreated,
	events.RaceStarted,
	events.RaceSettled,
	events.RaceCancelled,
	events.WagerPlaced,
}

// Redis carries what a betting screen needs to redraw
var redisTypes = []events.Type{
	events.OddsUpdated,
	events.RaceStarted,
	events.RaceSettled,
	events.RaceCancelled,
}

// buildPublisher fans controller events out to every configured sink. hub may be nil.
func buildPublisher(c *config.Config, hub *feed.Hub, log *logrus.Logger) events.Publisher {
	var sinks events.Multi

	if c.Events.Kafka.Enabled {
		w := events.NewKafkaWriter(c.Events.Kafka.Brokers, c.Events.Kafka.Topic)
		sinks = append(sinks, events.Filter{Next: events.NewKafkaPublisher(w), Types: kafkaTypes})
		log.WithFields(logrus.Fields{
			"brokers": c.Events.Kafka.Brokers,
			"topic":   c.Events.Kafka.Topic,
		}).Info("Kafka event stream enabled")
	}

	if c.Events.Redis.Enabled {
		client := events.NewRedisClient(c.Events.Redis.Address, c.Events.Redis.Password, c.Events.Redis.DB)
		sinks = append(sinks, events.Filter{
			Next:  events.NewRedisPublisher(client, c.Events.Redis.Channel),
			Types: redisTypes,
		})
		log.WithFields(logrus.Fields{
			"address": c.Events.Redis.Address,
			"channel": c.Events.Redis.Channel,
		}).Info("Redis odds broadcast enabled")
	}

	if hub != nil {
		sinks = append(sinks, hub)
	}

	if len(sinks) == 0 {
		return events.Nop{}
	}
	return sinks
}

// buildPayer picks the account stakes are debited from and payouts credited to: the
// external wallet when configured, the in-process game sessions otherwise
func buildPayer(c *config.Config, sessions *session.Registry, log *logrus.Logger) (lifecycle.Escrow, func() error) {
	if !c.Wallet.Enabled {
		return sessions, func() error { return nil }
	}
	client := wallet.NewClient(wallet.FromAppConfig(c.Wallet), log)
	log.WithField("url", c.Wallet.URL).Info("Stakes and payouts settled through external wallet")
	return client, client.Close
}
