package pubsub

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/webitel/im-presence-service/config"
	"github.com/webitel/im-presence-service/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pubsub",
	fx.Provide(ProvideExporter),
)

// BuildPublisher creates the watermill publisher for the configured driver.
// A nil publisher means export is disabled.
func BuildPublisher(cfg config.EventsConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	switch cfg.Driver {
	case config.EventsNone, "":
		return nil, nil

	case config.EventsMemory:
		return gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, logger), nil

	case config.EventsAMQP:
		exchange := cfg.Exchange
		pub, err := amqp.NewPublisher(amqp.Config{
			Connection: amqp.ConnectionConfig{AmqpURI: cfg.AMQPURI},
			Marshaler:  amqp.DefaultMarshaler{},
			Exchange: amqp.ExchangeConfig{
				// Every routing key goes to one durable topic exchange.
				GenerateName: func(string) string { return exchange },
				Type:         "topic",
				Durable:      true,
			},
			Publish: amqp.PublishConfig{
				GenerateRoutingKey: func(topic string) string { return topic },
			},
			TopologyBuilder: &amqp.DefaultTopologyBuilder{},
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("amqp publisher: %w", err)
		}
		return pub, nil

	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}

// ProvideExporter wires the publisher into the service layer and closes it on stop.
func ProvideExporter(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (service.Exporter, error) {
	pub, err := BuildPublisher(cfg.Events, watermill.NewSlogLogger(logger))
	if err != nil {
		return nil, err
	}
	if pub == nil {
		logger.Info("EVENT_EXPORT_DISABLED")
		return Nop{}, nil
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return pub.Close()
		},
	})
	logger.Info("EVENT_EXPORT_READY", "driver", cfg.Events.Driver, "exchange", cfg.Events.Exchange)
	return NewEventDispatcher(pub), nil
}
