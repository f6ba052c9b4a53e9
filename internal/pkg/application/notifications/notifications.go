package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"log/slog"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/diwise/messaging-golang/pkg/messaging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel"
	"golang.org/x/sys/unix"
	yaml "gopkg.in/yaml.v2"
)

const (
	TypeTempleCreated = "templefinder.templeCreated"
	TypeTempleUpdated = "templefinder.templeUpdated"
	TypeTempleDeleted = "templefinder.templeDeleted"
	TypeReviewAdded   = "templefinder.reviewAdded"
)

var eventTypeByTopic = map[string]string{
	"temple.created": TypeTempleCreated,
	"temple.updated": TypeTempleUpdated,
	"temple.deleted": TypeTempleDeleted,
	"review.added":   TypeReviewAdded,
}

const DefaultSendTimeout = 10 * time.Second

var tracer = otel.Tracer("temple-finder/notifications")

//go:generate moq -rm -out notifications_mock.go . EventSender

type EventSender interface {
	Send(ctx context.Context, eventType, templeID string, timestamp time.Time, data []byte) error
}

type eventSender struct {
	subscribers map[string][]subscriber
	client      cloudevents.Client
	timeout     time.Duration
}

type subscriber struct {
	endpoint string
	patterns []*regexp.Regexp
}

// matches reports whether the subscriber wants events about the given temple. A
// subscriber without id patterns gets every event of its type.
func (s subscriber) matches(templeID string) bool {
	if len(s.patterns) == 0 {
		return true
	}
	for _, p := range s.patterns {
		if p.MatchString(templeID) {
			return true
		}
	}
	return false
}

func New(cfg *Config) (EventSender, error) {
	e := &eventSender{
		subscribers: make(map[string][]subscriber),
		timeout:     DefaultSendTimeout,
	}

	if cfg == nil {
		return e, nil
	}

	for _, n := range cfg.Notifications {
		for _, s := range n.Subscribers {
			sub := subscriber{endpoint: s.Endpoint}

			for _, info := range s.Information {
				for _, entity := range info.Entities {
					p, err := regexp.Compile(entity.IDPattern)
					if err != nil {
						return nil, fmt.Errorf("notification %s has a bad idPattern %q: %w", n.ID, entity.IDPattern, err)
					}
					sub.patterns = append(sub.patterns, p)
				}
			}

			e.subscribers[n.Type] = append(e.subscribers[n.Type], sub)
		}
	}

	if len(e.subscribers) > 0 {
		c, err := cloudevents.NewClientHTTP()
		if err != nil {
			return nil, err
		}
		e.client = c
	}

	return e, nil
}

func (e *eventSender) Send(ctx context.Context, eventType, templeID string, timestamp time.Time, data []byte) error {
	if s, ok := e.subscribers[eventType]; !ok || len(s) == 0 {
		return nil
	}

	event := cloudevents.NewEvent()
	event.SetID(fmt.Sprintf("%s:%s:%d", eventType, templeID, timestamp.UnixNano()))
	event.SetTime(timestamp)
	event.SetSource("github.com/diwise/temple-finder")
	event.SetType(eventType)
	event.SetSubject(templeID)

	err := event.SetData(cloudevents.ApplicationJSON, data)
	if err != nil {
		return err
	}

	logger := logging.GetFromContext(ctx)

	// deliveries outlive the message that triggered them but never hang on a slow subscriber
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	for _, s := range e.subscribers[eventType] {
		if !s.matches(templeID) {
			continue
		}

		ctxWithTarget := cloudevents.ContextWithTarget(ctx, s.endpoint)

		result := e.client.Send(ctxWithTarget, event)
		if cloudevents.IsUndelivered(result) || errors.Is(result, unix.ECONNREFUSED) {
			logger.Error("failed to send event", "endpoint", s.endpoint, "err", result.Error())
			err = fmt.Errorf("%w", result)
		}
	}

	return err
}

// RegisterTopicMessageHandlers subscribes the sender to every topic that has a
// corresponding webhook event type.
func RegisterTopicMessageHandlers(messenger messaging.MsgContext, sender EventSender) error {
	for topic, eventType := range eventTypeByTopic {
		if err := messenger.RegisterTopicMessageHandler(topic, TopicMessageHandler(sender, eventType)); err != nil {
			return fmt.Errorf("failed to register handler for %s: %w", topic, err)
		}
	}
	return nil
}

// TopicMessageHandler forwards temple and review topic messages to the webhook
// subscribers of eventType.
func TopicMessageHandler(sender EventSender, eventType string) messaging.TopicMessageHandler {
	return func(ctx context.Context, itm messaging.IncomingTopicMessage, l *slog.Logger) {
		var err error

		ctx, span := tracer.Start(ctx, "notify-subscribers")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, l, ctx)

		log.Debug("received topic message", "type", eventType, "body", string(itm.Body()))

		body := struct {
			TempleID  string    `json:"templeID"`
			Timestamp time.Time `json:"timestamp"`
		}{}

		err = json.Unmarshal(itm.Body(), &body)
		if err != nil {
			log.Error("failed to unmarshal topic message", "err", err.Error())
			return
		}

		if body.Timestamp.IsZero() {
			body.Timestamp = time.Now().UTC()
		}

		err = sender.Send(ctx, eventType, body.TempleID, body.Timestamp, itm.Body())
		if err != nil {
			log.Error("failed to notify subscribers", "templeID", body.TempleID, "err", err.Error())
		}
	}
}

type EntityInfo struct {
	IDPattern string `yaml:"idPattern"`
}

type RegistrationInfo struct {
	Entities []EntityInfo `yaml:"entities"`
}

type SubscriberConfig struct {
	Endpoint    string             `yaml:"endpoint"`
	Information []RegistrationInfo `yaml:"information"`
}

type Notification struct {
	ID          string             `yaml:"id"`
	Name        string             `yaml:"name"`
	Type        string             `yaml:"type"`
	Subscribers []SubscriberConfig `yaml:"subscribers"`
}

type Config struct {
	Notifications []Notification `yaml:"notifications"`
}

func LoadConfiguration(data io.Reader) (*Config, error) {
	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := Config{}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
