// Package plugin implements the Event Handler and Lifecycle components:
// the per-message policy described in spec.md §4.7, and the init/cleanup
// wiring of every other component described in spec.md §4.8.
package plugin

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dkowalski/ulidmq/pkg/lookup"
	"github.com/dkowalski/ulidmq/pkg/pluginlog"
	"github.com/dkowalski/ulidmq/pkg/queue"
	"github.com/dkowalski/ulidmq/pkg/retention"
	"github.com/dkowalski/ulidmq/pkg/store"
	"github.com/dkowalski/ulidmq/pkg/topicmatch"
	"github.com/dkowalski/ulidmq/pkg/ulid"
	"github.com/dkowalski/ulidmq/pkg/writer"
)

// SupportedVersion reports the only broker interface version this module
// speaks. The host is expected to call this before Init and decline to
// load the plugin if its own interface version differs (spec.md §6).
func SupportedVersion() int { return 5 }

// Property is one MQTT v5 user-property key/value pair.
type Property struct {
	Name  string
	Value string
}

// MessageEvent is the Go analogue of the broker's message-accepted
// callback argument: everything the Event Handler needs to decide
// whether, and how, to persist a publish. Properties is append-only —
// the handler never removes an entry the broker supplied.
type MessageEvent struct {
	Topic      string
	Payload    []byte
	Retain     bool
	QoS        uint8
	Properties []Property
}

// Plugin owns every live resource for one loaded instance: the ULID
// generator, the store, the write queue, the batch writer, the
// retention sweeper, and the optional latest-id cache. Exactly one
// instance exists per host-side load, per spec.md §9's "encapsulate in
// a plugin-context value" strategy — there is no package-level mutable
// state anywhere in this module.
type Plugin struct {
	cfg Config
	log zerolog.Logger

	gen      *ulid.Generator
	store    *store.Store
	queue    *queue.Queue
	writer   *writer.Writer
	sweeper  *retention.Sweeper
	cache    lookup.Cache
	instance string
}

// Init parses opts, opens every resource in dependency order, and starts
// the background writer and sweeper. Any failure unwinds everything
// already acquired and returns an error; the host must not call
// OnMessage on a failed Init (spec.md §4.8: Initializing -> Unloaded on
// failure).
func Init(opts []Option) (*Plugin, error) {
	bootstrapLevel := "info"
	for _, o := range opts {
		if o.Key == "log_level" && o.Value != "" {
			bootstrapLevel = o.Value
		}
	}
	log := pluginlog.New(bootstrapLevel, nil)

	cfg := ParseOptions(opts, log)
	instance := uuid.NewString()
	log = log.With().Str("instance", instance).Logger()

	p := &Plugin{cfg: cfg, log: log, instance: instance}

	gen, err := ulid.NewGenerator(ulid.Paranoid)
	if err != nil {
		return nil, fmt.Errorf("plugin: init ulid generator: %w", err)
	}
	p.gen = gen

	s, err := store.Open(cfg.DBPath, log)
	if err != nil {
		return nil, fmt.Errorf("plugin: open store: %w", err)
	}
	p.store = s

	p.queue = queue.New(cfg.BatchSize, log)

	p.writer = writer.New(writer.Config{FlushInterval: cfg.FlushInterval}, p.queue, p.store, log)
	p.writer.Start()

	p.sweeper = retention.New(cfg.RetentionHorizon, p.store, log)
	p.sweeper.Start()

	cache, err := newCache(cfg, log)
	if err != nil {
		p.writer.Stop()
		p.sweeper.Stop()
		_ = p.store.Close()
		return nil, fmt.Errorf("plugin: init lookup cache: %w", err)
	}
	p.cache = cache

	log.Info().
		Str("db_path", cfg.DBPath).
		Int("batch_size", cfg.BatchSize).
		Dur("flush_interval", cfg.FlushInterval).
		Dur("retention_horizon", cfg.RetentionHorizon).
		Msg("plugin initialized")

	return p, nil
}

func newCache(cfg Config, log zerolog.Logger) (lookup.Cache, error) {
	if cfg.RedisAddr != "" {
		return lookup.NewRedisCache(context.Background(), lookup.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, log)
	}
	return lookup.NewMemoryCache(defaultLookupSize)
}

// OnMessage implements spec.md §4.7's five-step policy. It never returns
// an error the host needs to treat as a broker-visible failure —
// persistence is best-effort; only the id-property attachment is
// guaranteed on every reachable path.
func (p *Plugin) OnMessage(ctx context.Context, ev *MessageEvent) error {
	id := p.gen.Next()

	if topicmatch.ExcludesTopic(p.cfg.ExcludeTopics, ev.Topic) {
		p.attachID(ev, id)
		return nil
	}

	if ev.Retain && len(ev.Payload) == 0 {
		p.handleDeleteIntent(ctx, ev)
		p.attachID(ev, id)
		return nil
	}

	headers := formatHeaders(ev.Properties, p.cfg.ExcludeHeaders, p.cfg.DisableHeaders)
	payload := make([]byte, len(ev.Payload))
	copy(payload, ev.Payload)

	p.queue.Push(queue.Entry{Insert: &queue.InsertEntry{
		ID:      id,
		Topic:   ev.Topic,
		Payload: payload,
		Retain:  ev.Retain,
		QoS:     ev.QoS,
		Headers: headers.String,
		HasHdrs: headers.Valid,
	}})

	if p.cache != nil {
		if err := p.cache.Set(ctx, ev.Topic, id); err != nil {
			p.log.Debug().Err(err).Str("topic", ev.Topic).Msg("failed to update latest-id cache")
		}
	}

	p.attachID(ev, id)
	return nil
}

func (p *Plugin) handleDeleteIntent(ctx context.Context, ev *MessageEvent) {
	target, ok := targetFromProperties(ev.Properties)
	if !ok {
		target, ok = p.resolveLatest(ctx, ev.Topic)
	}
	if !ok {
		p.log.Warn().Str("topic", ev.Topic).Msg("retained delete with no resolvable target id, skipping")
		return
	}

	p.queue.Push(queue.Entry{Delete: &queue.DeleteEntry{Topic: ev.Topic, ID: target}})

	if p.cache != nil {
		if err := p.cache.Invalidate(ctx, ev.Topic); err != nil {
			p.log.Debug().Err(err).Str("topic", ev.Topic).Msg("failed to invalidate latest-id cache")
		}
	}
}

func targetFromProperties(props []Property) (string, bool) {
	for _, p := range props {
		if p.Name == "ulid" {
			return p.Value, true
		}
	}
	return "", false
}

func (p *Plugin) resolveLatest(ctx context.Context, topic string) (string, bool) {
	if p.cache != nil {
		if id, ok, err := p.cache.Get(ctx, topic); err == nil && ok {
			return id, true
		}
	}

	id, err := p.store.LatestID(ctx, topic)
	if err != nil {
		p.log.Error().Err(err).Str("topic", topic).Msg("failed to query latest id for delete fallback")
		return "", false
	}
	if id == "" {
		return "", false
	}
	return id, true
}

func (p *Plugin) attachID(ev *MessageEvent, id string) {
	ev.Properties = append(ev.Properties, Property{Name: "ulid", Value: id})
}

// Cleanup implements spec.md §4.8's Draining -> Unloaded transition: the
// writer performs its final, untimed drain, then the sweeper stops, the
// lookup cache is closed, and the store is closed last.
func (p *Plugin) Cleanup(_ context.Context) error {
	p.log.Info().Msg("plugin cleanup starting")

	p.writer.Stop()
	p.sweeper.Stop()

	if p.cache != nil {
		if err := p.cache.Close(); err != nil {
			p.log.Error().Err(err).Msg("error closing lookup cache")
		}
	}

	if err := p.store.Close(); err != nil {
		return fmt.Errorf("plugin: close store: %w", err)
	}

	p.log.Info().Msg("plugin cleanup complete")
	return nil
}
