package telemetry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/bizsim/agegate/internal/util/logger"
)

// KafkaConfig configures the audit shipper.
type KafkaConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Brokers       []string      `yaml:"brokers"`
	Topic         string        `yaml:"topic"`
	BatchSize     int           `yaml:"batch_size"`
	FlushEvery    time.Duration `yaml:"flush_every"`
	QueueCapacity int           `yaml:"queue_capacity"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	TLS           bool          `yaml:"tls"`
}

// KafkaShipper buffers audit events on a channel and writes them to one
// topic from a background loop. The check path never blocks: a full queue
// drops the event.
type KafkaShipper struct {
	cfg    KafkaConfig
	writer *kafka.Writer
	ch     chan CheckAuditEvent
	stop   chan struct{}
}

func NewKafkaShipper(cfgIn KafkaConfig) (*KafkaShipper, error) {
	cfg := cfgIn
	if !cfg.Enabled {
		return &KafkaShipper{cfg: cfg, ch: make(chan CheckAuditEvent), stop: make(chan struct{})}, nil
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: no topic configured")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = 2 * time.Second
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = cfg.BatchSize * 4
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	tr := &kafka.Transport{DialTimeout: cfg.DialTimeout}
	if cfg.TLS {
		tr.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Transport:    tr,
		Async:        true,
		BatchTimeout: cfg.FlushEvery,
		BatchSize:    cfg.BatchSize,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &KafkaShipper{
		cfg:    cfg,
		writer: writer,
		ch:     make(chan CheckAuditEvent, cfg.QueueCapacity),
		stop:   make(chan struct{}),
	}, nil
}

func (s *KafkaShipper) Start() {
	if !s.cfg.Enabled {
		return
	}
	go s.loop()
}

func (s *KafkaShipper) Stop(ctx context.Context) {
	if !s.cfg.Enabled {
		return
	}
	close(s.stop)
	drain := time.After(500 * time.Millisecond)
	for {
		select {
		case ev := <-s.ch:
			s.dispatch(ev)
		case <-drain:
			_ = s.writer.Close()
			return
		case <-ctx.Done():
			_ = s.writer.Close()
			return
		}
	}
}

// PublishCheck enqueues without blocking; drops when the queue is full.
func (s *KafkaShipper) PublishCheck(ev CheckAuditEvent) {
	if !s.cfg.Enabled {
		return
	}
	select {
	case s.ch <- ev:
	default:
		logger.Warn("kafka shipper queue full, dropping audit event")
	}
}

func (s *KafkaShipper) loop() {
	for {
		select {
		case ev := <-s.ch:
			s.dispatch(ev)
		case <-s.stop:
			return
		}
	}
}

func (s *KafkaShipper) dispatch(ev CheckAuditEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Error("kafka shipper: marshal audit event: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	defer cancel()
	if err := s.writer.WriteMessages(ctx, kafka.Message{Value: payload}); err != nil {
		logger.Warn("kafka shipper: write failed: %v", err)
	}
}
