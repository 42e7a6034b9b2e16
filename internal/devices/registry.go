// Package devices tracks the edge hardware participating in a companion
// session: tablets, speakers, and big-button remotes announce themselves on
// the bus and stay registered as long as their heartbeats keep arriving.
package devices

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/keepsakelabs/keepsake-core/internal/bus"
	"github.com/keepsakelabs/keepsake-core/internal/config"
	"github.com/keepsakelabs/keepsake-core/internal/protocol"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// DeviceInfo is the registry's view of one edge device.
type DeviceInfo struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	Inputs   []string  `json:"inputs,omitempty"`
	LastSeen time.Time `json:"last_seen"`
	Online   bool      `json:"online"`
}

type Registry struct {
	cfg    config.DevicesConfig
	log    *slog.Logger
	bus    *bus.Client
	cancel context.CancelFunc
	subs   []*nats.Subscription

	mu      sync.RWMutex
	devices map[string]*DeviceInfo

	meter       metric.Meter
	onlineGauge metric.Int64ObservableGauge
}

func NewRegistry(ctx context.Context, cfg config.DevicesConfig, busClient *bus.Client, log *slog.Logger) (*Registry, error) {
	ctx, cancel := context.WithCancel(ctx)
	r := &Registry{
		cfg:     cfg,
		log:     log.With(slog.String("component", "device-registry")),
		bus:     busClient,
		devices: make(map[string]*DeviceInfo),
		meter:   otel.Meter("github.com/keepsakelabs/keepsake-core/runtime"),
		cancel:  cancel,
	}

	if err := r.initMetrics(); err != nil {
		r.log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}

	if err := r.subscribe(); err != nil {
		r.cancel()
		return nil, err
	}

	go r.monitorLiveness(ctx)

	return r, nil
}

func (r *Registry) Close() {
	if r.cancel != nil {
		r.cancel()
	}
	for _, sub := range r.subs {
		_ = sub.Drain()
	}
}

func (r *Registry) subscribe() error {
	conn := r.bus.Conn()
	announceSub, err := conn.Subscribe(protocol.SubjectDeviceAnnounce, r.handleAnnounce)
	if err != nil {
		return fmt.Errorf("subscribe announce: %w", err)
	}
	r.subs = append(r.subs, announceSub)

	heartbeatSub, err := conn.Subscribe(protocol.SubjectDeviceHeartbeatPrefix+".*", r.handleHeartbeat)
	if err != nil {
		return fmt.Errorf("subscribe heartbeat: %w", err)
	}
	r.subs = append(r.subs, heartbeatSub)

	return nil
}

func (r *Registry) monitorLiveness(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.expireStale()
		}
	}
}

func (r *Registry) handleAnnounce(msg *nats.Msg) {
	var announcement protocol.DeviceAnnounce
	if err := json.Unmarshal(msg.Data, &announcement); err != nil {
		r.log.Warn("invalid announce message", slog.String("error", err.Error()))
		return
	}
	if announcement.DeviceID == "" {
		return
	}
	if announcement.Timestamp.IsZero() {
		announcement.Timestamp = time.Now().UTC()
	}
	r.update(announcement.DeviceID, announcement.Kind, announcement.Inputs, announcement.Timestamp)
	r.log.Info("device announced",
		slog.String("device", announcement.DeviceID),
		slog.String("kind", announcement.Kind))
}

func (r *Registry) handleHeartbeat(msg *nats.Msg) {
	var hb protocol.DeviceHeartbeat
	if err := json.Unmarshal(msg.Data, &hb); err != nil {
		r.log.Warn("invalid heartbeat message", slog.String("error", err.Error()))
		return
	}
	if hb.DeviceID == "" {
		return
	}
	if hb.Timestamp.IsZero() {
		hb.Timestamp = time.Now().UTC()
	}
	r.update(hb.DeviceID, "", nil, hb.Timestamp)
}

func (r *Registry) update(deviceID, kind string, inputs []string, timestamp time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceID]
	if !ok {
		device = &DeviceInfo{ID: deviceID}
		r.devices[deviceID] = device
	}
	if kind != "" {
		device.Kind = kind
	}
	if len(inputs) > 0 {
		device.Inputs = inputs
	}
	device.LastSeen = timestamp
	device.Online = true
}

func (r *Registry) expireStale() {
	r.mu.Lock()
	defer r.mu.Unlock()

	timeout := time.Duration(r.cfg.HeartbeatTimeout) * time.Millisecond
	now := time.Now()
	for _, device := range r.devices {
		if device.Online && now.Sub(device.LastSeen) > timeout {
			device.Online = false
			r.log.Info("device went offline", slog.String("device", device.ID))
		}
	}
}

// Devices returns a copy of every known device, online or not.
func (r *Registry) Devices() []DeviceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]DeviceInfo, 0, len(r.devices))
	for _, device := range r.devices {
		results = append(results, *device)
	}
	return results
}

func (r *Registry) initMetrics() error {
	if r.meter == nil {
		return nil
	}
	gauge, err := r.meter.Int64ObservableGauge("keepsake.devices.online",
		metric.WithDescription("Edge devices with a live heartbeat"))
	if err != nil {
		return err
	}
	r.onlineGauge = gauge
	_, err = r.meter.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		obs.ObserveInt64(gauge, r.onlineCount())
		return nil
	}, gauge)
	return err
}

func (r *Registry) onlineCount() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var online int64
	for _, device := range r.devices {
		if device.Online {
			online++
		}
	}
	return online
}
