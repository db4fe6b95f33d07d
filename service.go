package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"swarmctl/internal/aggregator"
	"swarmctl/internal/dashboard"
	"swarmctl/internal/display"
	"swarmctl/internal/indicator"
	"swarmctl/internal/notify"
	"swarmctl/internal/packet"
	"swarmctl/internal/render"
	"swarmctl/internal/swarm"
)

// subscribeRetry is the pause before resubscribing to the dashboard channel.
const subscribeRetry = 2 * time.Second

// service wires the controller to its transport, display, LEDs and
// notification sinks.
type service struct {
	cfg    *Config
	logger *zap.Logger

	ctrl       *aggregator.Controller
	listener   *swarm.Listener
	dispatcher *notify.Dispatcher
	hub        *dashboard.Hub
	rdb        *redis.Client
	button     *indicator.Button
	server     *http.Server

	wg sync.WaitGroup
	// closers release resources in reverse order of acquisition.
	closers []func() error
}

func newService(cfg *Config, logger *zap.Logger) (*service, error) {
	s := &service{cfg: cfg, logger: logger}
	if err := s.open(); err != nil {
		if cerr := s.close(); cerr != nil {
			logger.Warn("Failed to release resources", zap.Error(cerr))
		}
		return nil, err
	}
	return s, nil
}

func (s *service) open() error {
	cfg := s.cfg
	logger := s.logger

	disp, err := s.openDisplay()
	if err != nil {
		return err
	}

	reducer, err := render.NewReducer(uint(cfg.Render.MaxData), cfg.Render.Window)
	if err != nil {
		return err
	}

	sinks, err := s.openSinks()
	if err != nil {
		return err
	}
	s.dispatcher = notify.NewDispatcher(cfg.Notify.Queue, logger.Named("notify"), sinks...)

	bc, err := swarm.NewBroadcaster(cfg.Swarm.BroadcastAddr, cfg.Swarm.Port)
	if err != nil {
		return err
	}
	s.closers = append(s.closers, bc.Close)

	opts := aggregator.Options{
		Display:           disp,
		Reducer:           reducer,
		Publisher:         s.dispatcher,
		Broadcaster:       bc,
		IndicatorDuration: cfg.GPIO.IndicatorDuration,
		History:           cfg.Render.History,
		CreditOnReset:     cfg.CreditOnReset,
		Logger:            logger.Named("controller"),
	}
	if cfg.GPIO.Enabled {
		if err := s.openGPIO(&opts); err != nil {
			return err
		}
	}
	ctrl, err := aggregator.NewController(opts)
	if err != nil {
		return err
	}
	s.ctrl = ctrl

	s.listener, err = swarm.Listen(":"+strconv.Itoa(cfg.Swarm.Port), logger.Named("swarm"))
	if err != nil {
		return err
	}
	s.closers = append(s.closers, s.listener.Close)

	if cfg.Dashboard.Enabled {
		s.server = &http.Server{
			Addr:              cfg.Dashboard.ServerPort,
			Handler:           dashboard.NewRouter(s.hub, s.ctrl.Reset),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return nil
}

func (s *service) openDisplay() (display.Driver, error) {
	if s.cfg.Display.Driver == "memory" {
		s.logger.Info("Using in-memory display")
		return display.NewMatrix(), nil
	}

	bus, err := display.OpenSPI(s.cfg.Display.SPIDevice)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, bus.Close)

	d, err := display.NewMAX7219(bus, byte(s.cfg.Display.Intensity))
	if err != nil {
		return nil, err
	}
	if err := d.Init(); err != nil {
		return nil, fmt.Errorf("init MAX7219: %w", err)
	}
	s.closers = append(s.closers, d.Shutdown)

	s.logger.Info("MAX7219 display ready",
		zap.String("device", s.cfg.Display.SPIDevice),
		zap.Int("intensity", s.cfg.Display.Intensity),
	)
	return d, nil
}

// openSinks connects the configured notification backends. With Redis the
// dashboard hub is fed from the Redis channel, otherwise it receives events
// in-process.
func (s *service) openSinks() ([]notify.Sink, error) {
	cfg := s.cfg
	var sinks []notify.Sink

	if cfg.Dashboard.Enabled {
		s.hub = dashboard.NewHub(cfg.Notify.Queue, s.logger.Named("dashboard"))
	}

	if cfg.hasBackend(backendRedis) {
		redis.SetLogger(redisLogger{log: s.logger.Named("redis").Sugar()})
		s.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Protocol: 2,
		})
		s.closers = append(s.closers, s.rdb.Close)

		// The client redials on demand; until Redis is back the dispatcher
		// logs and counts failed sends.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.rdb.Ping(ctx).Err(); err != nil {
			s.logger.Warn("Redis unreachable, publishing anyway",
				zap.String("addr", cfg.Redis.Addr),
				zap.Error(err),
			)
		}
		sinks = append(sinks, notify.NewRedisSink(s.rdb, cfg.Redis.Channel))
		s.logger.Info("Publishing to redis",
			zap.String("addr", cfg.Redis.Addr),
			zap.String("channel", cfg.Redis.Channel),
		)
	} else if s.hub != nil && cfg.hasBackend(backendLocal) {
		sinks = append(sinks, s.hub)
	}

	if cfg.hasBackend(backendMQTT) {
		sink, client, err := notify.DialMQTT(cfg.MQTT, s.logger.Named("mqtt"))
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() error {
			client.Disconnect(250)
			return nil
		})
		sinks = append(sinks, sink)
		s.logger.Info("Publishing to MQTT",
			zap.String("broker", cfg.MQTT.Broker),
			zap.String("topic", cfg.MQTT.Topic),
		)
	}
	return sinks, nil
}

func (s *service) openGPIO(opts *aggregator.Options) error {
	g := s.cfg.GPIO
	log := s.logger.Named("gpio")

	leds := make([]indicator.LED, 0, len(g.LEDPins))
	for _, pin := range g.LEDPins {
		led, err := indicator.OpenLED(g.Chip, pin)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, led.Close)
		leds = append(leds, led)
	}
	blinker := indicator.NewBlinker(leds, g.Blink, log)
	s.closers = append(s.closers, func() error {
		log.Debug("LED assignments", zap.Any("slots", blinker.Pool().Assignments()))
		blinker.Stop()
		return nil
	})
	opts.Identifier = blinker

	resetLED, err := indicator.OpenLED(g.Chip, g.ResetLEDPin)
	if err != nil {
		return err
	}
	s.closers = append(s.closers, resetLED.Close)
	pulser := indicator.NewPulser(resetLED, "reset", log)
	s.closers = append(s.closers, func() error {
		pulser.Stop()
		return nil
	})
	opts.Indicator = pulser

	if s.button, err = indicator.OpenButton(g.Chip, g.ButtonPin, g.Debounce); err != nil {
		return err
	}
	s.closers = append(s.closers, s.button.Close)

	log.Info("GPIO ready",
		zap.String("chip", g.Chip),
		zap.Ints("led_pins", g.LEDPins),
		zap.Int("reset_led_pin", g.ResetLEDPin),
		zap.Int("button_pin", g.ButtonPin),
	)
	return nil
}

// Start runs the background loops until ctx is done.
func (s *service) Start(ctx context.Context) {
	s.goRun(func() { s.dispatcher.Run(ctx) })

	if s.hub != nil {
		s.goRun(func() { s.hub.Run(ctx) })
		if s.rdb != nil {
			s.goRun(func() { s.subscribe(ctx) })
		}
	}

	if s.server != nil {
		s.goRun(func() {
			s.logger.Info("Starting dashboard server", zap.String("addr", s.server.Addr))
			if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("HTTP server error", zap.Error(err))
			}
		})
	}

	if s.button != nil {
		s.goRun(func() { s.watchButton(ctx) })
	}

	// A fresh start is a new session for every dashboard.
	s.ctrl.Announce()

	s.goRun(func() {
		if err := s.listener.Serve(ctx, s.handle); err != nil {
			s.logger.Error("Swarm listener stopped", zap.Error(err))
		}
	})
}

// subscribe feeds the hub from Redis, resubscribing while Redis is down.
func (s *service) subscribe(ctx context.Context) {
	for {
		err := dashboard.Subscribe(ctx, s.rdb, s.cfg.Redis.Channel, s.hub)
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("Dashboard subscriber stopped, retrying",
			zap.Duration("retry_in", subscribeRetry),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(subscribeRetry):
		}
	}
}

func (s *service) handle(source string, payload []byte) {
	err := s.ctrl.HandleDatagram(source, payload)
	switch {
	case err == nil:
	case errors.Is(err, packet.ErrMalformed):
		s.logger.Debug("Ignoring datagram",
			zap.String("source", source),
			zap.Int("len", len(payload)),
			zap.Error(err),
		)
	default:
		s.logger.Error("Failed to handle report", zap.String("source", source), zap.Error(err))
	}
}

func (s *service) watchButton(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case at := <-s.button.Presses():
			s.logger.Info("Reset button pressed", zap.Time("at", at))
			// The broadcast error is already logged by the controller.
			_ = s.ctrl.Reset()
		}
	}
}

func (s *service) goRun(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// Stop waits for the loops started by Start, which must have been
// cancelled, and releases every resource.
func (s *service) Stop() error {
	var errs []error
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
		}
		cancel()
	}
	s.wg.Wait()

	if err := s.ctrl.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	s.logger.Info("Notification totals",
		zap.Uint64("dropped", s.dispatcher.Dropped()),
		zap.Uint64("failed", s.dispatcher.Failed()),
	)
	errs = append(errs, s.close())
	return errors.Join(errs...)
}

func (s *service) close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
