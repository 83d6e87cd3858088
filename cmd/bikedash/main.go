// Command bikedash drives the bike dashboard: wheel speed on the OLED panel,
// automatic lights from the ambient light sensor and sleep when parked.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/sweeney/bikedash/internal/adc"
	"github.com/sweeney/bikedash/internal/config"
	"github.com/sweeney/bikedash/internal/dash"
	"github.com/sweeney/bikedash/internal/display"
	"github.com/sweeney/bikedash/internal/gpio"
	"github.com/sweeney/bikedash/internal/logger"
	"github.com/sweeney/bikedash/internal/logic"
	"github.com/sweeney/bikedash/internal/mqtt"
	"github.com/sweeney/bikedash/internal/power"
	"github.com/sweeney/bikedash/internal/status"
	"github.com/sweeney/bikedash/internal/web"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "bikedash: %v\n", err)
		os.Exit(2)
	}

	if cfg.PrintConfig {
		if err := printConfig(os.Stdout, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "bikedash: %v\n", err)
			os.Exit(1)
		}
		return
	}

	log, err := logger.New(cfg.Log.Level, logger.IsService())
	if err != nil {
		fmt.Fprintf(os.Stderr, "bikedash: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

func printConfig(w io.Writer, cfg *config.Config) error {
	out, err := cfg.YAML()
	if err != nil {
		return fmt.Errorf("render config: %w", err)
	}
	_, err = w.Write(out)
	return err
}

// openOutput requests an output line, or returns nil when pin is negative.
func openOutput(chip string, pin int, activeLow bool, name string) (gpio.Output, error) {
	if pin < 0 {
		return nil, nil
	}
	out, err := gpio.NewRealOutput(chip, pin, activeLow, false)
	if err != nil {
		return nil, fmt.Errorf("%s pin %d: %w", name, pin, err)
	}
	return out, nil
}

func run(cfg *config.Config, log zerolog.Logger) error {
	bootID := uuid.NewString()
	log = log.With().Str("boot", bootID).Logger()

	startTime := time.Now()
	clock := logic.Clock(func() time.Duration { return time.Since(startTime) })

	// Outputs
	relayOut, err := openOutput(cfg.GPIO.Chip, cfg.GPIO.Relay, cfg.GPIO.RelayActiveLow, "relay")
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	displayOut, err := openOutput(cfg.GPIO.Chip, cfg.GPIO.DisplayPower, false, "display power")
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	clrOut, err := openOutput(cfg.GPIO.Chip, cfg.GPIO.LatchClear, false, "latch clear")
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	dataOut, err := openOutput(cfg.GPIO.Chip, cfg.GPIO.LatchData, false, "latch data")
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	for _, o := range []gpio.Output{relayOut, displayOut, clrOut, dataOut} {
		if o != nil {
			defer o.Close()
		}
	}
	if displayOut != nil {
		if err := displayOut.Set(true); err != nil {
			return fmt.Errorf("display power on: %w", err)
		}
	}

	// Display
	panel, err := display.OpenFBPanel(cfg.Display.Device)
	if err != nil {
		return fmt.Errorf("init display: %w", err)
	}
	defer panel.Close()
	renderer := display.NewRenderer(panel)
	defer renderer.Blank()

	// MQTT
	var publisher mqtt.Publisher = nopPublisher{}
	var conn mqtt.ConnectionStatus
	if cfg.MQTT.Broker != "" {
		p := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, bootID, log)
		publisher, conn = p, p
	}
	defer publisher.Close()

	tracker := status.NewTracker(bootID, startTime, status.Config{
		WheelRadius:    cfg.Wheel.Radius,
		PulsesPerRev:   cfg.Wheel.PulsesPerRev,
		DebounceMs:     cfg.Sensor.Debounce.Milliseconds(),
		SleepTimeoutMs: cfg.Sleep.Timeout.Milliseconds(),
		TickMs:         cfg.Tick.Milliseconds(),
		HeartbeatMs:    cfg.MQTT.Heartbeat.Milliseconds(),
		Broker:         cfg.MQTT.Broker,
		HTTPAddr:       cfg.HTTP.Addr,
	})
	lc := &lifecycle{
		pub:     publisher,
		conn:    conn,
		tracker: tracker,
		now:     time.Now,
		log:     log,
	}

	// Reed switch
	edge, err := gpio.ParseEdge(cfg.GPIO.Edge)
	if err != nil {
		return err
	}
	counter := logic.NewPulseCounter(cfg.Sensor.Debounce)
	reed := gpio.NewRealEdgeSource(cfg.GPIO.Chip, cfg.GPIO.Reed, edge)
	if err := reed.Start(func(ts time.Duration) { counter.OnEdge(ts) }); err != nil {
		return fmt.Errorf("init reed switch: %w", err)
	}
	defer reed.Close()

	d := dash.New(
		dash.Options{
			Circumference:       logic.Circumference(cfg.Wheel.Radius),
			PulsesPerRev:        cfg.Wheel.PulsesPerRev,
			BrightnessThreshold: cfg.Light.Threshold,
			MotionThreshold:     cfg.Sleep.MotionThreshold,
			InactivityTimeout:   cfg.Sleep.Timeout,
		},
		counter,
		dash.NewADCBrightness(adc.NewIIOReader(cfg.Light.ADCPath), cfg.Light.FullScale),
		dash.NewOutputRelay(relayOut),
		renderer,
		power.NewSuspender(power.Lines{
			LatchClear:   clrOut,
			LatchData:    dataOut,
			DisplayPower: displayOut,
		}, cfg.Power.StatePath, cfg.Sleep.Notice, log),
		lc,
		clock,
		log,
	)

	lc.publish(mqtt.EventStartup, "", true)

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, log)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http status server listening")
	}

	log.Info().
		Float64("radius", cfg.Wheel.Radius).
		Int("ppr", cfg.Wheel.PulsesPerRev).
		Dur("debounce", cfg.Sensor.Debounce).
		Dur("sleep_timeout", cfg.Sleep.Timeout).
		Dur("tick", cfg.Tick).
		Str("broker", cfg.MQTT.Broker).
		Msg("started")

	ticker := time.NewTicker(cfg.Tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(context.Background(), d, lc, clock, cfg.MQTT.Heartbeat, ticker.C, sigCh, log)
}

// runLoop refreshes the dashboard on every tick until a signal arrives.
func runLoop(ctx context.Context, d *dash.Dashboard, lc *lifecycle, clock logic.Clock, heartbeat time.Duration, tick <-chan time.Time, sig <-chan os.Signal, log zerolog.Logger) error {
	lastBeat := clock()

	for {
		select {
		case s := <-sig:
			reason := signalName(s)
			log.Info().Str("signal", reason).Msg("shutting down")
			lc.publish(mqtt.EventShutdown, reason, true)
			return nil

		case <-tick:
			now := clock()
			c, err := d.Tick(ctx, now)
			if err != nil {
				log.Error().Err(err).Msg("tick failed")
			}
			if c.Slept {
				// Heartbeats count from the resume
				lastBeat = clock()
				continue
			}

			if heartbeat > 0 && now-lastBeat >= heartbeat {
				lastBeat = now
				log.Debug().Float64("speed", c.Sample.Speed).Int("brightness", c.Brightness).Msg("heartbeat")
				lc.publish(mqtt.EventHeartbeat, "", false)
			}
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// lifecycle feeds dashboard cycles into the status tracker and announces
// lifecycle events over MQTT.
type lifecycle struct {
	pub     mqtt.Publisher
	conn    mqtt.ConnectionStatus // nil when MQTT is disabled
	tracker *status.Tracker
	now     func() time.Time
	log     zerolog.Logger
}

func (l *lifecycle) Cycled(c dash.Cycle) {
	l.tracker.Update(c.Sample, c.Brightness, c.LightsOn, c.Inactivity)
	l.refreshConnection()
}

func (l *lifecycle) Sleeping(time.Duration) {
	l.tracker.RecordSleep(l.now())
	l.publish(mqtt.EventSleep, "INACTIVITY", false)
}

func (l *lifecycle) Woke(time.Duration) {
	l.tracker.RecordWake(l.now())
	l.publish(mqtt.EventWake, "", false)
}

func (l *lifecycle) refreshConnection() {
	if l.conn != nil {
		l.tracker.SetMQTTConnected(l.conn.IsConnected())
	}
}

func (l *lifecycle) publish(event, reason string, retained bool) {
	l.refreshConnection()
	snap := l.tracker.Snapshot()
	err := l.pub.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		BootID:     snap.BootID,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		l.log.Warn().Err(err).Str("event", event).Msg("failed to publish")
		return
	}
	l.log.Debug().Str("event", event).Msg("published")
}

// nopPublisher stands in when no broker is configured.
type nopPublisher struct{}

func (nopPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (nopPublisher) Close() error                         { return nil }
