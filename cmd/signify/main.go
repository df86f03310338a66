package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ayusman/signify/internal/app"
	"github.com/ayusman/signify/internal/capture"
	"github.com/ayusman/signify/internal/config"
	"github.com/ayusman/signify/internal/gesture"
	"github.com/ayusman/signify/internal/glove"
	"github.com/ayusman/signify/internal/log"
	"github.com/ayusman/signify/internal/mqtt"
	"github.com/ayusman/signify/internal/server"
	"github.com/ayusman/signify/internal/speech"
	"github.com/ayusman/signify/internal/store"
	"github.com/ayusman/signify/internal/tray"
)

func main() {
	configPath := flag.String("config", "signify.conf", "path to the KEY=VALUE configuration file")
	debug := flag.Bool("debug", false, "enable debug logging")
	seed := flag.Bool("seed", false, "store the starter vocabulary if the gesture store is empty")
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "signify: %v\n", err)
		os.Exit(1)
	}

	if err := run(*configPath, *seed); err != nil {
		log.Fatalf("Signify stopped: %v", err)
	}
	log.Sync()
}

func run(configPath string, seed bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log.Infow("Configuration loaded", "path", configPath, "left", cfg.SerialPortLeft, "right", cfg.SerialPortRight)

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open gesture store: %w", err)
	}
	defer st.Close()

	if seed {
		n, err := st.Seed()
		if err != nil {
			return fmt.Errorf("seed gesture store: %w", err)
		}
		if n > 0 {
			log.Infow("Seeded gesture store", "gestures", n)
		}
	}

	announcer := newAnnouncer(cfg)
	defer announcer.Close()

	application := app.New(app.Config{
		Store: st,
		Left: capture.NewSerialPort(capture.SerialOptions{
			Device:      cfg.SerialPortLeft,
			BaudRate:    cfg.SerialBaudRate,
			ReadTimeout: cfg.ReadTimeout(),
		}),
		Right: capture.NewSerialPort(capture.SerialOptions{
			Device:      cfg.SerialPortRight,
			BaudRate:    cfg.SerialBaudRate,
			ReadTimeout: cfg.ReadTimeout(),
		}),
		QueueSize:            cfg.QueueSize,
		SettleDelay:          cfg.SettleDelay(),
		ResetDelay:           cfg.ResetDelay(),
		CalibrationThreshold: cfg.CalibrationThreshold,
		CalibrationResample:  cfg.ResampleInterval(),
		Bounds:               gestureBounds(cfg),
		Window:               cfg.DynamicWindow,
		Cooldown:             cfg.CooldownInterval(),
		Dominant:             dominantSide(cfg.DominantHand),
		Announcer:            announcer,
	})

	n, err := application.LoadGestures()
	if err != nil {
		return fmt.Errorf("load gestures: %w", err)
	}
	if n == 0 {
		log.Warn("Gesture store is empty, nothing will be recognized (run with -seed to add the starter vocabulary)")
	}

	if cfg.MQTTBroker != "" {
		pub, err := mqtt.NewPublisher(mqtt.Config{
			Broker:      cfg.MQTTBroker,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
		})
		if err != nil {
			return err
		}
		defer pub.Close()
		application.AddSink(pub)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return application.Run(ctx)
	})

	if cfg.HTTPAddr != "" {
		srv := server.New(server.Config{
			StaticDir: cfg.HTTPStaticDir,
			Store:     st,
			App:       application,
		})
		g.Go(func() error {
			return srv.ListenAndServe(ctx, cfg.HTTPAddr)
		})
	}

	if cfg.TrayEnabled {
		runTray(ctx, stop, application)
	}

	err = g.Wait()
	switch {
	case errors.Is(err, capture.ErrPortOpen):
		return fmt.Errorf("%w (check the SERIAL_PORT_* settings and that the gloves are plugged in)", err)
	case errors.Is(err, capture.ErrPortLost):
		return fmt.Errorf("%w (check the glove cables, then restart)", err)
	}
	return err
}

// runTray blocks on the tray event loop until ctx is done or the user quits.
func runTray(ctx context.Context, quit context.CancelFunc, application *app.App) {
	t := tray.New()
	t.OnToggle(application.SetEnabled)
	t.OnQuit(quit)
	application.AddSink(t)

	go func() {
		<-ctx.Done()
		t.Quit()
	}()

	t.Run()
}

func newAnnouncer(cfg *config.Config) speech.Announcer {
	fields := strings.Fields(cfg.SpeechCommand)
	if len(fields) == 0 {
		log.Info("No SPEECH_COMMAND configured, announcements are logged only")
		return speech.NewLogAnnouncer()
	}
	return speech.NewCommandAnnouncer(fields[0], fields[1:], cfg.SpeechTimeoutDuration())
}

func gestureBounds(cfg *config.Config) gesture.Bounds {
	return gesture.Bounds{
		StaticSingle: cfg.StaticSingleBound,
		StaticBoth:   cfg.StaticBothBound,
		Dynamic:      cfg.DynamicBound,
	}
}

func dominantSide(hand string) *glove.Side {
	var side glove.Side
	switch hand {
	case "left":
		side = glove.Left
	case "right":
		side = glove.Right
	default:
		return nil
	}
	return &side
}
