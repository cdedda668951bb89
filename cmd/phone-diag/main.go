// Command phone-diag walks a phone through the touchscreen, audio, motion and
// light probes, serves the kiosk UI over HTTP and publishes results to MQTT.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sweeney/phone-diagnostics/internal/audio"
	"github.com/sweeney/phone-diagnostics/internal/gpio"
	"github.com/sweeney/phone-diagnostics/internal/hardware"
	"github.com/sweeney/phone-diagnostics/internal/logic"
	"github.com/sweeney/phone-diagnostics/internal/mqtt"
	"github.com/sweeney/phone-diagnostics/internal/report"
	"github.com/sweeney/phone-diagnostics/internal/sensor"
	"github.com/sweeney/phone-diagnostics/internal/status"
	"github.com/sweeney/phone-diagnostics/internal/web"
)

type options struct {
	cfg           logic.Config
	debounce      time.Duration
	broker        string
	httpAddr      string
	clipURL       string
	recordPath    string
	gpioChip      string
	buttons       bool
	haptic        bool
	pinHeard      int
	pinNoSound    int
	pinHaptic     int
	brand         string
	model         string
	printHardware bool
}

func main() {
	def := logic.DefaultConfig()
	var o options
	o.cfg = def

	flag.DurationVar(&o.cfg.SampleInterval, "poll", def.SampleInterval, "Sensor polling interval")
	flag.DurationVar(&o.debounce, "debounce", 50*time.Millisecond, "Bench button debounce duration")
	flag.StringVar(&o.broker, "broker", "tcp://localhost:1883", "MQTT broker address")
	flag.StringVar(&o.httpAddr, "http", ":8080", "HTTP kiosk address (empty to disable)")
	flag.StringVar(&o.clipURL, "clip-url", "", "URL of the speaker test clip (WAV or MP3)")
	flag.StringVar(&o.recordPath, "record-path", "", "Where the microphone test writes its recording")
	flag.IntVar(&o.cfg.GridRows, "grid-rows", def.GridRows, "Touch grid rows")
	flag.IntVar(&o.cfg.GridCols, "grid-cols", def.GridCols, "Touch grid columns")
	flag.DurationVar(&o.cfg.MicThreshold, "mic-threshold", def.MicThreshold, "Minimum recording length to pass the microphone test")
	flag.IntVar(&o.cfg.MicAttempts, "mic-attempts", def.MicAttempts, "Recording attempts before the microphone test fails")
	flag.BoolVar(&o.cfg.SpeakerAfterMicFailure, "speaker-after-mic-failure", def.SpeakerAfterMicFailure, "Run the speaker test even when the microphone test fails")
	flag.DurationVar(&o.cfg.StableTarget, "stable-target", def.StableTarget, "How long the device must lie flat")
	flag.DurationVar(&o.cfg.SensorTimeout, "sensor-timeout", def.SensorTimeout, "Give up on a silent sensor after this long (0 to disable)")
	flag.StringVar(&o.gpioChip, "gpio-chip", gpio.DefaultChip, "GPIO character device")
	flag.BoolVar(&o.buttons, "buttons", false, "Read heard/no-sound bench buttons from GPIO")
	flag.BoolVar(&o.haptic, "haptic", false, "Pulse a vibration motor on GPIO for each touched cell")
	flag.IntVar(&o.pinHeard, "pin-heard", gpio.PinHeard, "BCM pin number for the heard button")
	flag.IntVar(&o.pinNoSound, "pin-no-sound", gpio.PinNoSound, "BCM pin number for the no-sound button")
	flag.IntVar(&o.pinHaptic, "pin-haptic", gpio.PinHaptic, "BCM pin number for the vibration motor")
	flag.StringVar(&o.brand, "brand", "", "Override the detected brand")
	flag.StringVar(&o.model, "model", "", "Override the detected model")
	flag.BoolVar(&o.printHardware, "print-hardware", false, "Print detected hardware and exit")

	flag.Parse()

	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(o options) error {
	if err := o.cfg.Validate(); err != nil {
		return err
	}

	prober := hardware.NewProber()
	capture := func() logic.Hardware {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hardware.Override(prober.Capture(ctx), o.brand, o.model)
	}

	// Print hardware mode
	if o.printHardware {
		data, err := json.MarshalIndent(report.Build(capture(), nil).Hardware, "", "  ")
		if err != nil {
			return fmt.Errorf("format hardware: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	// Sensors. A missing sensor is not fatal; its probe resolves UNAVAILABLE.
	orientation, err := sensor.NewOrientationReader()
	if err != nil {
		log.Printf("orientation sensor unavailable: %v", err)
	}
	defer orientation.Close()
	light, err := sensor.NewLightReader()
	if err != nil {
		log.Printf("light sensor unavailable: %v", err)
	}
	defer light.Close()

	dev := loopDevices{orientation: orientation, light: light}
	if o.buttons {
		b, err := gpio.NewRealButtons(o.gpioChip, o.pinHeard, o.pinNoSound)
		if err != nil {
			return fmt.Errorf("init buttons: %w", err)
		}
		defer b.Close()
		dev.buttons = b
	}
	if o.haptic {
		h, err := gpio.NewRealHaptic(o.gpioChip, o.pinHaptic)
		if err != nil {
			return fmt.Errorf("init haptic: %w", err)
		}
		defer h.Close()
		dev.haptic = h
	}

	player := audio.NewClipPlayer(o.clipURL, &http.Client{Timeout: 15 * time.Second})
	seq := logic.NewSequencer(logic.NewSession(), o.cfg, logic.Devices{
		Recorder: audio.NewExecRecorder(o.recordPath),
		Player:   player,
	})

	sessionID := uuid.NewString()

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(o.broker, sessionID)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:          o.cfg.SampleInterval.Milliseconds(),
		DebounceMs:      o.debounce.Milliseconds(),
		SensorTimeoutMs: o.cfg.SensorTimeout.Milliseconds(),
		GridRows:        o.cfg.GridRows,
		GridCols:        o.cfg.GridCols,
		Broker:          o.broker,
		HTTPAddr:        o.httpAddr,
		ClipURL:         o.clipURL,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	cmds := make(chan web.Command)
	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker, cmds)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http kiosk listening on %s", o.httpAddr)
	}

	log.Printf("started: session=%s poll=%v broker=%s", sessionID, o.cfg.SampleInterval, o.broker)

	ticker := time.NewTicker(o.cfg.SampleInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loopParams{
		seq:        seq,
		dev:        dev,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		debounce:   o.debounce,
		capture:    capture,
		firstID:    sessionID,
		newID:      uuid.NewString,
		now:        time.Now,
		tick:       ticker.C,
		sig:        sigCh,
		cmds:       cmds,
	})
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
