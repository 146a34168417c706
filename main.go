// Command captrack streams multi-channel sensor frames from a serial device
// (or a replay file), conditions them through the DSP pipeline and runs the
// selected position tracker, printing pose and stream telemetry.
//
// Exit codes: 0 normal, 1 runtime failure (no device, no port, file open),
// 2 invalid arguments.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/capgrid/captrack/internal/config"
	"github.com/capgrid/captrack/internal/dsp"
	"github.com/capgrid/captrack/internal/engine"
	"github.com/capgrid/captrack/internal/timeutil"
	"github.com/capgrid/captrack/internal/track"
	"github.com/capgrid/captrack/internal/version"
)

var (
	configPath = flag.String("config", "", "JSON run configuration (flags override it)")

	portName = flag.String("port", "", "serial port path (empty: scan and pick --device)")
	baudRate = flag.Int("baud", 115200, "serial baud rate")
	prefix   = flag.String("prefix", "", "device name prefix for scanning")
	device   = flag.Int("device", 0, "index into the scan results")

	replayPath = flag.String("replay", "", "replay chunks from a file instead of a serial port")

	maWin    = flag.Int("ma", 0, "enable moving average with the given window")
	emaAlpha = flag.Float64("ema_alpha", 0.2, "EMA smoothing factor")
	noEMA    = flag.Bool("no_ema", false, "disable the EMA stage")
	notchF0  = flag.Float64("notch", 0, "enable the notch filter at the given frequency (Hz)")
	notchQ   = flag.Float64("q", 30, "notch quality factor")
	fsHz     = flag.Float64("fs", 200, "sampling rate (Hz)")

	biasOn     = flag.Bool("bias", false, "apply stored bias to frames")
	biasFrames = flag.Int("bias_frames", 200, "frames per bias capture")

	modelOn   = flag.Bool("model", false, "evaluate the linear head on each frame")
	modelBias = flag.Float64("model_bias", 0, "linear head bias term")
	weights   = flag.String("weights", "", "single-line weights CSV for the linear head")

	csvPath   = flag.String("csv", "", "record conditioned frames to this CSV file")
	trackerID = flag.String("tracker", "", "tracker id to run (see --list_trackers)")

	listTrackers = flag.Bool("list_trackers", false, "list registered trackers and exit")
	showVersion  = flag.Bool("version", false, "print version and exit")
)

func main() {
	os.Exit(run())
}

// buildConfig merges the optional config file with flag overrides. Flags that
// were set explicitly win over the file.
func buildConfig() (dsp.Config, *config.RunConfig, error) {
	var rc *config.RunConfig
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return dsp.Config{}, nil, err
		}
		rc = loaded
	} else {
		rc = &config.RunConfig{}
	}

	cfg := rc.PipelineConfig()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["ma"] {
		cfg.EnableMA = *maWin >= 1
		if *maWin >= 1 {
			cfg.MAWin = *maWin
		}
	}
	if set["ema_alpha"] {
		cfg.EnableEMA = true
		cfg.EMAAlpha = *emaAlpha
	}
	if *noEMA {
		cfg.EnableEMA = false
	}
	if set["notch"] {
		cfg.EnableNotch = *notchF0 > 0
		if *notchF0 > 0 {
			cfg.NotchF0 = *notchF0
		}
	}
	if set["q"] {
		cfg.NotchQ = *notchQ
	}
	if set["fs"] {
		cfg.FsHz = *fsHz
	}
	if set["bias"] {
		cfg.EnableBias = *biasOn
	}
	if set["model"] {
		cfg.EnableModel = *modelOn
	}
	if set["model_bias"] {
		cfg.ModelBias = *modelBias
	}
	return cfg, rc, nil
}

func run() int {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return 0
	}

	if *listTrackers {
		for _, info := range track.List() {
			fmt.Printf("%s  N=%d M=%d params=%d\n", info.ID, info.Channels, info.Window, len(info.Params))
		}
		return 0
	}

	cfg, rc, err := buildConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	eng := engine.New(timeutil.RealClock{}, cfg)

	selected := *trackerID
	if selected == "" {
		selected = rc.GetTrackerID()
	}
	if selected != "" {
		if err := eng.SelectTracker(selected); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Serial sessions discard bytes up to the first terminator: opens
	// commonly land mid-line. Replay files start at a line boundary.
	eng.StartSession(*replayPath == "")
	defer eng.Disconnect()

	weightsFile := *weights
	if weightsFile == "" {
		weightsFile = rc.GetWeightsPath()
	}
	if weightsFile != "" {
		// A bad weights file is not fatal: the head simply runs unweighted,
		// matching the resource-failure policy of the engine.
		_ = eng.LoadWeights(weightsFile)
	}

	recordPath := *csvPath
	if recordPath == "" {
		recordPath = rc.GetCSVPath()
	}
	if recordPath != "" {
		if err := eng.StartCSV(recordPath); err != nil {
			return 1
		}
		defer eng.StopCSV()
	}

	var wg sync.WaitGroup

	// Event printer: poses and statuses as they come; stream stats and
	// frame counts arrive at the engine's throttled cadence.
	subID, events := eng.Subscribe()
	defer eng.Unsubscribe(subID)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				printEvent(ev)
			}
		}
	}()

	// Keyboard commands: b begins a bias capture, q quits.
	frames := *biasFrames
	if !flagWasSet("bias_frames") && rc.BiasFrames != nil {
		frames = rc.GetBiasFrames()
	}
	go func() {
		r := bufio.NewReader(os.Stdin)
		for {
			c, err := r.ReadByte()
			if err != nil {
				return
			}
			switch c {
			case 'b', 'B':
				eng.BeginBiasCapture(frames)
			case 'q', 'Q':
				stop()
				return
			}
		}
	}()

	var runErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer stop()
		if *replayPath != "" {
			runErr = replayFile(ctx, *replayPath, eng)
			return
		}
		runErr = monitorSerial(ctx, rc, eng)
	}()

	<-ctx.Done()
	eng.Disconnect()
	wg.Wait()

	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		return 1
	}
	return 0
}

func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func printEvent(ev engine.Event) {
	switch e := ev.(type) {
	case engine.PoseEvent:
		state := "active"
		if e.Output.Quiet {
			state = "quiet"
		}
		log.Printf("pose %s x=%.4f y=%.4f z=%.4f conf=%.2f %s",
			e.TrackerID, e.Output.X, e.Output.Y, e.Output.Z, e.Output.Confidence, state)
	case engine.StatsEvent:
		if e.TotalSamples == 0 {
			return
		}
		log.Printf("stream total=%d time=%.3fs 1s=%d dt=%.3fms",
			e.TotalSamples, e.ElapsedSec, e.LastSecondSamples, e.LastDtSec*1e3)
	case engine.CountsEvent:
		log.Printf("frames ok=%d bad=%d", e.OK, e.Bad)
	case engine.BiasEvent:
		switch {
		case e.Capturing:
			log.Print("bias: capturing")
		case e.HasBias:
			log.Print("bias: stored")
		}
	case engine.StatusEvent:
		log.Printf("status: %s", e.Text)
	}
}

// monitorSerial picks a device and pumps its chunks into the engine,
// restarting the scan when the transport drops and the context is still
// live.
func monitorSerial(ctx context.Context, rc *config.RunConfig, eng *engine.Engine) error {
	name := *portName
	if name == "" {
		name = rc.GetPort()
	}
	scanPrefix := *prefix
	if scanPrefix == "" {
		scanPrefix = rc.GetDevicePrefix()
	}
	baud := *baudRate
	if !flagWasSet("baud") && rc.BaudRate != nil {
		baud = rc.GetBaudRate()
	}

	for {
		target := name
		if target == "" {
			ports, err := ScanPorts(scanPrefix)
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				return fmt.Errorf("no serial device matching prefix %q", scanPrefix)
			}
			if *device < 0 || *device >= len(ports) {
				return fmt.Errorf("device index %d out of range (%d found)", *device, len(ports))
			}
			target = ports[*device]
		}

		port, err := OpenSensorPort(target, baud)
		if err != nil {
			return err
		}
		log.Printf("connected to %s", port.Name())

		err = port.Monitor(ctx, eng.PushChunk)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			log.Printf("transport dropped: %v; rescanning", err)
			eng.StartSession(true)
			time.Sleep(time.Second)
			continue
		}
		return nil
	}
}

// replayFile pumps a capture file through the engine in small chunks,
// pacing lightly so smoothing behaves like a live stream.
func replayFile(ctx context.Context, path string, eng *engine.Engine) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, 256)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := f.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			eng.PushChunk(chunk)
			time.Sleep(time.Millisecond)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read replay file: %w", err)
		}
	}
}
