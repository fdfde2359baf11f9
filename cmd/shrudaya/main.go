// Command shrudaya is an interactive terminal client for real-time voice
// calls with a conversational agent.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/TheRealNeelaksh/Shrudaya/internal/config"
	"github.com/TheRealNeelaksh/Shrudaya/pkg/audio"
	"github.com/TheRealNeelaksh/Shrudaya/pkg/call"
	"github.com/TheRealNeelaksh/Shrudaya/pkg/call/capture"
	"github.com/TheRealNeelaksh/Shrudaya/pkg/call/playback"
	"github.com/TheRealNeelaksh/Shrudaya/pkg/call/transport"
	"github.com/TheRealNeelaksh/Shrudaya/pkg/call/turn"
)

// contacts is the static roster. Only available contacts accept calls.
var contacts = map[string]bool{
	"Taara": true,
	"Veer":  false,
}

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	enc, dec, err := buildCodec(cfg)
	if err != nil {
		logger.Error("codec setup failed", "err", err)
		return 1
	}

	ctrl := call.New(call.Config{
		Dial: func(ctx context.Context, contact string) (call.Transport, error) {
			return transport.Dial(ctx, transport.Config{
				URL:         cfg.ServerURL,
				Credential:  cfg.Credential,
				DialTimeout: cfg.DialTimeout,
				Logger:      logger,
			})
		},
		NewCapture: func(state func() turn.State, send func([]byte), onLevel func(float64)) call.Capture {
			return capture.NewPipeline(capture.PipelineConfig{
				Source:  capture.NewMicSource(capture.MicConfig{SampleRate: cfg.SampleRate, Logger: logger}),
				Policy:  turn.Policy{GateOnQueuedAudio: cfg.GateOnQueuedAudio},
				State:   state,
				Encoder: enc,
				Send:    send,
				OnLevel: onLevel,
				Logger:  logger,
			})
		},
		NewPlayback: func() (call.Playback, error) {
			speaker, err := playback.NewSpeaker(playback.SpeakerConfig{
				SampleRate: cfg.SampleRate,
				Decoder:    dec,
				Logger:     logger,
			})
			if err != nil {
				return nil, err
			}
			return playback.New(speaker, logger), nil
		},
		Cooldown: cfg.SpeechCooldown,
		Logger:   logger,
	})

	ui := newUI(os.Stdout)
	go ui.renderEvents(ctrl.Events())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		ctrl.EndCall()
		os.Exit(0)
	}()

	fmt.Println("shrudaya — voice calls from your terminal")
	fmt.Println(`type "/help" for commands`)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			ctrl.EndCall()
			return 0
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if quit := dispatch(ctrl, ui, line); quit {
			ctrl.EndCall()
			return 0
		}
	}
}

func dispatch(ctrl *call.Controller, ui *ui, line string) (quit bool) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/help":
		fmt.Println("  /contacts         list contacts")
		fmt.Println("  /call <name>      start a call")
		fmt.Println("  /end              hang up")
		fmt.Println("  /mute             toggle the microphone")
		fmt.Println("  /say <text>       send a text message on the call")
		fmt.Println("  /quit             exit")
	case "/contacts":
		names := make([]string, 0, len(contacts))
		for name := range contacts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			status := "available"
			if !contacts[name] {
				status = "not available"
			}
			fmt.Printf("  %-8s %s\n", name, status)
		}
	case "/call":
		if arg == "" {
			fmt.Println("usage: /call <name>")
			return false
		}
		available, known := contacts[arg]
		if !known {
			fmt.Printf("no contact named %q\n", arg)
			return false
		}
		if !available {
			fmt.Printf("%s is not available right now\n", arg)
			return false
		}
		if err := ctrl.Start(context.Background(), arg); err != nil {
			fmt.Println("call failed:", err)
		}
	case "/end":
		ctrl.EndCall()
	case "/mute":
		ctrl.ToggleMute()
	case "/say":
		if arg == "" {
			fmt.Println("usage: /say <text>")
			return false
		}
		ctrl.SendText(arg)
		ui.printf("you: %s", arg)
	case "/quit":
		return true
	default:
		fmt.Printf("unknown command %q\n", cmd)
	}
	return false
}

func buildCodec(cfg config.Config) (audio.Encoder, audio.Decoder, error) {
	switch cfg.Codec {
	case config.CodecOpus:
		enc, err := audio.NewOpusEncoder(cfg.SampleRate)
		if err != nil {
			return nil, nil, err
		}
		dec, err := audio.NewOpusDecoder(cfg.SampleRate)
		if err != nil {
			return nil, nil, err
		}
		return enc, dec, nil
	default:
		return audio.PCMCodec{}, audio.PCMCodec{}, nil
	}
}
