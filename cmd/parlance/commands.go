package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	parlance "github.com/parlance-ai/client-go"
)

const version = "0.1.0"

// ClientInterface is the subset of *parlance.Client used by the commands.
type ClientInterface interface {
	BaseURL() string
	CheckAuth(ctx context.Context) error
	Do(ctx context.Context, method, path string, body, result any) error
	Interact(ctx context.Context, conversationID string, req parlance.InteractionRequest) (*parlance.Stream[parlance.InteractionEvent], error)
	InteractAudio(ctx context.Context, conversationID string, audio []byte, contentType string) (*parlance.Stream[parlance.InteractionEvent], error)
	Close() error
}

// clientOptions are the global flags that shape the client.
type clientOptions struct {
	configPath string
	verbose    bool
	stderr     io.Writer
}

// clientFactory creates the API client. Swapped in tests.
var clientFactory = defaultClientFactory

func defaultClientFactory(opts clientOptions) (ClientInterface, error) {
	var clientOpts []parlance.Option
	if opts.verbose {
		logger := zerolog.New(zerolog.ConsoleWriter{Out: opts.stderr, TimeFormat: time.Kitchen}).
			Level(zerolog.DebugLevel).With().Timestamp().Logger()
		clientOpts = append(clientOpts, parlance.WithLogger(logger))
	}
	clientOpts = append(clientOpts, parlance.WithUserAgent("parlance-cli/"+version))

	if opts.configPath != "" {
		return parlance.NewFromFile(opts.configPath, clientOpts...)
	}
	return parlance.NewFromEnvironment(clientOpts...)
}

type palette struct {
	ok   *color.Color
	err  *color.Color
	info *color.Color
}

func newPalette(noColor bool) palette {
	p := palette{
		ok:   color.New(color.FgGreen, color.Bold),
		err:  color.New(color.FgRed, color.Bold),
		info: color.New(color.FgCyan),
	}
	if noColor {
		p.ok.DisableColor()
		p.err.DisableColor()
		p.info.DisableColor()
	}
	return p
}

func newRootCmd(cfg *Config) *cobra.Command {
	var (
		opts    clientOptions
		timeout time.Duration
		noColor bool
	)

	root := &cobra.Command{
		Use:           "parlance",
		Short:         "Command line client for the Parlance API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(cfg.Stdin)
	root.SetOut(cfg.Stdout)
	root.SetErr(cfg.Stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log retries and token refreshes to stderr")
	flags.DurationVar(&timeout, "timeout", 2*time.Minute, "overall command timeout")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")

	// withClient runs fn with a client and a context bounded by --timeout.
	withClient := func(cmd *cobra.Command, fn func(ctx context.Context, client ClientInterface, p palette) error) error {
		opts.stderr = cmd.ErrOrStderr()
		client, err := clientFactory(opts)
		if err != nil {
			return fmt.Errorf("create client: %w", err)
		}
		defer client.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		return fn(ctx, client, newPalette(noColor))
	}

	root.AddCommand(
		newAuthCmd(withClient),
		newGetCmd(withClient),
		newInteractCmd(withClient),
	)
	return root
}

type clientRunner func(cmd *cobra.Command, fn func(ctx context.Context, client ClientInterface, p palette) error) error

func newAuthCmd(withClient clientRunner) *cobra.Command {
	auth := &cobra.Command{
		Use:   "auth",
		Short: "Credential commands",
	}
	auth.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Exchange the configured credentials for a token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, client ClientInterface, p palette) error {
				return runAuthCheck(ctx, client, cmd.OutOrStdout(), p)
			})
		},
	})
	return auth
}

func runAuthCheck(ctx context.Context, client ClientInterface, out io.Writer, p palette) error {
	if err := client.CheckAuth(ctx); err != nil {
		p.err.Fprint(out, "✗ ")
		fmt.Fprintf(out, "credentials rejected by %s\n", p.info.Sprint(client.BaseURL()))
		return fmt.Errorf("auth check: %w", err)
	}
	p.ok.Fprint(out, "✓ ")
	fmt.Fprintf(out, "credentials accepted by %s\n", p.info.Sprint(client.BaseURL()))
	return nil
}

func newGetCmd(withClient clientRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "get PATH",
		Short: "GET a path relative to the base URL and print the JSON response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, client ClientInterface, _ palette) error {
				return runGet(ctx, client, args[0], cmd.OutOrStdout())
			})
		},
	}
}

func runGet(ctx context.Context, client ClientInterface, path string, out io.Writer) error {
	var raw json.RawMessage
	if err := client.Do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return fmt.Errorf("format response: %w", err)
	}
	pretty.WriteByte('\n')
	_, err := pretty.WriteTo(out)
	return err
}

type interactFlags struct {
	conversation string
	text         string
	audioPath    string
	contentType  string
	locale       string
	jsonOutput   bool
}

func newInteractCmd(withClient clientRunner) *cobra.Command {
	var f interactFlags

	cmd := &cobra.Command{
		Use:   "interact",
		Short: "Send a text or audio turn and stream the response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (f.text == "") == (f.audioPath == "") {
				return errors.New("exactly one of --text or --audio is required")
			}
			return withClient(cmd, func(ctx context.Context, client ClientInterface, _ palette) error {
				return runInteract(ctx, client, f, cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().StringVarP(&f.conversation, "conversation", "c", "", "conversation ID")
	cmd.Flags().StringVarP(&f.text, "text", "t", "", "text turn")
	cmd.Flags().StringVarP(&f.audioPath, "audio", "a", "", "audio file to send")
	cmd.Flags().StringVar(&f.contentType, "content-type", "", "audio content type (detected when empty)")
	cmd.Flags().StringVar(&f.locale, "locale", "", "locale of the text turn")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "print each event as a JSON line")
	cmd.MarkFlagRequired("conversation")

	return cmd
}

func runInteract(ctx context.Context, client ClientInterface, f interactFlags, out io.Writer) error {
	var (
		stream *parlance.Stream[parlance.InteractionEvent]
		err    error
	)
	if f.audioPath != "" {
		audio, readErr := os.ReadFile(f.audioPath)
		if readErr != nil {
			return fmt.Errorf("read audio: %w", readErr)
		}
		stream, err = client.InteractAudio(ctx, f.conversation, audio, f.contentType)
	} else {
		stream, err = client.Interact(ctx, f.conversation, parlance.InteractionRequest{Text: f.text, Locale: f.locale})
	}
	if err != nil {
		return fmt.Errorf("interact: %w", err)
	}
	defer stream.Close()

	enc := json.NewEncoder(out)
	for stream.Next() {
		event := stream.Current()
		if f.jsonOutput {
			if err := enc.Encode(event); err != nil {
				return err
			}
			continue
		}
		fmt.Fprint(out, event.Text)
		if event.Final {
			fmt.Fprintln(out)
		}
	}
	if err := stream.Err(); err != nil {
		fmt.Fprintln(out)
		return fmt.Errorf("interaction stream: %w", err)
	}
	return nil
}
