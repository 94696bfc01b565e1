// Command httpstream-fetch issues one HTTP request through the httpstream
// client and prints either the raw body or, with -path, every value a
// JSONPath expression matches as it streams in.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"

	httpstream "github.com/manax-dev/httpstream"
	"github.com/manax-dev/httpstream/auth"
	"github.com/manax-dev/httpstream/config"
	"github.com/manax-dev/httpstream/jsonpath"
	"github.com/manax-dev/httpstream/streaming"
)

func init() {
	// Load proxy/bearer-token credentials from .env if present.
	godotenv.Load()
}

func main() {
	method := flag.String("method", "GET", "HTTP method")
	path := flag.String("path", "", "JSONPath expression to stream-match against the response body")
	timeout := flag.Duration("timeout", 30*time.Second, "overall request timeout")
	bearer := flag.String("bearer", os.Getenv("HTTPSTREAM_BEARER"), "bearer token to attach as Authorization")
	presetPath := flag.String("preset", "", "path to a YAML config.Preset")
	debug := flag.Bool("debug", false, "print raw wire activity to stdout")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: httpstream-fetch [flags] <url>")
		os.Exit(2)
	}
	url := flag.Arg(0)

	opts := []httpstream.Option{httpstream.WithTimeout(*timeout)}
	if *debug {
		opts = append(opts, httpstream.WithDebugger(httpstream.StdOutDebugger))
	}
	if *presetPath != "" {
		preset, err := config.LoadYAML(*presetPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "loading preset:", err)
			os.Exit(1)
		}
		opts = append(opts, httpstream.WithPreset(preset))
	}

	client, err := httpstream.NewClient(opts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "building client:", err)
		os.Exit(1)
	}

	req := httpstream.NewRequest(*method, url)
	if *bearer != "" {
		req = req.WithAuth(auth.Bearer(*bearer))
	}

	ctx := context.Background()

	if *path == "" {
		if err := fetchWhole(ctx, client, req); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	expr, err := jsonpath.Compile(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "compiling JSONPath expression:", err)
		os.Exit(1)
	}
	if err := fetchStreamed(ctx, client, req, expr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func fetchWhole(ctx context.Context, client *httpstream.Client, req *httpstream.Request) error {
	resp, err := client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("fetching: %w", err)
	}
	defer resp.Body.Close()

	_, err = io.Copy(os.Stdout, resp.Body)
	return err
}

func fetchStreamed(ctx context.Context, client *httpstream.Client, req *httpstream.Request, expr *jsonpath.Expression) error {
	seq, err := httpstream.Stream[json.RawMessage](ctx, client, req, expr)
	if err != nil {
		return fmt.Errorf("fetching: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	for match, err := range seq {
		if err != nil {
			return fmt.Errorf("streaming match: %w", err)
		}
		if encErr := enc.Encode(streamLine{Path: match.Path, Value: match.Value}); encErr != nil {
			return encErr
		}
	}
	return nil
}

type streamLine struct {
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value"`
}
