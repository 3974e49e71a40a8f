package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"cleanxpert/internal/domain"
)

const usage = "usage: cleanxpertctl [-addr URL] [-token TOKEN] <start|stop|status|log|schedule HH:MM|unschedule>"

type client struct {
	base  string
	token string
	http  *http.Client
	out   io.Writer
}

func main() {
	addr := flag.String("addr", envOr("CLEANXPERT_ADDR", "http://127.0.0.1:8080"), "daemon base URL")
	token := flag.String("token", os.Getenv("CLEANXPERT_TOKEN"), "auth token for command routes")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	c := &client{
		base:  strings.TrimRight(*addr, "/"),
		token: *token,
		http:  &http.Client{Timeout: 10 * time.Second},
		out:   os.Stdout,
	}

	var err error
	switch args[0] {
	case "start", "stop":
		err = c.call(http.MethodPost, "/"+args[0], nil)
	case "status":
		err = c.call(http.MethodGet, "/status", nil)
	case "log":
		err = c.call(http.MethodGet, "/log", nil)
	case "schedule":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: cleanxpertctl schedule HH:MM")
			os.Exit(1)
		}
		err = c.schedule(args[1])
	case "unschedule":
		err = c.call(http.MethodDelete, "/schedule", nil)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (c *client) schedule(at string) error {
	entry, err := domain.ParseScheduleEntry(at)
	if err != nil {
		return err
	}
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	return c.call(http.MethodPost, "/schedule", body)
}

func (c *client) call(method, path string, body []byte) error {
	req, err := http.NewRequest(method, c.base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("X-Auth-Token", c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connect to daemon: %w (is `cleanxpertd` running?)", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	_, err = c.out.Write(data)
	return err
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
