// kinectctl: command-line client for kinectd
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/teslashibe/go-kinect/internal/config"
	"github.com/teslashibe/go-kinect/internal/httpc"
	"github.com/teslashibe/go-kinect/pkg/kinect"
	"github.com/teslashibe/go-kinect/pkg/web"
)

var server = flag.String("server", config.ServerURL(), "kinectd base URL")

const usage = `usage: kinectctl [-server URL] <command> [args]

commands:
  status                     host status
  config [key=value ...]     show or update the camera config
  list                       list sessions
  create                     create a session
  open <id> [index]          open a device (index 0 picks the first free one)
  close <id>                 close the session's device
  destroy <id>               destroy a session
  tilt <id> <degrees>        set the tilt angle
  unique <id> on|off         only emit new frames
  snap <id> <file.jpg>       save the latest rendered frame
`

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(context.Background(), flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string) error {
	base := strings.TrimRight(*server, "/") + "/api"

	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s: missing arguments\n\n%s", cmd, usage)
		}
		return nil
	}
	session := func(suffix string) string {
		return base + "/sessions/" + args[0] + suffix
	}

	switch cmd {
	case "status":
		var st web.StatusResponse
		if err := httpc.DoJSON(ctx, nil, http.MethodGet, base+"/status", nil, &st); err != nil {
			return err
		}
		return printJSON(st)

	case "config":
		if len(args) == 0 {
			var out map[string]any
			if err := httpc.DoJSON(ctx, nil, http.MethodGet, base+"/config", nil, &out); err != nil {
				return err
			}
			return printJSON(out)
		}
		params, err := parseParams(args)
		if err != nil {
			return err
		}
		var out map[string]any
		if err := httpc.DoJSON(ctx, nil, http.MethodPut, base+"/config", params, &out); err != nil {
			return err
		}
		return printJSON(out)

	case "list":
		var out []kinect.Status
		if err := httpc.DoJSON(ctx, nil, http.MethodGet, base+"/sessions", nil, &out); err != nil {
			return err
		}
		for _, s := range out {
			state := "closed"
			if s.Open {
				state = fmt.Sprintf("open #%d", s.Index)
			}
			fmt.Printf("%s  %-10s %s  frames=%d\n", s.ID, state, s.Mode, s.Frames)
		}
		return nil

	case "create":
		var st kinect.Status
		if err := httpc.DoJSON(ctx, nil, http.MethodPost, base+"/sessions", nil, &st); err != nil {
			return err
		}
		fmt.Println(st.ID)
		return nil

	case "open":
		if err := need(1); err != nil {
			return err
		}
		req := web.OpenRequest{}
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[1])
			}
			req.Index = n
		}
		var st kinect.Status
		if err := httpc.DoJSON(ctx, nil, http.MethodPost, session("/open"), req, &st); err != nil {
			return err
		}
		fmt.Printf("✅ opened device %d (%s)\n", st.Index, st.Mode)
		return nil

	case "close":
		if err := need(1); err != nil {
			return err
		}
		return httpc.DoJSON(ctx, nil, http.MethodPost, session("/close"), nil, nil)

	case "destroy":
		if err := need(1); err != nil {
			return err
		}
		return httpc.DoJSON(ctx, nil, http.MethodDelete, session(""), nil, nil)

	case "tilt":
		if err := need(2); err != nil {
			return err
		}
		d, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid angle %q", args[1])
		}
		var out map[string]float64
		if err := httpc.DoJSON(ctx, nil, http.MethodPut, session("/tilt"), web.TiltRequest{Degrees: d}, &out); err != nil {
			return err
		}
		fmt.Printf("tilt %.1f°\n", out["tilt"])
		return nil

	case "unique":
		if err := need(2); err != nil {
			return err
		}
		on := args[1] == "on" || args[1] == "true" || args[1] == "1"
		return httpc.DoJSON(ctx, nil, http.MethodPut, session("/unique"), web.UniqueRequest{Unique: on}, nil)

	case "snap":
		if err := need(2); err != nil {
			return err
		}
		return snap(ctx, session("/frame.jpg"), args[1])
	}
	return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
}

func snap(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := httpc.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &httpc.StatusError{StatusCode: resp.StatusCode}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Printf("📸 saved %s (%d bytes, frame %s)\n", path, n, resp.Header.Get("X-Frame-Seq"))
	return nil
}

// parseParams turns key=value pairs into a config update. Numbers and
// booleans are decoded as JSON, everything else is a string.
func parseParams(args []string) (map[string]any, error) {
	params := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid setting %q, want key=value", arg)
		}
		var v any
		if err := json.Unmarshal([]byte(value), &v); err != nil {
			v = value
		}
		params[key] = v
	}
	return params, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
