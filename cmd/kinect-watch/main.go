// kinect-watch: streams a session's frames from kinectd and saves them as JPEGs
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-kinect/internal/config"
	"github.com/teslashibe/go-kinect/internal/httpc"
	"github.com/teslashibe/go-kinect/internal/log"
	"github.com/teslashibe/go-kinect/pkg/kinect"
	"github.com/teslashibe/go-kinect/pkg/web"
)

var (
	sessionID = flag.String("session", "", "Session to watch (empty creates and opens one)")
	index     = flag.Int("index", 0, "Device index when opening a new session")
	outDir    = flag.String("out", "frames", "Output directory")
	every     = flag.Int("every", 1, "Save every n-th frame")
	count     = flag.Int("count", 0, "Stop after this many saved frames (0 = forever)")
	readWait  = flag.Duration("timeout", 10*time.Second, "Give up when no frame arrives for this long")
)

func main() {
	flag.Parse()
	log.Init(config.LogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Error("watch failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if *every < 1 {
		return fmt.Errorf("-every must be at least 1")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	id := *sessionID
	if id == "" {
		var err error
		if id, err = openSession(ctx); err != nil {
			return err
		}
		defer func() {
			url := config.ServerURL() + "/api/sessions/" + id
			if err := httpc.DoJSON(context.Background(), nil, http.MethodDelete, url, nil, nil); err != nil {
				log.Warn("destroy session failed", "session", id, "error", err)
			}
		}()
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	url := config.WebsocketURL() + "/ws/frames/" + id
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer ws.Close()

	go func() {
		<-ctx.Done()
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		ws.Close()
	}()

	fmt.Printf("👀 Watching session %s → %s\n", id, *outDir)

	var received, saved int
	start := time.Now()
	for *count == 0 || saved < *count {
		ws.SetReadDeadline(time.Now().Add(*readWait))
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return err
		}
		if mt != websocket.BinaryMessage {
			continue
		}

		received++
		if received%*every != 0 {
			continue
		}
		path := filepath.Join(*outDir, fmt.Sprintf("frame-%06d.jpg", received))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		saved++
		log.Debug("frame saved", "path", path, "bytes", len(data))
	}

	elapsed := time.Since(start)
	fmt.Printf("✅ %d frames received, %d saved in %s (%.1f fps)\n",
		received, saved, elapsed.Round(time.Millisecond), float64(received)/elapsed.Seconds())
	return nil
}

func openSession(ctx context.Context) (string, error) {
	base := config.ServerURL() + "/api/sessions"

	var st kinect.Status
	if err := httpc.DoJSON(ctx, nil, http.MethodPost, base, nil, &st); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	if err := httpc.DoJSON(ctx, nil, http.MethodPost, base+"/"+st.ID+"/open", web.OpenRequest{Index: *index}, &st); err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	log.Info("session opened", "session", st.ID, "index", st.Index)
	return st.ID, nil
}
