package web

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/websocket/v2"

	ctrlws "github.com/gofiber/contrib/websocket"

	"github.com/teslashibe/go-kinect/pkg/hub"
	"github.com/teslashibe/go-kinect/pkg/kinect"
)

// command is a parsed control line.
type command struct {
	name    string
	index   int
	degrees float64
	unique  bool
}

// parseCommand parses "open [n]", "close", "tilt <deg>", "unique on|off"
// and "status".
func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, fmt.Errorf("%w: empty", ErrUnknownCommand)
	}
	cmd := command{name: strings.ToLower(fields[0])}
	args := fields[1:]

	switch cmd.name {
	case "open":
		if len(args) > 1 {
			return cmd, fmt.Errorf("%w: open takes at most one index", ErrBadArgument)
		}
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return cmd, fmt.Errorf("%w: index %q", ErrBadArgument, args[0])
			}
			cmd.index = n
		}
	case "tilt":
		if len(args) != 1 {
			return cmd, fmt.Errorf("%w: tilt takes one angle", ErrBadArgument)
		}
		d, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return cmd, fmt.Errorf("%w: angle %q", ErrBadArgument, args[0])
		}
		cmd.degrees = d
	case "unique":
		if len(args) != 1 {
			return cmd, fmt.Errorf("%w: unique takes on or off", ErrBadArgument)
		}
		switch strings.ToLower(args[0]) {
		case "on", "1", "true":
			cmd.unique = true
		case "off", "0", "false":
		default:
			return cmd, fmt.Errorf("%w: unique %q", ErrBadArgument, args[0])
		}
	case "close", "status":
		if len(args) != 0 {
			return cmd, fmt.Errorf("%w: %s takes no arguments", ErrBadArgument, cmd.name)
		}
	default:
		return cmd, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.name)
	}
	return cmd, nil
}

// ControlReply answers one control command.
type ControlReply struct {
	Command string         `json:"command"`
	OK      bool           `json:"ok"`
	Code    int            `json:"code,omitempty"`
	Error   string         `json:"error,omitempty"`
	Status  *kinect.Status `json:"status,omitempty"`
}

// execute runs cmd against sess.
func execute(ctx context.Context, sess *kinect.Session, cmd command) error {
	switch cmd.name {
	case "open":
		return sess.Open(ctx, cmd.index)
	case "close":
		return sess.Close()
	case "tilt":
		_, err := sess.SetTilt(cmd.degrees)
		return err
	case "unique":
		sess.SetUnique(cmd.unique)
	}
	return nil
}

// handleFramesWS streams JPEG frames of one session.
func (s *Server) handleFramesWS(c *websocket.Conn) {
	client, ok := hub.NewClient(s.frames, c, c.Params("id"))
	if !ok {
		c.Close()
		return
	}
	client.Run()
}

// handleControlWS executes one text command per message and replies with
// a ControlReply.
func (s *Server) handleControlWS(c *ctrlws.Conn) {
	id := c.Params("id")
	log := s.log.With("session", id, "remote", c.RemoteAddr().String())
	log.Info("control connected")
	defer log.Info("control disconnected")

	for {
		mt, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		if mt != ctrlws.TextMessage {
			continue
		}

		reply := s.control(id, string(msg))
		if !reply.OK {
			log.Warn("control command failed", "command", reply.Command, "error", reply.Error)
		}
		if err := c.WriteJSON(reply); err != nil {
			return
		}
	}
}

func (s *Server) control(id, line string) ControlReply {
	cmd, err := parseCommand(line)
	reply := ControlReply{Command: cmd.name}
	if err == nil {
		var sess *kinect.Session
		if sess, err = s.reg.Session(id); err == nil {
			if err = execute(context.Background(), sess, cmd); err == nil {
				st := sess.Status()
				reply.Status = &st
			}
		}
	}
	if err != nil {
		reply.Code = statusFor(err)
		reply.Error = err.Error()
		return reply
	}
	reply.OK = true
	return reply
}
