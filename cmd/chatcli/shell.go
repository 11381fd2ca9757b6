package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"chat-relay/internal/chatclient"
	"chat-relay/internal/domain"
)

// engine 是 shell 用到的 Engine 方法
type engine interface {
	LoadRooms(ctx context.Context) (chatclient.Outcome, error)
	SelectRoom(roomID string) bool
	SendMessage(ctx context.Context, session chatclient.Session, text string) (domain.Message, error)
	CreateRoom(ctx context.Context, session chatclient.Session, name string) (domain.Room, error)
	RenameRoom(ctx context.Context, session chatclient.Session, roomID, name string) (domain.Room, error)
	DeleteRoom(ctx context.Context, session chatclient.Session, roomID string) error
	FilterRooms(query string) []domain.Room
	ReceiveRemote(roomID string, msg domain.Message) bool
	CurrentRoom() (domain.Room, bool)
}

// relay 是 shell 用到的连接管理方法
type relay interface {
	Connect(ctx context.Context, roomID string) error
	Disconnect() error
	Status() chatclient.ConnectionStatus
}

type shell struct {
	engine  engine
	relay   relay
	session chatclient.Session

	mu  sync.Mutex
	out io.Writer
}

func newShell(e engine, r relay, session chatclient.Session, out io.Writer) *shell {
	return &shell{engine: e, relay: r, session: session, out: out}
}

func (s *shell) printf(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *shell) prompt() {
	name := "-"
	if room, ok := s.engine.CurrentRoom(); ok {
		name = room.Name
	}
	s.printf("[%s|%s] > ", name, s.relay.Status())
}

func (s *shell) printHelp() {
	s.printf(`commands:
  /rooms                 reload rooms
  /filter <query>        filter rooms by name
  /select <roomId>       open a room and connect to its relay
  /new <name>            create a room
  /rename <roomId> <name>
  /delete <roomId>
  /leave                 disconnect from the relay
  /quit
anything else is sent to the current room
`)
}

// onRemote 合并中继推送的消息，并在当前房间时打印
func (s *shell) onRemote(roomID string, msg domain.Message) {
	if !s.engine.ReceiveRemote(roomID, msg) {
		return
	}
	if room, ok := s.engine.CurrentRoom(); ok && room.ID == roomID {
		s.printf("\n%s\n", formatMessage(msg))
	}
}

// parseCommand 把输入拆成命令和参数；普通文本返回空命令
func parseCommand(line string) (cmd string, args []string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return "", nil
	}
	fields := strings.Fields(line)
	return strings.ToLower(fields[0]), fields[1:]
}

// handle 执行一行输入，返回 true 表示退出
func (s *shell) handle(ctx context.Context, line string) bool {
	cmd, args := parseCommand(line)
	switch cmd {
	case "":
		if strings.TrimSpace(line) == "" {
			return false
		}
		if _, err := s.engine.SendMessage(ctx, s.session, line); err != nil {
			s.printf("send failed (%s): %v\n", chatclient.KindOf(err), err)
		}
	case "/quit", "/exit":
		return true
	case "/help":
		s.printHelp()
	case "/rooms":
		outcome, err := s.engine.LoadRooms(ctx)
		if err != nil {
			s.printf("load failed: %v\n", err)
			return false
		}
		if outcome == chatclient.Degraded {
			s.printf("(backend unavailable, showing local rooms)\n")
		}
		s.printRooms(s.engine.FilterRooms(""))
	case "/filter":
		s.printRooms(s.engine.FilterRooms(strings.Join(args, " ")))
	case "/select":
		if len(args) != 1 {
			s.printf("usage: /select <roomId>\n")
			return false
		}
		if !s.engine.SelectRoom(args[0]) {
			s.printf("no room %q\n", args[0])
			return false
		}
		if err := s.relay.Connect(ctx, args[0]); err != nil {
			s.printf("relay unavailable: %v\n", err)
		}
		if room, ok := s.engine.CurrentRoom(); ok {
			for _, m := range room.Messages {
				s.printf("%s\n", formatMessage(m))
			}
		}
	case "/new":
		room, err := s.engine.CreateRoom(ctx, s.session, strings.Join(args, " "))
		if err != nil {
			s.printf("create failed (%s): %v\n", chatclient.KindOf(err), err)
			return false
		}
		s.printf("created %s (%s)\n", room.Name, room.ID)
	case "/rename":
		if len(args) < 2 {
			s.printf("usage: /rename <roomId> <name>\n")
			return false
		}
		room, err := s.engine.RenameRoom(ctx, s.session, args[0], strings.Join(args[1:], " "))
		if err != nil {
			s.printf("rename failed (%s): %v\n", chatclient.KindOf(err), err)
			return false
		}
		s.printf("renamed to %s\n", room.Name)
	case "/delete":
		if len(args) != 1 {
			s.printf("usage: /delete <roomId>\n")
			return false
		}
		if err := s.engine.DeleteRoom(ctx, s.session, args[0]); err != nil {
			s.printf("delete failed (%s): %v\n", chatclient.KindOf(err), err)
			return false
		}
		s.printf("deleted %s\n", args[0])
	case "/leave":
		_ = s.relay.Disconnect()
	default:
		s.printf("unknown command %s, try /help\n", cmd)
	}
	return false
}

func (s *shell) printRooms(rooms []domain.Room) {
	if len(rooms) == 0 {
		s.printf("no rooms\n")
		return
	}
	for _, r := range rooms {
		s.printf("  %-10s %-24s by %s (%d messages)\n", r.ID, r.Name, r.CreatedBy, len(r.Messages))
	}
}

func formatMessage(m domain.Message) string {
	ts := time.UnixMilli(m.Timestamp).Format("15:04:05")
	return fmt.Sprintf("%s %s: %s", ts, m.Sender, m.Text)
}
