// Package host provides a console-backed implementation of the bot host
// used by the botscript CLI.
package host

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/botscript/commands"
	"github.com/chazu/botscript/runner"
)

// ConsoleHost implements runner.Host over writers. Console output goes to
// Console, chat messages to Chat. Reconnects and exits are reported to
// hooks so the embedding program decides what they mean.
type ConsoleHost struct {
	Console io.Writer
	Chat    io.Writer

	// CommandChar prefixes internal commands typed at the console. With 0
	// every console line naming a known command runs it.
	CommandChar rune

	OnReconnect func(req runner.ReconnectRequest)
	OnExit      func()
	// Bots maps bot names accepted by LoadBot to their constructors.
	Bots map[string]func() error
	// Scripts runs a script for the "script" command.
	Scripts func(path string, args []string) error

	dispatcher *commands.Dispatcher
	log        commonlog.Logger

	mu      sync.Mutex
	players map[string]string // uuid -> name
}

// NewConsole creates a host writing console and chat output to the given
// writers.
func NewConsole(console, chat io.Writer) *ConsoleHost {
	return &ConsoleHost{
		Console:     console,
		Chat:        chat,
		CommandChar: '/',
		Bots:        make(map[string]func() error),
		dispatcher:  commands.NewDispatcher(),
		log:         commonlog.GetLogger("botscript.host"),
		players:     make(map[string]string),
	}
}

// Commands returns the internal command dispatcher.
func (h *ConsoleHost) Commands() *commands.Dispatcher {
	return h.dispatcher
}

// SetPlayers replaces the online roster.
func (h *ConsoleHost) SetPlayers(players map[string]string) {
	roster := make(map[string]string, len(players))
	maps.Copy(roster, players)
	h.mu.Lock()
	h.players = roster
	h.mu.Unlock()
}

// AddPlayer marks a player as online.
func (h *ConsoleHost) AddPlayer(uuid, name string) {
	h.mu.Lock()
	h.players[uuid] = name
	h.mu.Unlock()
}

// RemovePlayer marks a player as offline.
func (h *ConsoleHost) RemovePlayer(uuid string) {
	h.mu.Lock()
	delete(h.players, uuid)
	h.mu.Unlock()
}

// ---------------------------------------------------------------------------
// runner.Host
// ---------------------------------------------------------------------------

func (h *ConsoleHost) LogToConsole(text string) {
	fmt.Fprintln(h.Console, text)
}

// SendText sends text to the server as typed. Server commands such as
// "/tell" go out unchanged.
func (h *ConsoleHost) SendText(text string) bool {
	_, err := fmt.Fprintln(h.Chat, text)
	return err == nil
}

// PerformInternalCommand runs an internal command and logs its message. It
// reports whether the command was recognized, even if it then failed.
func (h *ConsoleHost) PerformInternalCommand(command string) bool {
	res := h.dispatcher.Execute(h, command)
	if res.Message != "" {
		h.LogToConsole(res.Message)
	}
	if res.Status != commands.Unknown && !res.OK() {
		h.log.Warningf("internal command %q failed", command)
	}
	return res.Status != commands.Unknown
}

// Input handles one line typed at the console. Lines carrying the command
// prefix run as internal commands; everything else is sent to the server.
func (h *ConsoleHost) Input(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if h.CommandChar != 0 {
		if rest, ok := strings.CutPrefix(line, string(h.CommandChar)); ok {
			h.PerformInternalCommand(rest)
			return
		}
		h.SendText(line)
		return
	}
	name, _, _ := strings.Cut(line, " ")
	if slices.Contains(h.dispatcher.Names(), strings.ToLower(name)) {
		h.PerformInternalCommand(line)
		return
	}
	h.SendText(line)
}

func (h *ConsoleHost) ReconnectToTheServer(req runner.ReconnectRequest) {
	if req.DefaultAttempts {
		h.log.Infof("reconnecting in %ds (default attempts, keep settings: %t)", req.DelaySeconds, req.KeepSettings)
	} else {
		h.log.Infof("reconnecting in %ds (%d extra attempts, keep settings: %t)", req.DelaySeconds, req.ExtraAttempts, req.KeepSettings)
	}
	if h.OnReconnect != nil {
		h.OnReconnect(req)
	}
}

func (h *ConsoleHost) DisconnectAndExit() {
	h.log.Info("disconnecting")
	if h.OnExit != nil {
		h.OnExit()
	}
}

// LoadBot starts a registered bot.
func (h *ConsoleHost) LoadBot(name string) error {
	start, ok := h.Bots[name]
	if !ok {
		return fmt.Errorf("unknown bot %q", name)
	}
	return start()
}

// GetOnlinePlayers returns the online player names in order.
func (h *ConsoleHost) GetOnlinePlayers() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := slices.Collect(maps.Values(h.players))
	slices.Sort(names)
	return names
}

// GetOnlinePlayersWithUUID returns a copy of the roster keyed by UUID.
func (h *ConsoleHost) GetOnlinePlayersWithUUID() map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return maps.Clone(h.players)
}

// ---------------------------------------------------------------------------
// commands.Env
// ---------------------------------------------------------------------------

func (h *ConsoleHost) Restart(keepAccountAndServerSettings bool) {
	h.ReconnectToTheServer(runner.ReconnectRequest{DefaultAttempts: true, KeepSettings: keepAccountAndServerSettings})
}

func (h *ConsoleHost) Exit() {
	h.DisconnectAndExit()
}

func (h *ConsoleHost) RunScript(path string, args []string) error {
	if h.Scripts == nil {
		return fmt.Errorf("scripts are not available")
	}
	return h.Scripts(path, args)
}
