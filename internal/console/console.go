// Package console implements the operator console: a line-oriented command
// interpreter run on its own worker, gated behind a two-factor operator
// login (password + TOTP) before any privileged command executes, and
// backed by an audit trail of every executed line.
package console

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"mazeserver/internal/audit"
	"mazeserver/internal/broadcast"
	"mazeserver/internal/dispatch"
	"mazeserver/internal/engine"
	"mazeserver/internal/registry"
)

// loginState is the console's own pre-auth state machine, independent of
// the game socket's auth flow.
type loginState int

const (
	stateAwaitingUsername loginState = iota
	stateAwaitingPassword
	stateAwaitingTOTP
	stateReady
)

// historyCap bounds the console's in-memory command history.
const historyCap = 1000

// HistoryEntry is one executed (or attempted) console line.
type HistoryEntry struct {
	Line    string
	Success bool
	Message string
	At      time.Time
}

// Console reads lines from in, authenticates the operator, then
// interprets commands against the shared engine/registry/dispatch state
// through the same privileged calls the game socket's handlers use.
type Console struct {
	in  *bufio.Reader
	out io.Writer
	log *log.Logger

	store *OperatorStore
	admin *AdminTable
	audit *audit.Trail

	eng  *engine.Engine
	reg  *registry.Registry
	disp *dispatch.Dispatcher
	bc   *broadcast.Broadcaster

	loginUser       string
	pendingPassword string

	mu      sync.Mutex
	state   loginState
	level   Level
	history []HistoryEntry
}

// Deps bundles the console's collaborators.
type Deps struct {
	Store      *OperatorStore
	Admin      *AdminTable
	Audit      *audit.Trail
	Engine     *engine.Engine
	Registry   *registry.Registry
	Dispatcher *dispatch.Dispatcher
	Broadcast  *broadcast.Broadcaster
}

// New builds a Console reading from in and writing prompts/output to out.
func New(in io.Reader, out io.Writer, logger *log.Logger, deps Deps) *Console {
	return &Console{
		in:    bufio.NewReader(in),
		out:   out,
		log:   logger,
		store: deps.Store,
		admin: deps.Admin,
		audit: deps.Audit,
		eng:   deps.Engine,
		reg:   deps.Registry,
		disp:  deps.Dispatcher,
		bc:    deps.Broadcast,
		state: stateAwaitingUsername,
	}
}

func (c *Console) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format, args...)
}

// Run reads and dispatches console lines until in is exhausted or
// shutdown is closed. Reads happen on a background goroutine so the main
// select can observe shutdown promptly; a read already blocked in the OS
// when shutdown fires is abandoned rather than joined.
func (c *Console) Run(shutdown <-chan struct{}) {
	c.printf("Operator console. username: ")

	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			line, err := c.in.ReadString('\n')
			if line != "" {
				lines = sendOrSkip(lines, strings.TrimRight(line, "\r\n"), shutdown)
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-shutdown:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			c.handleLine(line)
		}
	}
}

// sendOrSkip is a small helper so the reader goroutine never blocks
// forever on a send past shutdown.
func sendOrSkip(ch chan string, line string, shutdown <-chan struct{}) chan string {
	select {
	case ch <- line:
	case <-shutdown:
	}
	return ch
}

func (c *Console) handleLine(line string) {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch state {
	case stateAwaitingUsername:
		c.loginUser = strings.TrimSpace(line)
		c.mu.Lock()
		c.state = stateAwaitingPassword
		c.mu.Unlock()
		c.printf("Password: ")
	case stateAwaitingPassword:
		c.pendingPassword = strings.TrimSpace(line)
		c.mu.Lock()
		c.state = stateAwaitingTOTP
		c.mu.Unlock()
		c.printf("TOTP code: ")
	case stateAwaitingTOTP:
		code := strings.TrimSpace(line)
		level, ok := c.store.Authenticate(c.loginUser, c.pendingPassword, code)
		c.pendingPassword = ""
		if !ok {
			c.printf("Authentication failed.\nusername: ")
			c.mu.Lock()
			c.state = stateAwaitingUsername
			c.mu.Unlock()
			return
		}
		c.mu.Lock()
		c.state = stateReady
		c.level = level
		c.mu.Unlock()
		c.printf("Authenticated as %s (level %d).\n> ", c.loginUser, level)
	case stateReady:
		c.execute(line)
		c.printf("> ")
	}
}

// execute tokenizes and runs one command line, recording it to history and
// the audit trail regardless of outcome.
func (c *Console) execute(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	tokens := tokenize(trimmed)
	if len(tokens) == 0 {
		return
	}

	name := strings.ToLower(tokens[0])
	args := tokens[1:]

	cmd, known := commandTable[name]
	var success bool
	var message string
	if !known {
		success, message = false, fmt.Sprintf("unknown command: %s", name)
	} else if c.level < cmd.minLevel {
		success, message = false, "insufficient privilege level"
	} else {
		success, message = cmd.run(c, args)
	}

	c.printf("%s\n", message)
	c.recordHistory(trimmed, success, message)

	if c.audit != nil {
		if err := c.audit.Record(c.loginUser, int(c.level), trimmed, success, message); err != nil && c.log != nil {
			c.log.Printf("console: audit record failed: %v", err)
		}
	}
}

func (c *Console) recordHistory(line string, success bool, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, HistoryEntry{Line: line, Success: success, Message: message, At: time.Now()})
	if len(c.history) > historyCap {
		c.history = c.history[len(c.history)-historyCap:]
	}
}

// History returns a copy of the bounded command history, oldest first.
func (c *Console) History() []HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]HistoryEntry, len(c.history))
	copy(out, c.history)
	return out
}

// tokenize splits a line on whitespace, honoring double-quoted spans as a
// single token (quotes themselves are stripped).
func tokenize(line string) []string {
	var tokens []string
	var cur strings.Builder
	inQuotes := false
	hasToken := false

	flush := func() {
		if hasToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			hasToken = false
		}
	}

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			hasToken = true
		case r == ' ' || r == '\t':
			if inQuotes {
				cur.WriteRune(r)
			} else {
				flush()
			}
		default:
			cur.WriteRune(r)
			hasToken = true
		}
	}
	flush()
	return tokens
}
