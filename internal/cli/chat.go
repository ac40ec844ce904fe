package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tripflow "github.com/aretw0/tripflow"
	"github.com/aretw0/tripflow/internal/presentation/tui"
	"github.com/aretw0/tripflow/pkg/domain"
	"github.com/aretw0/tripflow/pkg/session"
	"github.com/google/uuid"
	"golang.org/x/term"
)

// ChatOptions configure a terminal conversation.
type ChatOptions struct {
	Options
	Phone string
	Name  string
	// JSON switches to NDJSON output, one turn result per line.
	JSON bool
}

// RunChat runs a conversation against the configured extractor from stdin.
func RunChat(opts ChatOptions) error {
	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	app, err := loadApp(sigCtx, opts.Options)
	if err != nil {
		return err
	}
	defer app.Close()

	interactive := !opts.JSON && term.IsTerminal(int(os.Stdin.Fd()))
	c := &chat{
		turns:    app.Orchestrator,
		identity: domain.Identity{ID: opts.Phone, Name: opts.Name, Phone: opts.Phone},
		out:      os.Stdout,
		json:     opts.JSON,
	}
	if interactive {
		tui.PrintBanner(os.Stdout)
		printSystemMessage(os.Stdout, "tripflow %s. Type /state, /reset or /quit.", strings.TrimSpace(tripflow.Version))
		c.render = tui.NewRenderer()
		c.prompt = "> "
	}

	err = c.run(sigCtx, os.Stdin)
	if sigCtx.Err() != nil && err == nil {
		err = sigCtx.Err()
	}
	if sig := sigCtx.Signal(); sig != nil && !opts.JSON {
		printSystemMessage(os.Stdout, "Interrupted (%v)", sig)
	}
	return handleExecutionError(err)
}

type chat struct {
	turns    *session.Orchestrator
	identity domain.Identity
	out      io.Writer
	json     bool
	prompt   string
	render   func(string) (string, error)
}

type chatLine struct {
	Transcript    string             `json:"transcript"`
	AgentResponse string             `json:"agentResponse,omitempty"`
	Signal        domain.Signal      `json:"signal"`
	TripState     *domain.TripRecord `json:"tripState,omitempty"`
	Error         string             `json:"error,omitempty"`
	Kind          string             `json:"kind,omitempty"`
}

func (c *chat) run(ctx context.Context, in io.Reader) error {
	if strings.TrimSpace(c.identity.Phone) == "" {
		return fmt.Errorf("%w: a phone number is required", domain.ErrInvalidTurn)
	}
	scanner := bufio.NewScanner(in)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprint(c.out, c.prompt)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			return io.EOF
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "exit", "quit":
			return nil
		case "/state":
			c.showState(ctx)
			continue
		case "/reset":
			if err := c.turns.Sessions().Delete(ctx, c.identity.Phone); err != nil {
				c.reportError(line, err)
			} else if !c.json {
				printSystemMessage(c.out, "Session reset")
			}
			continue
		}
		c.turn(ctx, line)
	}
}

func (c *chat) turn(ctx context.Context, text string) {
	res, err := c.turns.Turn(ctx, session.TurnRequest{
		Identity:       c.identity,
		Text:           text,
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		c.reportError(text, err)
		return
	}

	if c.json {
		c.writeJSON(chatLine{
			Transcript:    res.Transcript,
			AgentResponse: res.AgentResponse,
			Signal:        res.Signal,
			TripState:     res.Record,
		})
		return
	}

	reply := res.AgentResponse
	if reply == "" {
		reply = fmt.Sprintf("(%s)", res.Signal.AssetID)
	}
	fmt.Fprintln(c.out, reply)
	if c.render != nil {
		c.printMarkdown(tui.TripMarkdown(res.Record))
	}
}

func (c *chat) showState(ctx context.Context) {
	record, err := c.turns.Sessions().Load(ctx, c.identity.Phone)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) && !c.json {
			printSystemMessage(c.out, "No trip yet")
			return
		}
		c.reportError("/state", err)
		return
	}
	if c.json {
		c.writeJSON(chatLine{Transcript: "/state", TripState: record})
		return
	}
	c.printMarkdown(tui.TripMarkdown(record))
}

func (c *chat) printMarkdown(md string) {
	if c.render == nil {
		fmt.Fprint(c.out, md)
		return
	}
	out, err := c.render(md)
	if err != nil {
		fmt.Fprint(c.out, md)
		return
	}
	fmt.Fprint(c.out, out)
}

func (c *chat) reportError(input string, err error) {
	if c.json {
		c.writeJSON(chatLine{Transcript: input, Error: err.Error(), Kind: domain.ErrorKind(err)})
		return
	}
	printSystemMessage(c.out, "Error (%s): %v", domain.ErrorKind(err), err)
}

func (c *chat) writeJSON(v chatLine) {
	data, err := json.Marshal(v)
	if err != nil {
		printSystemMessage(c.out, "Error: %v", err)
		return
	}
	fmt.Fprintln(c.out, string(data))
}
