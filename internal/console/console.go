package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Chative-core-poc-v1/sqlchat/internal/chat/conversation"
	"github.com/Chative-core-poc-v1/sqlchat/internal/chat/model"
	errx "github.com/Chative-core-poc-v1/sqlchat/internal/core/error"
	logx "github.com/Chative-core-poc-v1/sqlchat/pkg/logger"
)

// Conversation is the part of conversation.Session the console drives.
type Conversation interface {
	Submit(text string) (int, error)
	Generate(ctx context.Context, kind model.Kind, pos int) (*model.Enrichment, error)
	Timeline() []conversation.DisplayEntry
	Pending() bool
	Clear()
	Wait(ctx context.Context) error
}

type Config struct {
	In  io.Reader
	Out io.Writer
	// HistoryTurns bounds how many exchanges /history prints.
	HistoryTurns int
	NoColor      bool
}

// Console is a line-oriented host for a Conversation.
type Console struct {
	conv         Conversation
	in           *bufio.Scanner
	out          io.Writer
	render       *renderer
	historyTurns int
}

func New(conv Conversation, cfg Config) *Console {
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 20
	}
	return &Console{
		conv:         conv,
		in:           bufio.NewScanner(cfg.In),
		out:          cfg.Out,
		render:       &renderer{w: cfg.Out, p: newPalette(cfg.NoColor)},
		historyTurns: cfg.HistoryTurns,
	}
}

// Run reads commands until input ends, /quit is entered or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	for {
		fmt.Fprint(c.out, "> ")

		// Read input with context awareness
		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)
		go func() {
			if c.in.Scan() {
				inputCh <- c.in.Text()
				return
			}
			if err := c.in.Err(); err != nil {
				errCh <- err
				return
			}
			errCh <- io.EOF
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if quit := c.handle(ctx, input); quit {
			return nil
		}
		fmt.Fprintln(c.out)
	}
}

// handle runs one command line and reports whether the console should exit.
func (c *Console) handle(ctx context.Context, input string) bool {
	if !strings.HasPrefix(input, "/") {
		c.submit(ctx, input)
		return false
	}

	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "/quit", "/exit", "/q":
		return true
	case "/help":
		c.help()
	case "/history":
		c.history()
	case "/clear":
		c.conv.Clear()
		fmt.Fprintln(c.out, "Conversation cleared.")
	case "/insight", "/insights":
		c.enrich(ctx, args, model.KindInsight)
	case "/viz", "/chart", "/visualize":
		c.enrich(ctx, args, model.KindVisualization)
	case "/enrich":
		c.enrich(ctx, args, model.Kinds...)
	default:
		c.render.p.warn.Fprintf(c.out, "Unknown command %s. Type /help for commands.\n", cmd)
	}
	return false
}

func (c *Console) submit(ctx context.Context, text string) {
	pos, err := c.conv.Submit(text)
	if err != nil {
		c.render.p.err.Fprintf(c.out, "[error] %v\n", err)
		return
	}
	if c.conv.Pending() {
		c.render.pending()
	}
	if err := c.conv.Wait(ctx); err != nil {
		return
	}
	for _, e := range c.conv.Timeline() {
		if e.Position == pos && e.Kind != conversation.EntryQuery {
			c.render.entry(e)
		}
	}
}

// enrich runs the given kinds for one exchange concurrently and prints each
// outcome in kind order.
func (c *Console) enrich(ctx context.Context, args []string, kinds ...model.Kind) {
	pos, err := parsePosition(args)
	if err != nil {
		c.render.p.err.Fprintf(c.out, "[error] %v\n", err)
		return
	}

	results := make([]*model.Enrichment, len(kinds))
	var eg errgroup.Group
	for i, kind := range kinds {
		i, kind := i, kind
		eg.Go(func() error {
			e, err := c.conv.Generate(ctx, kind, pos)
			if err != nil {
				return fmt.Errorf("%s: %w", kind, err)
			}
			results[i] = e
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		if errx.IsValidation(err) {
			c.render.p.warn.Fprintf(c.out, "Cannot enrich #%d: %v\n", pos+1, err)
		} else {
			logx.Debug().Err(err).Str("component", "console").Int("position", pos).Msg("enrichment command failed")
			c.render.p.err.Fprintf(c.out, "[error] %v\n", err)
		}
	}
	for _, e := range results {
		c.render.enrichment(e)
	}
}

func (c *Console) history() {
	entries := c.conv.Timeline()
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "No messages yet.")
		return
	}
	c.render.entries(trimTurns(entries, c.historyTurns))
	if c.conv.Pending() {
		c.render.pending()
	}
}

func (c *Console) help() {
	fmt.Fprintln(c.out, "Type a question and press Enter to query your data.")
	fmt.Fprintln(c.out, "Commands:")
	fmt.Fprintln(c.out, "  /insight N     Generate insights for answer N")
	fmt.Fprintln(c.out, "  /viz N         Generate a chart for answer N")
	fmt.Fprintln(c.out, "  /enrich N      Generate both at once")
	fmt.Fprintln(c.out, "  /history       Show the conversation")
	fmt.Fprintln(c.out, "  /clear         Start over")
	fmt.Fprintln(c.out, "  /help          Show this help")
	fmt.Fprintln(c.out, "  /quit          Exit")
}

// parsePosition reads the 1-based exchange number shown in the timeline.
func parsePosition(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected one answer number")
	}
	n, err := strconv.Atoi(strings.TrimPrefix(args[0], "#"))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid answer number %q", args[0])
	}
	return n - 1, nil
}

// trimTurns keeps the entries of the last maxTurns positions.
func trimTurns(entries []conversation.DisplayEntry, maxTurns int) []conversation.DisplayEntry {
	if len(entries) == 0 {
		return nil
	}
	cutoff := entries[len(entries)-1].Position - maxTurns + 1
	start := 0
	for start < len(entries) && entries[start].Position < cutoff {
		start++
	}
	result := make([]conversation.DisplayEntry, len(entries)-start)
	copy(result, entries[start:])
	return result
}

var _ Conversation = (*conversation.Session)(nil)
