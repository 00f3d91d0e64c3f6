package tapbank

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const consoleHelp = `commands:
  transfer | bid | loan | repay    select a mode
  tap <1|2>                        tap a card
  key <digits> | back | clear      keypad entry
  ok                               confirm keypad amount
  +<increment>                     raise the bid (100 ... 1000000)
  bid reset | bid ok               reset or confirm the bid
  cards                            show both cards
  reset                            back to idle
  quit`

// Console is the terminal front-end: one line per button press.
type Console struct {
	eng    *Engine
	ledger *Ledger
	keypad Keypad
	out    io.Writer
	delay  time.Duration
}

func NewConsole(ledger *Ledger, log *zerolog.Logger, out io.Writer, resultDelay time.Duration) *Console {
	return &Console{
		eng:    NewEngine(ledger, log),
		ledger: ledger,
		out:    out,
		delay:  resultDelay,
	}
}

// Run reads commands from in until quit or end of input. It returns ctx.Err() once
// ctx is done, even while a read is blocked.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(c.out, consoleHelp)
	c.render(&Result{State: c.eng.State(), Prompt: c.eng.State().Prompt()})

	done := make(chan struct{})
	defer close(done)
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line := <-lines:
			if quit := c.Exec(ctx, line); quit {
				return nil
			}
		case err := <-scanErr:
			return err
		}
	}
}

// Exec runs one command line and reports whether the console should exit.
func (c *Console) Exec(ctx context.Context, line string) bool {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return false
	}

	var ev Event
	switch cmd := fields[0]; {
	case cmd == "quit" || cmd == "exit":
		return true
	case cmd == "help":
		fmt.Fprintln(c.out, consoleHelp)
		return false
	case cmd == "cards":
		for _, id := range Cards {
			acct, _ := c.ledger.GetAccount(id)
			fmt.Fprintf(c.out, "%s: %s, outstanding %d, unpaid loans %d\n",
				id.Label(), FormatAmount(acct.Balance), acct.OutstandingCount, len(acct.UnpaidLoans()))
		}
		return false
	case cmd == "key":
		for _, d := range strings.Join(fields[1:], "") {
			c.keypad.Press(d)
		}
		fmt.Fprintln(c.out, c.keypad.Display())
		return false
	case cmd == "back":
		c.keypad.Backspace()
		fmt.Fprintln(c.out, c.keypad.Display())
		return false
	case cmd == "clear":
		c.keypad.Clear()
		fmt.Fprintln(c.out, c.keypad.Display())
		return false
	case cmd == "ok":
		ev = c.keypad.Submit()
	case cmd == "reset":
		c.keypad.Clear()
		ev = Reset{}
	case cmd == "bid" && len(fields) == 2 && fields[1] == "reset":
		ev = ResetBid{}
	case cmd == "bid" && len(fields) == 2 && fields[1] == "ok":
		ev = ConfirmBid{}
	case Mode(cmd).Valid() && len(fields) == 1:
		c.keypad.Clear()
		ev = SelectMode{Mode: Mode(cmd)}
	case cmd == "tap" && len(fields) == 2:
		ev = IdentifyCard{Card: CardID("card" + strings.TrimPrefix(fields[1], "card"))}
	case strings.HasPrefix(cmd, "+"):
		delta, err := strconv.ParseInt(strings.TrimPrefix(cmd, "+"), 10, 64)
		if err != nil {
			fmt.Fprintln(c.out, "! unknown increment")
			return false
		}
		ev = AdjustBid{Delta: delta}
	default:
		fmt.Fprintln(c.out, "! unknown command, type help")
		return false
	}

	res, err := c.eng.Dispatch(ctx, ev)
	if err != nil && res == nil {
		fmt.Fprintf(c.out, "! %v\n", err)
		return false
	}
	if err != nil {
		fmt.Fprintf(c.out, "! %s\n", res.Prompt)
		return false
	}
	c.render(res)
	if res.Outcome != nil {
		c.pause(ctx)
		res, _ = c.eng.Dispatch(ctx, Reset{})
		c.render(res)
	}
	return false
}

// pause holds a completed result on screen for the result delay.
func (c *Console) pause(ctx context.Context) {
	if c.delay <= 0 {
		return
	}
	t := time.NewTimer(c.delay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (c *Console) render(res *Result) {
	var b strings.Builder
	mode := string(res.State.Mode())
	fmt.Fprintf(&b, "[Mode: %s] %s", strings.ToUpper(mode[:1])+mode[1:], res.Prompt)
	if res.Card != nil {
		fmt.Fprintf(&b, " | %s balance %s", res.Card.ID.Label(), FormatAmount(res.Card.Balance))
	}
	if bid, ok := res.State.(BidAdjustIncrement); ok {
		fmt.Fprintf(&b, " | Current Bid: %s", FormatAmount(bid.Current))
	}
	if res.Warning != nil {
		b.WriteString(" | Error saving data")
	}
	fmt.Fprintln(c.out, b.String())
}
