package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/yungbote/medreport-backend/internal/advice"
	"github.com/yungbote/medreport-backend/internal/app"
	"github.com/yungbote/medreport-backend/internal/pipeline"
	"github.com/yungbote/medreport-backend/internal/session"
)

const help = `Commands:
  :load <path>     analyze a PNG, JPEG or PDF report
  :report          show the current report again
  :press <n|name>  press an action button (1-4)
  :quit            exit
Anything else is asked as a question about the current report.`

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func mainImpl() error {
	ctx := context.Background()
	a, err := app.NewHeadless(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	svc := a.Services.Pipeline

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       ":quit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem(":load"),
			readline.PcItem(":report"),
			readline.PcItem(":press"),
			readline.PcItem(":quit"),
		),
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = rl.Close()
	}()

	out := rl.Stdout()
	fmt.Fprintln(out, pipeline.Title)
	fmt.Fprintln(out, help)

	var current string
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil { // io.EOF
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		switch cmd {
		case ":quit", ":q":
			return nil
		case ":help":
			fmt.Fprintln(out, help)
		case ":load":
			rep, err := load(ctx, svc, arg)
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			current = rep.SessionID
			printReport(out, rep)
		case ":report":
			if current == "" {
				fmt.Fprintln(out, "no report loaded; use :load <path>")
				continue
			}
			ia, err := svc.Load(ctx, current)
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			printReport(out, pipeline.ReportFor(ia))
		case ":press":
			if current == "" {
				fmt.Fprintln(out, "no report loaded; use :load <path>")
				continue
			}
			r, err := svc.Press(ctx, current, actionName(arg))
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			fmt.Fprintln(out, r.Text)
		default:
			if current == "" {
				fmt.Fprintln(out, "no report loaded; use :load <path>")
				continue
			}
			r, err := svc.Ask(ctx, current, line)
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			fmt.Fprintln(out, r.Text)
		}
	}
	return nil
}

func load(ctx context.Context, svc *pipeline.Service, path string) (*pipeline.Report, error) {
	if path == "" {
		return nil, errors.New("usage: :load <path>")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return svc.Process(ctx, pipeline.Upload{Filename: filepath.Base(path), Bytes: raw})
}

// actionName maps a 1-based button number to its action name.
func actionName(arg string) string {
	if n, err := strconv.Atoi(arg); err == nil {
		actions := session.Actions()
		if n >= 1 && n <= len(actions) {
			return actions[n-1].Name
		}
	}
	return arg
}

func printReport(w io.Writer, rep *pipeline.Report) {
	for _, warn := range rep.Warnings {
		fmt.Fprintln(w, "warning:", warn)
	}
	if rep.Preview.Text != "" {
		fmt.Fprintf(w, "\n== First page ==\n%s\n", rep.Preview.Text)
	} else if rep.Preview.Width > 0 {
		fmt.Fprintf(w, "\n== Uploaded Image == %dx%d\n", rep.Preview.Width, rep.Preview.Height)
	}
	fmt.Fprintf(w, "\n== Summary ==\n%s\n", rep.Summary)
	fmt.Fprintln(w, "\n== Health Recommendations ==")
	if rep.Advice.Overview != "" {
		fmt.Fprintln(w, rep.Advice.Overview)
	}
	for _, c := range advice.Categories() {
		fmt.Fprintf(w, "\n%s:\n%s\n", c.Label(), rep.Advice.Text(c))
	}
	fmt.Fprintf(w, "\n== Chat with your Health Report ==\n%s\n", session.Overview(rep.Summary))
	if rep.Style.Buttons() {
		for i, a := range session.Actions() {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, a.Category.Label())
		}
	}
}
