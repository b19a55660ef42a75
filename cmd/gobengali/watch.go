package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"gobengali/internal/analysis"
	"gobengali/internal/config"
	"gobengali/internal/controller"
	"gobengali/internal/correction"
	"gobengali/internal/document"
	"gobengali/internal/metrics"
	"gobengali/internal/quota"
	"gobengali/internal/translit"
	"gobengali/internal/view"
)

const watchHelp = `Commands:
    list                  Show pending corrections
    open <n>              Show correction n and make it the current one
    accept [n] [text]     Accept correction n, or the current one (primary suggestion, or text)
    reject [n]            Dismiss correction n, or the current one
    all                   Accept every pending correction
    all!                  Same, applying as many as the allowance permits
    clear                 Dismiss every pending correction
    check                 Analyze now instead of waiting for the pause
    translate             Translate the document into Bengali
    menu                  Show transliteration suggestions
    pick <n>              Highlight suggestion n
    key <name>            Send a key to the menu (up, down, enter, space, escape)
    quota                 Show today's usage
    text                  Print the document
    quit                  Stop watching`

func cmdWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	g := addGlobalFlags(fs)
	settle := fs.Duration("settle", 200*time.Millisecond, "Quiet period before a file change is read")
	fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: gobengali watch <file> [-settle duration]")
		os.Exit(1)
	}
	filePath := fs.Arg(0)

	a := mustApp(g)
	defer a.Close()

	ed, err := view.OpenFile(filePath, *settle, a.log.Slog())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		a.Close()
		os.Exit(1)
	}
	defer ed.Close()

	s := &session{out: os.Stdout, tracker: a.tracker}
	opts := a.controllerOptions()
	opts.OnEvent = s.event
	s.ctl = controller.New(ed, a.svc, opts)
	defer s.ctl.Close()

	loader := config.NewLoader(a.cfgPath, a.log.Slog())
	if _, err := loader.Load(); err == nil {
		loader.OnChange(a.applyReload)
		if err := loader.Watch(); err != nil {
			a.log.Warn("config watch unavailable", "error", err)
		}
	}
	defer loader.Close()

	if a.cfg.Metrics.Enabled {
		srv, err := a.serveMetrics()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		} else {
			fmt.Printf("Metrics on http://%s/metrics\n", srv.Addr())
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
		}
	}

	fmt.Printf("Watching %s (type 'help' for commands)\n", ed.Path())
	s.ctl.AnalyzeNow()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	ctx := context.Background()
	for {
		select {
		case <-sigCh:
			fmt.Println()
			fmt.Println("Stopped.")
			return
		case line, ok := <-lines:
			if !ok || !s.exec(ctx, line) {
				fmt.Println("Stopped.")
				return
			}
		}
	}
}

// applyReload carries the settings that can change mid-session over to the
// running components.
func (a *app) applyReload(old, new *config.Config) {
	if old.Quota.Tier != new.Quota.Tier {
		if tier, err := quota.ParseTier(new.Quota.Tier); err == nil {
			a.tracker.SetTier(tier)
			a.log.Info("tier changed", "tier", string(tier))
		}
	}
	if old.Analysis != new.Analysis || old.Sync != new.Sync || old.Service != new.Service {
		a.log.Info("configuration changed; restart the session to apply it")
	}
}

func (a *app) serveMetrics() (*metrics.Server, error) {
	srv, err := a.metrics.Serve(a.cfg.Metrics.Listen, a.log.Slog())
	if err != nil {
		return nil, err
	}
	srv.Handle("/health", a.checker().Handler())
	return srv, nil
}

// session interprets watch commands against a controller.
type session struct {
	ctl     *controller.Controller
	tracker *quota.Tracker

	mu  sync.Mutex
	out io.Writer
}

func (s *session) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *session) event(ev controller.Event) {
	switch ev.Kind {
	case controller.EventCorrections:
		if len(ev.Corrections) == 0 {
			s.printf("No pending corrections.\n")
			return
		}
		s.mu.Lock()
		fmt.Fprintf(s.out, "%d corrections:\n", len(ev.Corrections))
		printCorrections(s.out, ev.Corrections, "")
		s.mu.Unlock()
	case controller.EventSynced:
		s.printf("Document updated.\n")
	case controller.EventSuggestions:
		if ev.Suggestions.Empty() {
			return
		}
		s.printMenu(ev.Suggestions, 0)
	case controller.EventLanguage:
		s.printf("Language: %s\n", ev.Language)
	case controller.EventAnalysisFailed:
		s.printf("Analysis failed: %v\n", ev.Err)
	case controller.EventSyncFailed:
		s.printf("Could not write the document: %v\n", ev.Err)
	}
}

func (s *session) printMenu(res translit.Result, selected int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "Suggestions for %q (%s):\n", res.Token.Text, res.Source)
	for i, sg := range res.Suggestions {
		marker := " "
		if i == selected {
			marker = ">"
		}
		fmt.Fprintf(s.out, " %s %d. %s\n", marker, i+1, sg.Text)
	}
}

// exec runs one command line and reports whether the session continues.
func (s *session) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}

	switch cmd, args := fields[0], fields[1:]; cmd {
	case "help", "?":
		s.printf("%s\n", watchHelp)

	case "list", "ls":
		cs := s.ctl.Document().Corrections()
		if len(cs) == 0 {
			s.printf("No pending corrections.\n")
			break
		}
		var active string
		if c, ok := s.ctl.Active(); ok {
			active = c.ID
		}
		s.mu.Lock()
		printCorrections(s.out, cs, active)
		s.mu.Unlock()

	case "accept", "a":
		c, ok := s.correctionArg(args)
		if !ok {
			break
		}
		var err error
		if len(args) > 1 {
			err = s.ctl.Accept(ctx, c.ID, strings.Join(args[1:], " "))
		} else {
			err = s.ctl.AcceptPrimary(ctx, c.ID)
		}
		if err != nil {
			s.report(err)
			break
		}
		s.printf("Accepted %q.\n", c.OriginalText)

	case "open", "o":
		c, ok := s.correctionArg(args)
		if !ok {
			break
		}
		if err := s.ctl.Open(c.ID); err != nil {
			s.report(err)
			break
		}
		s.printf("Opened %q -> %s\n", c.OriginalText, strings.Join(c.Suggestions, ", "))
		if c.Message != "" {
			s.printf("    %s\n", c.Message)
		}

	case "reject", "r":
		c, ok := s.correctionArg(args)
		if !ok {
			break
		}
		if err := s.ctl.Reject(c.ID); err != nil {
			s.report(err)
			break
		}
		s.printf("Dismissed %q.\n", c.OriginalText)

	case "all", "all!":
		force := cmd == "all!"
		res, err := s.ctl.AcceptAll(ctx, func(pending, remaining int) bool {
			if !force {
				s.printf("%d corrections pending but only %d accepts left today; use 'all!' to apply anyway.\n", pending, remaining)
			}
			return force
		})
		if err != nil {
			s.report(err)
			break
		}
		s.printf("Applied %d corrections.\n", res.Resolved)

	case "clear":
		s.printf("Dismissed %d corrections.\n", s.ctl.RejectAll())

	case "check":
		if reason := s.ctl.AnalyzeNow(); reason != analysis.SkipNone {
			s.printf("Not analyzed: %s\n", reason)
		}

	case "translate":
		if reason := s.ctl.Translate(); reason != analysis.SkipNone {
			s.printf("Not translated: %s\n", reason)
		}

	case "menu":
		m := s.ctl.Menu()
		if !m.IsOpen() {
			s.printf("No suggestions.\n")
			break
		}
		s.printMenu(m.Result(), m.Selected())

	case "pick":
		n, ok := s.indexArg(args)
		if !ok || !s.ctl.SelectSuggestion(n) {
			s.printf("No such suggestion.\n")
			break
		}
		m := s.ctl.Menu()
		s.printMenu(m.Result(), m.Selected())

	case "key":
		if len(args) == 0 {
			s.printf("Usage: key <up|down|enter|space|escape>\n")
			break
		}
		act, err := s.ctl.HandleKey(translit.ParseKey(args[0]))
		if err != nil {
			s.report(err)
			break
		}
		switch act {
		case translit.ActionMove:
			m := s.ctl.Menu()
			s.printMenu(m.Result(), m.Selected())
		case translit.ActionIgnore:
			s.printf("No suggestions open.\n")
		}

	case "quota":
		u := s.tracker.Usage()
		if u.Unlimited {
			s.printf("Unlimited (%s tier).\n", u.Tier)
			break
		}
		s.printf("Words %d/%d, accepts %d/%d\n", u.WordsUsed, u.WordsLimit, u.AcceptsUsed, u.AcceptsLimit)

	case "text":
		s.printf("%s\n", s.ctl.Document().Text())

	case "quit", "exit", "q":
		return false

	default:
		s.printf("Unknown command %q; type 'help'.\n", cmd)
	}
	return true
}

// indexArg parses a 1-based index argument.
func (s *session) indexArg(args []string) (int, bool) {
	if len(args) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}

// correctionArg resolves the correction named by args, falling back to the
// opened one when no index is given.
func (s *session) correctionArg(args []string) (correction.Correction, bool) {
	if len(args) == 0 {
		if c, ok := s.ctl.Active(); ok {
			return c, true
		}
	}
	i, ok := s.indexArg(args)
	cs := s.ctl.Document().Corrections()
	if !ok || i >= len(cs) {
		s.printf("No such correction; 'list' shows the pending ones.\n")
		return correction.Correction{}, false
	}
	return cs[i], true
}

func (s *session) report(err error) {
	switch {
	case errors.Is(err, document.ErrLimitReached):
		s.printf("Daily accept limit reached. Counters reset at local midnight.\n")
	case errors.Is(err, document.ErrStaleReference):
		s.printf("That correction is no longer pending.\n")
	case errors.Is(err, document.ErrDeclined):
		s.printf("Nothing applied.\n")
	default:
		s.printf("Error: %v\n", err)
	}
}
