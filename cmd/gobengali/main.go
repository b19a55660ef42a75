// gobengali - Bengali writing assistant
//
//	gobengali check <file>      Analyze a document and list corrections
//	gobengali fix <file>        Apply every suggested correction
//	gobengali watch <file>      Follow a document while it is edited
//	gobengali translit <word>   Transliteration suggestions for a word
//	gobengali quota             Show today's usage
//	gobengali health            Probe the analysis service and storage
//	gobengali config <action>   Manage the configuration file
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"gobengali/internal/config"
	"gobengali/internal/correction"
	"gobengali/internal/document"
	"gobengali/internal/health"
	"gobengali/internal/quota"
	"gobengali/internal/store"
	"gobengali/internal/translit"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]

	switch cmd {
	case "check":
		cmdCheck()
	case "fix":
		cmdFix()
	case "watch":
		cmdWatch()
	case "translit":
		cmdTranslit()
	case "quota":
		cmdQuota()
	case "health":
		cmdHealth()
	case "config":
		cmdConfig()
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`gobengali - Bengali writing assistant

USAGE:
    gobengali <command> [options]

COMMANDS:
    check <file>        Analyze a document and list corrections
    fix <file>          Apply the primary suggestion of every correction
    watch <file>        Follow a document, analyzing as it is edited
    translit <word>     Show transliteration suggestions for a word
    quota               Show today's word and accept usage
    health              Probe the analysis service and storage
    config <action>     Manage the configuration (init, show, path)
    help                Show this help message

COMMON OPTIONS:
    -config <path>      Config file (TOML, JSON or YAML)
    -v                  Verbose logging
    -offline            Transliterate locally, without the service

WORKFLOW:
    1. gobengali config init            # Write a default config
    2. gobengali check essay.txt        # Review suggestions
    3. gobengali fix essay.txt          # Apply them
    4. gobengali watch essay.txt        # Or keep a session open while editing

The free tier allows 500 analyzed words and 15 accepted corrections per day.`)
}

func mustApp(g *globalFlags) *app {
	a, err := newApp(context.Background(), g)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return a
}

func cmdCheck() {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	g := addGlobalFlags(fs)
	asJSON := fs.Bool("json", false, "Print corrections as JSON")
	fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: gobengali check <file> [-json]")
		os.Exit(1)
	}
	filePath := fs.Arg(0)

	data, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}

	a := mustApp(g)
	defer a.Close()

	ctl, err := a.analyzeOnce(string(data))
	if err != nil {
		a.Close()
		fmt.Fprintf(os.Stderr, "Error analyzing %s: %v\n", filePath, err)
		os.Exit(1)
	}
	defer ctl.Close()

	cs := ctl.Document().Corrections()
	if *asJSON {
		out, _ := json.MarshalIndent(cs, "", "  ")
		fmt.Println(string(out))
		return
	}

	stats := ctl.Document().Stats()
	fmt.Printf("=== %s ===\n", filePath)
	fmt.Printf("Words: %d  Characters: %d\n", stats.Words, stats.Chars)
	fmt.Println()
	if len(cs) == 0 {
		fmt.Println("No issues found.")
		return
	}
	printCorrections(os.Stdout, cs, "")
}

func cmdFix() {
	fs := flag.NewFlagSet("fix", flag.ExitOnError)
	g := addGlobalFlags(fs)
	output := fs.String("o", "", "Output file (default: overwrite <file>)")
	yes := fs.Bool("yes", false, "Accept even when corrections exceed the remaining allowance")
	showDiff := fs.Bool("diff", false, "Print the changes instead of writing them")
	fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: gobengali fix <file> [-o output] [-yes] [-diff]")
		os.Exit(1)
	}
	filePath := fs.Arg(0)
	if *output == "" {
		*output = filePath
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}
	original := string(data)

	a := mustApp(g)
	defer a.Close()

	ctl, err := a.analyzeOnce(original)
	if err != nil {
		a.Close()
		fmt.Fprintf(os.Stderr, "Error analyzing %s: %v\n", filePath, err)
		os.Exit(1)
	}
	defer ctl.Close()

	if ctl.Document().Pending() == 0 {
		fmt.Println("No issues found.")
		return
	}

	confirm := func(pending, remaining int) bool {
		if *yes {
			return true
		}
		return askYesNo(fmt.Sprintf("%d corrections pending but only %d accepts left today. Apply the first %d? (y/N) ",
			pending, remaining, remaining))
	}

	res, err := ctl.AcceptAll(context.Background(), confirm)
	switch {
	case errors.Is(err, document.ErrLimitReached):
		fmt.Fprintln(os.Stderr, "Daily accept limit reached. Upgrade to pro or try again tomorrow.")
		ctl.Close()
		a.Close()
		os.Exit(1)
	case errors.Is(err, document.ErrDeclined):
		fmt.Println("Nothing applied.")
		return
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error applying corrections: %v\n", err)
		ctl.Close()
		a.Close()
		os.Exit(1)
	}

	fixed := ctl.Document().Text()
	if *showDiff {
		printDiff(original, fixed)
	} else if err := writeAtomic(*output, fixed); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *output, err)
		ctl.Close()
		a.Close()
		os.Exit(1)
	}

	fmt.Printf("Applied %d corrections", res.Resolved)
	if res.Skipped > 0 {
		fmt.Printf(" (%d without suggestions skipped)", res.Skipped)
	}
	fmt.Println()
	if !*showDiff {
		fmt.Printf("  Written to: %s\n", *output)
	}
	if u := a.tracker.Usage(); !u.Unlimited {
		fmt.Printf("  Accepts today: %d/%d\n", u.AcceptsUsed, u.AcceptsLimit)
	}
}

func cmdTranslit() {
	fs := flag.NewFlagSet("translit", flag.ExitOnError)
	g := addGlobalFlags(fs)
	n := fs.Int("n", 0, "Maximum number of suggestions (default from config)")
	fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: gobengali translit <word> [-n count] [-offline]")
		os.Exit(1)
	}
	word := strings.Join(fs.Args(), " ")

	a := mustApp(g)
	defer a.Close()
	if *n > 0 {
		a.cfg.Transliteration.MaxSuggestions = *n
	}

	tok := translit.ExtractToken(word, len([]rune(word)), a.cfg.Transliteration.Lookback)
	if !tok.Qualifies() {
		fmt.Printf("%q is not a transliteration candidate.\n", tok.Text)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Service.Timeout())
	defer cancel()
	res := a.lookup().Suggest(ctx, tok)
	a.metrics.Suggested(res.Source)

	fmt.Printf("%s (%s, via %s)\n", tok.Text, tok.Class, res.Source)
	for i, s := range res.Suggestions {
		fmt.Printf("  %d. %s  %.2f\n", i+1, s.Text, s.Score)
	}
}

func cmdQuota() {
	fs := flag.NewFlagSet("quota", flag.ExitOnError)
	g := addGlobalFlags(fs)
	history := fs.Int("history", 0, "Also show the last N days (sqlite storage only)")
	asJSON := fs.Bool("json", false, "Print usage as JSON")
	fs.Parse(os.Args[2:])

	a := mustApp(g)
	defer a.Close()

	u := a.tracker.Usage()
	var days []store.Day
	if *history > 0 {
		db, ok := a.store.(*store.SQLiteStore)
		if !ok {
			fmt.Fprintf(os.Stderr, "History needs sqlite storage (configured: %s)\n", a.cfg.Storage.Type)
			a.Close()
			os.Exit(1)
		}
		var err error
		days, err = db.History(context.Background(), a.cfg.Quota.User, *history)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading history: %v\n", err)
			a.Close()
			os.Exit(1)
		}
	}

	if *asJSON {
		out, _ := json.MarshalIndent(struct {
			User    string      `json:"user"`
			Usage   quota.Usage `json:"usage"`
			History []store.Day `json:"history,omitempty"`
		}{a.cfg.Quota.User, u, days}, "", "  ")
		fmt.Println(string(out))
		return
	}

	fmt.Printf("User: %s (%s tier)\n", a.cfg.Quota.User, u.Tier)
	if u.Unlimited {
		fmt.Println("Unlimited usage.")
	} else {
		fmt.Printf("  Words:   %d/%d (%.0f%%)\n", u.WordsUsed, u.WordsLimit, u.WordsPercent)
		fmt.Printf("  Accepts: %d/%d (%.0f%%)\n", u.AcceptsUsed, u.AcceptsLimit, u.AcceptsPercent)
		switch {
		case u.Reached:
			fmt.Println("Daily limit reached. Counters reset at local midnight.")
		case u.Near:
			fmt.Println("Approaching the daily limit.")
		}
	}

	if len(days) > 0 {
		fmt.Println()
		fmt.Println("History:")
		for _, d := range days {
			fmt.Printf("  %s  words %4d  accepts %3d\n", d.Date, d.WordsUsed, d.AcceptsUsed)
		}
	}
}

func cmdHealth() {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	g := addGlobalFlags(fs)
	asJSON := fs.Bool("json", false, "Print the report as JSON")
	fs.Parse(os.Args[2:])

	a := mustApp(g)
	defer a.Close()

	report := a.checker().Report(context.Background())
	if *asJSON {
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
	} else {
		fmt.Printf("Status: %s\n", report.Status)
		for _, name := range slices.Sorted(maps.Keys(report.Components)) {
			r := report.Components[name]
			fmt.Printf("  %-10s %-9s %s", name, r.Status, r.Message)
			if r.Error != "" {
				fmt.Printf(" (%s)", r.Error)
			}
			fmt.Printf(" [%s]\n", r.Duration.Round(time.Millisecond))
		}
	}

	if report.Status == health.StatusUnhealthy {
		a.Close()
		os.Exit(1)
	}
}

// checker registers the probes for the wired components.
func (a *app) checker() *health.Checker {
	c := health.NewChecker()
	c.Register(&health.Component{
		Name:     "service",
		Critical: true,
		Check:    health.ServiceCheck(a.client, a.client.BaseURL()),
		Timeout:  a.cfg.Service.Timeout(),
	})
	if db, ok := a.store.(*store.SQLiteStore); ok {
		c.RegisterFunc("storage", false, health.DatabaseCheck(db.Ping))
	}
	c.RegisterFunc("quota", false, health.QuotaCheck(a.tracker))
	return c
}

func cmdConfig() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: gobengali config <init|show|path> [-config path]")
		os.Exit(1)
	}

	action := os.Args[2]
	fs := flag.NewFlagSet("config "+action, flag.ExitOnError)
	path := fs.String("config", config.ConfigPath(), "Config file")
	fs.Parse(os.Args[3:])

	switch action {
	case "init":
		_, created, err := config.LoadOrCreate(*path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if created {
			fmt.Printf("Wrote default configuration to %s\n", *path)
		} else {
			fmt.Printf("Configuration already exists at %s\n", *path)
		}

	case "show":
		cfg, err := config.Load(*path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		data, err := cfg.Encode()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding config: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(data)
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "\nWarning: %v\n", err)
		}

	case "path":
		fmt.Println(*path)

	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		os.Exit(1)
	}
}

// Helper functions

// printCorrections lists cs numbered from 1, starring the one whose ID is
// active.
func printCorrections(w io.Writer, cs []correction.Correction, active string) {
	for i, c := range cs {
		mark := " "
		if active != "" && c.ID == active {
			mark = "*"
		}
		fmt.Fprintf(w, "%s[%d] %s at %d: %q", mark, i+1, c.Kind, c.Anchor.Offset, c.OriginalText)
		if len(c.Suggestions) > 0 {
			fmt.Fprintf(w, " -> %s", strings.Join(c.Suggestions, ", "))
		}
		fmt.Fprintln(w)
		if c.Message != "" {
			fmt.Fprintf(w, "    %s\n", c.Message)
		}
		if c.Reason != "" {
			fmt.Fprintf(w, "    Why: %s\n", c.Reason)
		}
	}
}

func printDiff(before, after string) {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(before, after, false))
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			fmt.Printf("- %q\n", d.Text)
		case diffmatchpatch.DiffInsert:
			fmt.Printf("+ %q\n", d.Text)
		}
	}
}

func askYesNo(prompt string) bool {
	fmt.Print(prompt)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func writeAtomic(path, content string) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), mode); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
