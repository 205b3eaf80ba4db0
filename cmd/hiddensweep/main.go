// hiddensweep - command-line client for the hidden-file cleanup service.
//
// Sub-commands:
//
//	hiddensweep login                 Authenticate and save the session
//	hiddensweep register              Create an account and log in
//	hiddensweep logout                Revoke and clear the saved session
//	hiddensweep whoami                Show the current session
//	hiddensweep scan <folder>         Scan a folder for hidden files
//	hiddensweep delete <path> [...]   Delete files found by a scan
//	hiddensweep history               Show past scans
//	hiddensweep stats                 Show aggregate cleanup statistics
//
// Configuration comes from HIDDENSWEEP_* environment variables (server
// URL, timeout, retry policy, state directory, log level).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/hiddensweep/hiddensweep/pkg/api"
	"github.com/hiddensweep/hiddensweep/pkg/config"
	"github.com/hiddensweep/hiddensweep/pkg/credstore"
	"github.com/hiddensweep/hiddensweep/pkg/logging"
	"github.com/hiddensweep/hiddensweep/pkg/notify"
	"github.com/hiddensweep/hiddensweep/pkg/retry"
	"github.com/hiddensweep/hiddensweep/pkg/scan"
	"github.com/hiddensweep/hiddensweep/pkg/session"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "login":
		cmdLogin(args)
	case "register":
		cmdRegister(args)
	case "logout":
		cmdLogout(args)
	case "whoami":
		cmdWhoami(args)
	case "scan":
		cmdScan(args)
	case "delete":
		cmdDelete(args)
	case "history":
		cmdHistory(args)
	case "stats":
		cmdStats(args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: hiddensweep <login|register|logout|whoami|scan|delete|history|stats> [args]")
}

// app wires the stores together. Dependencies are explicit: the session
// store is the API client's token source and 401 hook, the notification
// store is its failure sink.
type app struct {
	cfg           *config.Config
	client        *api.Client
	notifications *notify.Store
	session       *session.Store
	scans         *scan.Store
}

func newApp() *app {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	client := api.New(api.Config{
		BaseURL: cfg.ServerURL,
		Timeout: cfg.Timeout,
		RetryConfig: retry.Config{
			MaxAttempts: cfg.RetryAttempts,
			InitialWait: cfg.RetryDelay,
			MaxWait:     10 * cfg.RetryDelay,
			Multiplier:  2.0,
			Jitter:      0.1,
		},
	})

	notifications := notify.NewStore()
	client.SetNotifier(notifications)

	creds, err := credstore.New(cfg.StateDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	return &app{
		cfg:           cfg,
		client:        client,
		notifications: notifications,
		session:       session.NewStore(client, creds),
		scans:         scan.NewStore(client, notifications),
	}
}

// restoreSession initializes the session and exits unless authenticated.
func (a *app) restoreSession(ctx context.Context) {
	a.session.Initialize(ctx)
	if !a.session.IsAuthenticated() {
		fmt.Fprintln(os.Stderr, "Not logged in. Run 'hiddensweep login' first.")
		os.Exit(1)
	}
	if a.session.IsDegraded() {
		fmt.Fprintln(os.Stderr, "Warning: could not reach the server; using the saved session.")
	}
}

func cmdLogin(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Account email (prompted when omitted)")
	fs.Parse(args)

	a := newApp()
	defer logging.Sync()

	if *email == "" {
		*email = promptLine("Email: ")
	}
	password := promptPassword("Password: ")

	user, message, err := a.session.Login(context.Background(), *email, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Login failed: %v\n", err)
		os.Exit(1)
	}

	if message != "" {
		fmt.Println(message)
	}
	fmt.Printf("Logged in as %s <%s>.\n", user.Name, user.Email)
}

func cmdRegister(args []string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	name := fs.String("name", "", "Display name (prompted when omitted)")
	email := fs.String("email", "", "Account email (prompted when omitted)")
	fs.Parse(args)

	a := newApp()
	defer logging.Sync()

	if *name == "" {
		*name = promptLine("Name: ")
	}
	if *email == "" {
		*email = promptLine("Email: ")
	}
	password := promptPassword("Password: ")

	user, message, err := a.session.Register(context.Background(), *name, *email, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Registration failed: %v\n", err)
		os.Exit(1)
	}

	if message != "" {
		fmt.Println(message)
	}
	fmt.Printf("Registered and logged in as %s <%s>.\n", user.Name, user.Email)
}

func cmdLogout(args []string) {
	flag.NewFlagSet("logout", flag.ExitOnError).Parse(args)

	a := newApp()
	defer logging.Sync()

	a.session.Initialize(context.Background())
	a.session.Logout(context.Background())
	fmt.Println("Logged out.")
}

func cmdWhoami(args []string) {
	flag.NewFlagSet("whoami", flag.ExitOnError).Parse(args)

	a := newApp()
	defer logging.Sync()

	a.session.Initialize(context.Background())
	if !a.session.IsAuthenticated() {
		fmt.Println("Not logged in.")
		return
	}

	user := a.session.User()
	fmt.Printf("%s <%s>\n", user.Name, user.Email)
	if a.session.IsDegraded() {
		fmt.Println("(session restored from cache; server unreachable)")
	}
	if exp, ok := session.TokenExpiry(a.session.Token()); ok {
		fmt.Printf("Token expires %s\n", exp.Format(time.RFC3339))
	}
}

func cmdScan(args []string) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	deleteAll := fs.Bool("delete", false, "Delete every found file after the scan (asks for confirmation)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: hiddensweep scan [-delete] <folder>")
		os.Exit(1)
	}
	folder := fs.Arg(0)

	a := newApp()
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.restoreSession(ctx)

	done := make(chan error, 1)
	go func() {
		done <- a.scans.ScanFolder(ctx, folder)
	}()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			fmt.Printf("\rScanning %s... %d%%\n", folder, a.scans.Progress())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
				os.Exit(1)
			}
			printFiles(a)
			if *deleteAll {
				deleteFound(ctx, a)
			}
			return
		case <-ticker.C:
			fmt.Printf("\rScanning %s... %d%%", folder, a.scans.Progress())
		}
	}
}

func printFiles(a *app) {
	files := a.scans.Files()
	if len(files) == 0 {
		fmt.Println("No hidden files found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tSIZE\tMODIFIED")
	for _, f := range files {
		fmt.Fprintf(w, "%s\t%s\t%s\n", f.Path, scan.FormatFileSize(f.Size),
			f.LastModified.Format("2006-01-02 15:04"))
	}
	w.Flush()
	fmt.Printf("%d files, %s total\n", len(files), scan.FormatFileSize(a.scans.TotalSize()))
}

func deleteFound(ctx context.Context, a *app) {
	a.scans.SelectAllFiles()
	selected := a.scans.Selected()
	if len(selected) == 0 {
		return
	}

	answer := promptLine(fmt.Sprintf("Delete %d files? [y/N] ", len(selected)))
	if !strings.EqualFold(answer, "y") {
		fmt.Println("Aborted.")
		return
	}

	count, err := a.scans.DeleteFiles(ctx, selected)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted %d files.\n", count)
	printWarnings(a)
}

func cmdDelete(args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: hiddensweep delete <path> [path...]")
		os.Exit(1)
	}

	a := newApp()
	defer logging.Sync()

	ctx := context.Background()
	a.restoreSession(ctx)

	count, err := a.scans.DeleteFiles(ctx, fs.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted %d files.\n", count)
	printWarnings(a)
}

func cmdHistory(args []string) {
	flag.NewFlagSet("history", flag.ExitOnError).Parse(args)

	a := newApp()
	defer logging.Sync()

	ctx := context.Background()
	a.restoreSession(ctx)

	scans, err := a.scans.History(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(scans) == 0 {
		fmt.Println("No scans yet.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tFOLDER\tFILES\tSIZE")
	for _, rec := range scans {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			rec.ScannedAt.Format("2006-01-02 15:04"), rec.FolderPath,
			rec.FileCount, scan.FormatFileSize(rec.TotalSize))
	}
	w.Flush()
}

func cmdStats(args []string) {
	flag.NewFlagSet("stats", flag.ExitOnError).Parse(args)

	a := newApp()
	defer logging.Sync()

	ctx := context.Background()
	a.restoreSession(ctx)

	stats, err := a.scans.Stats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Scans run:     %d\n", stats.TotalScans)
	fmt.Printf("Files deleted: %d\n", stats.TotalFilesDeleted)
	fmt.Printf("Space freed:   %s\n", scan.FormatFileSize(stats.TotalBytesFreed))
}

// printWarnings surfaces queued warnings (e.g. a partial delete) on the
// terminal.
func printWarnings(a *app) {
	for _, n := range a.notifications.List() {
		fmt.Fprintf(os.Stderr, "%s: %s\n", n.Severity, n.Message)
	}
	a.notifications.ClearAll()
}

func promptLine(prompt string) string {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func promptPassword(prompt string) string {
	fmt.Print(prompt)
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
		os.Exit(1)
	}
	return string(passwordBytes)
}
