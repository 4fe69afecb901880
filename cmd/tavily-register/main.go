package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"tavily-register/internal/application/port/output"
	"tavily-register/internal/config"
	"tavily-register/internal/di"
	"tavily-register/internal/engine"
	"tavily-register/internal/infrastructure/logger"
	"tavily-register/internal/infrastructure/store"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		errorColor.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var settings config.Settings

	root := &cobra.Command{
		Use:           "tavily-register",
		Short:         "Automated Tavily signup: register, verify by mail, save the API key",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Missing .env is fine; the environment may be set directly.
			_ = godotenv.Load()
			settings = config.FromEnv()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu(cmd.Context(), &settings)
		},
	}

	root.AddCommand(
		newRunCmd(&settings),
		newBatchCmd(&settings),
		newMailSetupCmd(&settings),
		newRecordsCmd(&settings),
	)
	return root
}

func newRunCmd(settings *config.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one signup session end to end",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), *settings)
		},
	}
}

func newBatchCmd(settings *config.Settings) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run several signup sessions concurrently",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("count must be at least 1, got %d", count)
			}
			return runBatch(cmd.Context(), *settings, count)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 2, "number of concurrent sessions")
	return cmd
}

func newMailSetupCmd(settings *config.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "mail-setup",
		Short: "Log in to the webmail account interactively and persist the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMailSetup(cmd.Context(), *settings)
		},
	}
}

func newRecordsCmd(settings *config.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "records",
		Short: "List previously saved signup records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showRecords(*settings)
		},
	}
}

// runMenu is the interactive front door, for running the tool without
// remembering subcommands.
func runMenu(ctx context.Context, settings *config.Settings) error {
	reader := bufio.NewReader(os.Stdin)
	for {
		headerColor.Println("\ntavily-register")
		fmt.Println("  1) run one signup session")
		fmt.Println("  2) run a batch of sessions")
		fmt.Println("  3) set up the webmail session")
		fmt.Println("  4) show saved records")
		fmt.Println("  0) exit")
		fmt.Print("> ")

		line, err := reader.ReadString('\n')
		if err != nil {
			return nil
		}
		switch strings.TrimSpace(line) {
		case "1":
			if err := runOnce(ctx, *settings); err != nil {
				errorColor.Println(err)
			}
		case "2":
			fmt.Print("how many sessions? > ")
			var n int
			if _, err := fmt.Fscanln(reader, &n); err != nil || n < 1 {
				warnColor.Println("expected a positive number")
				continue
			}
			if err := runBatch(ctx, *settings, n); err != nil {
				errorColor.Println(err)
			}
		case "3":
			if err := runMailSetup(ctx, *settings); err != nil {
				errorColor.Println(err)
			}
		case "4":
			if err := showRecords(*settings); err != nil {
				errorColor.Println(err)
			}
		case "0", "q", "exit":
			return nil
		default:
			warnColor.Println("unknown choice")
		}
	}
}

func runOnce(ctx context.Context, settings config.Settings) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := di.NewContainer(settings)
	if err != nil {
		return err
	}
	defer c.Close()

	res, err := c.Engine.Run(ctx)
	if err != nil {
		if errors.Is(err, output.ErrMailSessionExpired) {
			warnColor.Println("webmail session is missing or expired; run `tavily-register mail-setup` first")
			return nil
		}
		return err
	}
	reportResult(res)
	return nil
}

func runBatch(ctx context.Context, settings config.Settings, count int) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := logger.New(logger.Config{Level: settings.LogLevel, File: settings.LogFile})
	if err != nil {
		return err
	}
	defer log.Sync()

	// Each session gets its own container so browser crashes and cookie
	// state stay isolated; only the key store file is shared.
	build := func(ctx context.Context) (*engine.Engine, func(), error) {
		c, err := di.NewContainer(settings)
		if err != nil {
			return nil, nil, err
		}
		return c.Engine, c.Close, nil
	}

	results, err := engine.RunBatch(ctx, count, build, log)
	for _, res := range results {
		if res != nil {
			reportResult(res)
		}
	}
	if err != nil {
		if errors.Is(err, output.ErrMailSessionExpired) {
			warnColor.Println("webmail session is missing or expired; run `tavily-register mail-setup` first")
			return nil
		}
		return err
	}
	return nil
}

// runMailSetup opens the webmail login page, waits for a manual login
// and persists the resulting cookies for later headless runs.
func runMailSetup(ctx context.Context, settings config.Settings) error {
	// Login is manual, so the browser must be visible.
	settings.Headless = false

	c, err := di.NewContainer(settings)
	if err != nil {
		return err
	}
	defer c.Close()

	page, err := c.Browser.NewPage(ctx)
	if err != nil {
		return err
	}
	defer page.Close()

	if err := page.Navigate(ctx, settings.MailboxURL); err != nil {
		return err
	}

	headerColor.Println("log in to the webmail account in the opened browser")
	fmt.Print("press Enter when done... ")
	if _, err := bufio.NewReader(os.Stdin).ReadString('\n'); err != nil {
		return err
	}

	if err := c.Mailbox.PersistSession(); err != nil {
		return err
	}
	successColor.Println("webmail session saved")

	if prefix, err := c.Jar.EmailPrefix(); err == nil {
		fmt.Printf("detected account prefix: %s\n", prefix)
		if prefix != settings.EmailPrefix {
			warnColor.Printf("EMAIL_PREFIX is %q; consider setting it to %q\n", settings.EmailPrefix, prefix)
		}
	}
	return nil
}

func showRecords(settings config.Settings) error {
	records, err := store.NewFileStore(settings.KeysFile).ReadAll()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no records yet")
		return nil
	}
	for _, rec := range records {
		fmt.Printf("%s  %s  %s\n",
			rec.CompletedAt.Format("2006-01-02 15:04"),
			rec.Address,
			rec.Token)
	}
	return nil
}

func reportResult(res *engine.Result) {
	if res.Succeeded() {
		successColor.Printf("signup complete: %s\n", res.Record.Address)
		fmt.Printf("api key: %s\n", res.Record.Token)
		if res.StoreErr != nil {
			warnColor.Printf("key was NOT saved to file: %v\n", res.StoreErr)
		}
		return
	}
	errorColor.Printf("signup failed at %s phase\n", res.FailedAt)
	if res.LastDiag != nil && res.LastDiag.Reason != "" {
		fmt.Printf("reason: %s\n", res.LastDiag.Reason)
	}
}
