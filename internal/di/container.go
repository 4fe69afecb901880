// Package di wires the engine to its infrastructure: browser, webmail
// client, result store, diagnostics sink and logger, all from one
// Settings value.
package di

import (
	"fmt"

	"go.uber.org/zap"

	"tavily-register/internal/config"
	"tavily-register/internal/engine"
	"tavily-register/internal/infrastructure/browser/rodwrapper"
	"tavily-register/internal/infrastructure/cookies"
	"tavily-register/internal/infrastructure/diagnostics"
	"tavily-register/internal/infrastructure/logger"
	"tavily-register/internal/infrastructure/mailbox"
	"tavily-register/internal/infrastructure/store"
)

type Container struct {
	Settings config.Settings
	Logger   *zap.Logger
	Browser  *rodwrapper.Browser
	Jar      *cookies.Jar
	Mailbox  *mailbox.Webmail
	Store    *store.FileStore
	Diags    *diagnostics.DirSink
	Engine   *engine.Engine
}

func NewContainer(cfg config.Settings) (*Container, error) {
	log, err := logger.New(logger.Config{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	browser, err := rodwrapper.NewBrowser(rodwrapper.Config{
		Headless:   cfg.Headless,
		SlowMotion: cfg.SlowMotion,
		Timeout:    cfg.BrowserTimeout,
		NoSandbox:  true,
	})
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("create browser: %w", err)
	}

	jar := cookies.NewJar(cfg.CookiesFile, cfg.CookieTTL)

	webmail, err := mailbox.NewWebmail(browser, jar, mailbox.Config{
		MailboxURL:   cfg.MailboxURL,
		SenderMatch:  cfg.MailSenderMatch,
		LinkPattern:  cfg.MailLinkPattern,
		PollInterval: cfg.MailPollInterval,
	}, log)
	if err != nil {
		browser.Close()
		_ = log.Sync()
		return nil, fmt.Errorf("create webmail client: %w", err)
	}

	fileStore := store.NewFileStore(cfg.KeysFile)
	diags := diagnostics.NewDirSink(cfg.DiagnosticsDir, log)

	eng, err := engine.New(cfg, browser, webmail, fileStore, diags, log)
	if err != nil {
		webmail.Close()
		browser.Close()
		_ = log.Sync()
		return nil, fmt.Errorf("create engine: %w", err)
	}

	return &Container{
		Settings: cfg,
		Logger:   log,
		Browser:  browser,
		Jar:      jar,
		Mailbox:  webmail,
		Store:    fileStore,
		Diags:    diags,
		Engine:   eng,
	}, nil
}

func (c *Container) Close() {
	if c.Mailbox != nil {
		c.Mailbox.Close()
	}
	if c.Browser != nil {
		c.Browser.Close()
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}
