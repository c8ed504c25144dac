package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"clipmix/internal/config"
	"clipmix/internal/domain"
	"clipmix/internal/jobs"
	"clipmix/internal/logging"
	"clipmix/internal/pipeline"
	"clipmix/internal/probe"
	"clipmix/internal/session"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	settingsOnce sync.Once
	settings     domain.Settings
	settingsErr  error
	logger       hclog.Logger
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) store() *config.TOMLStore {
	var path string
	if c.configFlag != nil {
		path = strings.TrimSpace(*c.configFlag)
	}
	return config.NewTOMLStore(path)
}

func (c *commandContext) ensureSettings() (domain.Settings, error) {
	c.settingsOnce.Do(func() {
		settings, err := c.store().Load()
		if err != nil {
			c.settingsErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			settings.LogLevel = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
		}
		c.settings = settings
		c.logger = logging.New(settings, logging.Options{})
	})
	return c.settings, c.settingsErr
}

// openSession builds a session, initializes its engine and reports stage
// events on out until the returned cleanup runs.
func (c *commandContext) openSession(ctx context.Context, out io.Writer, presenter *filePresenter) (*session.Session, func(), error) {
	settings, err := c.ensureSettings()
	if err != nil {
		return nil, nil, err
	}

	sess, err := session.New(settings, c.logger, func(prober *probe.Prober) pipeline.Presenter {
		presenter.prober = prober
		return presenter
	})
	if err != nil {
		return nil, nil, err
	}

	colorize := shouldColorize(out)
	sess.Events.Listen(func(event jobs.Event) {
		if line, ok := renderEvent(event, colorize); ok {
			fmt.Fprintln(out, line)
		}
	})

	cleanup := func() {
		sess.Events.Listen(nil)
		if err := sess.Close(); err != nil {
			c.logger.Warn("close session", "error", err)
		}
	}

	unsubscribe, err := sess.Engine.OnDownload(downloadReporter(out, colorize))
	if err == nil {
		defer unsubscribe()
	}
	if err := sess.Initialize(ctx); err != nil {
		cleanup()
		return nil, nil, userFacing(err)
	}
	return sess, cleanup, nil
}

// userFacing keeps the underlying error for the log and shows the notification text.
func userFacing(err error) error {
	return fmt.Errorf("%s: %w", strings.Join(pipeline.UserMessages(err), "; "), err)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
