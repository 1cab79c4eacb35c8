package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AtRiskMedia/tractcall-go/internal/application/container"
	"github.com/AtRiskMedia/tractcall-go/internal/application/dialogue"
	"github.com/AtRiskMedia/tractcall-go/internal/application/startup"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/tractcall-go/pkg/config"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	var (
		tenantID  string
		sessionID string
		verbose   bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the agent on stdin, as a caller would",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewDiscard()
			if verbose {
				l, err := startup.NewLogger()
				if err != nil {
					return err
				}
				defer l.Close()
				logger = l
			}
			if sessionID == "" {
				sessionID = security.GenerateULID()
			}
			return runChat(cmd.Context(), logger, tenantID, sessionID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&tenantID, "tenant", "t", config.DefaultTenantID, "tenant to talk to")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id (default: a new ULID)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "write service logs to stderr")
	return cmd
}

func runChat(ctx context.Context, logger *logging.ChanneledLogger, tenantID, sessionID string, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := container.NewContainer(ctx, logger, container.Options{WithDatabase: true})
	if err != nil {
		return err
	}
	defer func() {
		c.Orchestrator.CloseSession(ctx, sessionID)
		if err := c.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "close:", err)
		}
		if err := c.TenantManager.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "close tenants:", err)
		}
	}()

	fmt.Fprintf(out, "Connected to tenant %q (session %s). Type your message, or Ctrl-D to hang up.\n", tenantID, sessionID)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		resp, err := c.Orchestrator.HandleUtterance(ctx, sessionID, tenantID, text)
		if err != nil {
			return fmt.Errorf("turn failed: %w", err)
		}
		fmt.Fprintf(out, "agent: %s\n", resp.ResponseText)
		if resp.SideEffects.CalendarLink != "" {
			fmt.Fprintf(out, "       [booked: %s]\n", resp.SideEffects.CalendarLink)
		}
		if resp.Route == dialogue.RouteGoodbye {
			return nil
		}
	}
}
