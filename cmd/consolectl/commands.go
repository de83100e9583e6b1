package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"devconsole/internal/domain"
	"devconsole/internal/infrastructure/consoleclient"
	"devconsole/internal/infrastructure/kafka"
	"devconsole/internal/notification"
	"devconsole/internal/streaming"

	"github.com/spf13/cobra"
)

func newClient(cmd *cobra.Command) (*consoleclient.Client, error) {
	baseURL, _ := cmd.Flags().GetString("url")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return consoleclient.NewClient(consoleclient.Config{BaseURL: baseURL, Timeout: timeout})
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func execCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec [command...]",
		Short: "Execute a console command against a project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, _ := cmd.Flags().GetInt64("project")
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			result, err := client.Execute(cmd.Context(), strings.Join(args, " "), projectID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Output)
			if result.ExitCode != 0 {
				return fmt.Errorf("command exited with code %d", result.ExitCode)
			}
			return nil
		},
	}
	cmd.Flags().Int64P("project", "p", 1, "Project id")
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show executed commands for a project, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, _ := cmd.Flags().GetInt64("project")
			limit, _ := cmd.Flags().GetInt("limit")
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			entries, err := client.History(cmd.Context(), projectID, limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTIME\tEXIT\tCOMMAND")
			for _, entry := range entries {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", entry.ID, entry.Timestamp.Local().Format(time.DateTime), entry.ExitCode, entry.Command)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int64P("project", "p", 1, "Project id")
	cmd.Flags().IntP("limit", "n", 20, "Maximum entries")
	return cmd
}

func pendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List pending transaction requests; the first is the actionable one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			pending, err := client.Pending(cmd.Context())
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no pending transactions")
				return nil
			}
			printTransactions(cmd.OutOrStdout(), pending)
			return nil
		},
	}
}

func statusCmd(use, short string, status domain.TransactionStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid transaction id %q", args[0])
			}
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			tx, err := client.SetStatus(cmd.Context(), id, status)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "transaction %d %s: %s\n", tx.ID, tx.Status, tx.Details)
			return nil
		},
	}
}

func projectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects and their quick commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			withCommands, _ := cmd.Flags().GetBool("commands")
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			projects, err := client.Projects(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, project := range projects {
				lastBuild := "never"
				if project.LastBuild != nil {
					lastBuild = project.LastBuild.Local().Format(time.DateTime)
				}
				fmt.Fprintf(out, "%d  %s  (%s)  %s  last build: %s\n", project.ID, project.Name, project.Framework, project.Path, lastBuild)
				if !withCommands {
					continue
				}
				commands, err := client.QuickCommands(cmd.Context(), project.ID)
				if err != nil {
					return err
				}
				for _, quick := range commands {
					fmt.Fprintf(out, "    %-36s %s\n", quick.Command, quick.Description)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolP("commands", "c", false, "Include quick commands")
	return cmd
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream notification alerts until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			size, _ := cmd.Flags().GetInt("feed")
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()

			feed := notification.NewFeed(size)
			out := cmd.OutOrStdout()
			return client.Watch(ctx, func(event domain.Notification) error {
				if event.Type == domain.NotificationTypeConnection {
					fmt.Fprintln(out, event.Message)
					return nil
				}
				recorded, interrupt := feed.Receive(event)
				if !recorded {
					return nil
				}
				marker := " "
				if interrupt {
					marker = "!"
				}
				fmt.Fprintf(out, "%s %s [%s] %s: %s\n", marker, event.Timestamp.Local().Format(time.TimeOnly), event.Severity, event.Type, event.Message)
				return nil
			})
		},
	}
	cmd.Flags().Int("feed", notification.DefaultFeedSize, "Number of recent alerts kept")
	return cmd
}

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail the audit event topic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			brokers, _ := cmd.Flags().GetStringSlice("brokers")
			topic, _ := cmd.Flags().GetString("topic")
			group, _ := cmd.Flags().GetString("group")
			if len(brokers) == 0 {
				return errors.New("at least one broker is required")
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()

			out := cmd.OutOrStdout()
			return kafka.Tail(ctx, kafka.ConsumerConfig{Brokers: brokers, Topic: topic, GroupID: group},
				func(ctx context.Context, msg streaming.Message) error {
					printEvent(out, msg)
					return nil
				})
		},
	}
	cmd.Flags().StringSlice("brokers", splitList(os.Getenv("KAFKA_BROKERS")), "Kafka brokers")
	cmd.Flags().String("topic", envOr("KAFKA_TOPIC", "devconsole-events"), "Audit topic")
	cmd.Flags().String("group", envOr("KAFKA_GROUP_ID", "devconsole-tail"), "Consumer group id")
	return cmd
}

func printTransactions(out io.Writer, txs []domain.TransactionRequest) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROJECT\tNETWORK\tCONTRACT\tGAS\tCREATED")
	for _, tx := range txs {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s @ %s\t%s\n", tx.ID, tx.ProjectID, tx.Network, tx.ContractName, tx.GasLimit, tx.GasPrice, tx.Timestamp.Local().Format(time.DateTime))
	}
	_ = w.Flush()
}

func printEvent(out io.Writer, msg streaming.Message) {
	ts := msg.OccurredAt.Local().Format(time.DateTime)
	switch {
	case msg.History != nil:
		fmt.Fprintf(out, "%s %s project=%d exit=%d %q\n", ts, msg.Type, msg.ProjectID, msg.History.ExitCode, msg.History.Command)
	case msg.Transaction != nil:
		fmt.Fprintf(out, "%s %s project=%d id=%d status=%s %s\n", ts, msg.Type, msg.ProjectID, msg.Transaction.ID, msg.Transaction.Status, msg.Transaction.Details)
	default:
		fmt.Fprintf(out, "%s %s project=%d\n", ts, msg.Type, msg.ProjectID)
	}
}

func splitList(raw string) []string {
	var values []string
	for _, item := range strings.Split(raw, ",") {
		if value := strings.TrimSpace(item); value != "" {
			values = append(values, value)
		}
	}
	return values
}
