package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/custompc-tech/storefront/backend/internal/clock"
	"github.com/custompc-tech/storefront/backend/internal/service/chat"
	"github.com/custompc-tech/storefront/backend/internal/service/review"
	"github.com/custompc-tech/storefront/backend/internal/service/submission"
	"github.com/custompc-tech/storefront/backend/internal/storage/kv"
	"github.com/custompc-tech/storefront/backend/internal/storage/local"
)

// ago renders an epoch-millisecond timestamp relative to now.
func ago(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return humanize.Time(time.UnixMilli(ms))
}

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

// withStore opens the store, runs fn and closes the store.
func withStore(opts *options, fn func(cmd *cobra.Command, store kv.Store, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		store, err := opts.open()
		if err != nil {
			return err
		}
		defer store.Close()
		return fn(cmd, store, args)
	}
}

func newChatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chats",
		Short: "List active chat sessions",
		Args:  cobra.NoArgs,
		RunE: withStore(opts, func(cmd *cobra.Command, store kv.Store, _ []string) error {
			backend := chat.NewLocalBackend(local.New(store), clock.Real())
			sessions, err := backend.ActiveChats(cmd.Context())
			if err != nil {
				return err
			}
			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tUSER\tSOURCE\tMESSAGES\tLAST ACTIVITY")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.UserName, s.Source, humanize.Comma(int64(len(s.Messages))), ago(s.LastActivity))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d active chat(s)\n", len(sessions))
			return nil
		}),
	}
}

func newPresenceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "presence",
		Short: "List tabs seen within the active window",
		Args:  cobra.NoArgs,
		RunE: withStore(opts, func(cmd *cobra.Command, store kv.Store, _ []string) error {
			backend := chat.NewLocalBackend(local.New(store), clock.Real())
			users, err := backend.ActiveUsers(cmd.Context())
			if err != nil {
				return err
			}
			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "SESSION\tUSER\tADMIN\tPAGE\tLAST SEEN")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", u.SessionID, u.Username, u.IsAdmin, u.Page, ago(u.LastSeen))
			}
			return w.Flush()
		}),
	}
}

func newVisitorsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "visitors",
		Short: "List recorded visitors",
		Args:  cobra.NoArgs,
		RunE: withStore(opts, func(cmd *cobra.Command, store kv.Store, _ []string) error {
			backend := chat.NewLocalBackend(local.New(store), clock.Real())
			visitors, err := backend.Visitors(cmd.Context())
			if err != nil {
				return err
			}
			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "VISITOR\tRETURNING\tPAGES\tLAST PAGE\tUPDATED")
			for _, v := range visitors {
				fmt.Fprintf(w, "%s\t%t\t%d\t%s\t%s\n", v.VisitorID, v.IsReturning, len(v.Pages), v.LastPage, ago(v.LastUpdated))
			}
			return w.Flush()
		}),
	}
}

func newReviewsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reviews <build-id>",
		Short: "Show the visible reviews of a build",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(opts, func(cmd *cobra.Command, store kv.Store, args []string) error {
			summary := review.NewService(local.New(store), clock.Real()).List(cmd.Context(), args[0])
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d review(s), average %.1f\n", args[0], summary.Count, summary.Average)
			w := table(out)
			fmt.Fprintln(w, "ID\tAUTHOR\tRATING\tWHEN\tTEXT")
			for _, r := range summary.Reviews {
				fmt.Fprintf(w, "%s\t%s\t%.1f\t%s\t%s\n", r.ID, r.Author, r.Rating, ago(r.Timestamp), truncate(r.Text, 48))
			}
			return w.Flush()
		}),
	}
}

func newSubmissionsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "submissions",
		Short: "List pending contact and quote submissions",
		Args:  cobra.NoArgs,
		RunE: withStore(opts, func(cmd *cobra.Command, store kv.Store, _ []string) error {
			pending := submission.NewService(nil, local.New(store), clock.Real()).Pending(cmd.Context())
			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tTYPE\tNAME\tEMAIL\tSUBMITTED\tERROR")
			for _, s := range pending {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", s.ID, s.Type, s.Name, s.Email, ago(s.SubmittedAt), s.Error)
			}
			return w.Flush()
		}),
	}
}

func newKeysCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "keys [prefix]",
		Short: "List stored keys with their value sizes",
		Args:  cobra.MaximumNArgs(1),
		RunE: withStore(opts, func(cmd *cobra.Command, store kv.Store, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			keys, err := store.Keys(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			var total uint64
			w := table(cmd.OutOrStdout())
			for _, k := range keys {
				value, err := store.Get(cmd.Context(), k)
				if err != nil {
					return fmt.Errorf("read %s: %w", k, err)
				}
				total += uint64(len(value))
				fmt.Fprintf(w, "%s\t%s\n", k, humanize.Bytes(uint64(len(value))))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s key(s), %s\n", humanize.Comma(int64(len(keys))), humanize.Bytes(total))
			return nil
		}),
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
