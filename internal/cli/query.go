package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/coffersTech/logwindow/internal/client"
	"github.com/coffersTech/logwindow/internal/config"
	"github.com/coffersTech/logwindow/internal/model"
	"github.com/coffersTech/logwindow/internal/pkg/filterql"
)

type queryOptions struct {
	server string
	token  string
	levels []string
	before string
	after  string
	text   string
	count  int
	output string
	stats  bool
}

func newQueryCmd(opts *rootOptions) *cobra.Command {
	qo := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query [expression]",
		Short: "Query a running log window",
		Long: `Query a running log window.

The optional expression uses the filter language, e.g.
  level:WARN,ERROR after:"2024-01-02T03:04:05Z" count:20 "connection refused"
Flags are applied on top of the expression.

Examples:
  logwindow query --level ERROR --count 10
  logwindow query 'level:WARN timeout' --server http://10.0.0.5:8088
  logwindow query --stats`,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := opts.loadViper(cmd, nil)
			if err != nil {
				return err
			}
			if qo.server == "" {
				qo.server = serverURL(v.GetString(config.KeyHTTPAddr))
			}
			if qo.token == "" {
				qo.token = v.GetString(config.KeyClientToken)
			}
			return runQuery(cmd, qo, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&qo.server, "server", "s", "", "management API base URL (default derived from http.addr)")
	cmd.Flags().StringVar(&qo.token, "token", "", "API token (env LOGWINDOW_CLIENT_TOKEN)")
	cmd.Flags().StringSliceVarP(&qo.levels, "level", "l", nil, "accepted levels (repeatable or comma separated)")
	cmd.Flags().StringVar(&qo.before, "before", "", "only events strictly before this time (unix millis or RFC 3339)")
	cmd.Flags().StringVar(&qo.after, "after", "", "only events strictly after this time (unix millis or RFC 3339)")
	cmd.Flags().StringVarP(&qo.text, "text", "t", "", "substring to search for")
	cmd.Flags().IntVarP(&qo.count, "count", "n", 0, "maximum number of events (0 for all)")
	cmd.Flags().StringVarP(&qo.output, "output", "o", "text", "output format (text, json)")
	cmd.Flags().BoolVar(&qo.stats, "stats", false, "print buffer statistics instead of events")

	return cmd
}

func runQuery(cmd *cobra.Command, qo *queryOptions, expr string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	c := client.New(qo.server, qo.token)
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	if qo.stats {
		stats, err := c.Stats(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", c.BaseURL, err)
		}
		return enc.Encode(stats)
	}

	filter, err := qo.filter(expr)
	if err != nil {
		return err
	}

	res, err := c.Query(ctx, filter)
	if err != nil {
		return err
	}

	if qo.output == "json" {
		return enc.Encode(res)
	}
	printEvents(out, res.Events)
	return nil
}

func (qo *queryOptions) filter(expr string) (*model.LogFilter, error) {
	filter, err := filterql.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid expression: %w", err)
	}

	for _, l := range qo.levels {
		filter.Levels = append(filter.Levels, strings.ToUpper(l))
	}
	if qo.before != "" {
		ts, err := filterql.ParseTimestamp(qo.before)
		if err != nil {
			return nil, fmt.Errorf("--before: %w", err)
		}
		filter.BeforeTimestamp = &ts
	}
	if qo.after != "" {
		ts, err := filterql.ParseTimestamp(qo.after)
		if err != nil {
			return nil, fmt.Errorf("--after: %w", err)
		}
		filter.AfterTimestamp = &ts
	}
	if qo.text != "" {
		filter.MatchesText = strings.TrimSpace(filter.MatchesText + " " + qo.text)
	}
	if qo.count != 0 {
		filter.Count = qo.count
	}
	return filter, nil
}

// printEvents writes one line per event followed by its exception lines.
func printEvents(w io.Writer, events []*model.LogEvent) {
	for _, e := range events {
		ts := time.UnixMilli(e.Timestamp).UTC().Format("2006-01-02T15:04:05.000Z")
		fmt.Fprintf(w, "%s %-5s [%s] %s - %s", ts, e.Level, e.Thread, e.Logger, e.Message)
		if props := e.PropertiesString(); props != "" {
			fmt.Fprintf(w, " %s", props)
		}
		if e.Host != "" {
			fmt.Fprintf(w, " host=%s", e.Host)
		}
		fmt.Fprintln(w)
		for _, line := range e.Exception {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}

// serverURL turns a listen address such as ":8088" into a base URL.
func serverURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}
