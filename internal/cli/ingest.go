package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valyala/fastjson"

	"github.com/coffersTech/logwindow/internal/capture"
	"github.com/coffersTech/logwindow/internal/client"
	"github.com/coffersTech/logwindow/internal/config"
	"github.com/coffersTech/logwindow/internal/model"
)

// maxLineSize bounds one input line.
const maxLineSize = 1 << 20

type ingestOptions struct {
	server    string
	token     string
	host      string
	batchSize int
}

func newIngestCmd(opts *rootOptions) *cobra.Command {
	o := &ingestOptions{}

	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Push log lines from a file or stdin into a running log window",
		Long: `Push log lines from a file or standard input into a running log window.

Lines holding a JSON object are read with the ingest field names
(timestamp, level, logger, message, exception, properties, ...). Any other
non-empty line becomes a message-only event.

Examples:
  tail -f app.log | logwindow ingest
  logwindow ingest --server http://10.0.0.5:8088 events.jsonl`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := opts.loadViper(cmd, nil)
			if err != nil {
				return err
			}
			if o.server == "" {
				o.server = serverURL(v.GetString(config.KeyHTTPAddr))
			}
			if o.token == "" {
				o.token = v.GetString(config.KeyClientToken)
			}
			if o.host == "" {
				o.host = v.GetString(config.KeyHost)
			}

			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return runIngest(cmd, o, in)
		},
	}

	cmd.Flags().StringVarP(&o.server, "server", "s", "", "management API base URL (default derived from http.addr)")
	cmd.Flags().StringVar(&o.token, "token", "", "API token (env LOGWINDOW_CLIENT_TOKEN)")
	cmd.Flags().StringVar(&o.host, "host", "", "host name for events that carry none (default: detected)")
	cmd.Flags().IntVar(&o.batchSize, "batch-size", 100, "events per request")

	return cmd
}

func runIngest(cmd *cobra.Command, opts *ingestOptions, in io.Reader) error {
	norm := capture.NewNormalizer(capture.WithHost(opts.host))
	fwd := client.NewForwarder(client.New(opts.server, opts.token), client.ForwarderOptions{
		BatchSize: opts.batchSize,
		Block:     true,
	})

	var p fastjson.Parser
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	read := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fwd.Append(parseLine(&p, norm, line))
		read++
	}
	fwd.Shutdown()

	fmt.Fprintf(cmd.ErrOrStderr(), "read %d, sent %d, dropped %d\n", read, fwd.Sent(), fwd.Dropped())
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if fwd.Dropped() > 0 {
		return fmt.Errorf("%d events were not delivered to %s", fwd.Dropped(), opts.server)
	}
	return nil
}

func parseLine(p *fastjson.Parser, norm *capture.Normalizer, line string) *model.LogEvent {
	if strings.HasPrefix(line, "{") {
		if v, err := p.Parse(line); err == nil && v.Type() == fastjson.TypeObject {
			return norm.FromJSON(v)
		}
	}
	return norm.FromLine(line)
}
