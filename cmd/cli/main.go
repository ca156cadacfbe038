package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"studykit/adapters/tabular"
	"studykit/app"
	"studykit/domain/core"
	"studykit/internal/config"
	"studykit/internal/configexplorer"
	"studykit/internal/container"
	"studykit/internal/monitor"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "studykit",
		Short:         "Download, tag and report on MetricWire EMA studies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newStudiesCmd(),
		newDownloadCmd(),
		newTagCmd(),
		newTimelineCmd(),
		newPayCmd(),
		newExplainCmd(),
		newUploadCmd(),
		newMonitorCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadContainer() (*container.Container, error) {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return container.New(cfg)
}

func studyArg(s string) (core.StudyName, error) {
	return core.ParseStudyName(s)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// output opens path for writing; "-" is stdout.
func output(path string) (*os.File, func() error, error) {
	if path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func newStudiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "studies",
		Short: "List configured and downloaded studies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadContainer()
			if err != nil {
				return err
			}
			studies, err := c.Studies.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range studies {
				fmt.Printf("%-24s configured=%-5t downloaded=%t\n", s.Name, s.Configured, s.Downloaded)
			}
			return nil
		},
	}
}

func newDownloadCmd() *cobra.Command {
	var req app.DownloadRequest

	cmd := &cobra.Command{
		Use:   "download [study]",
		Short: "Download a study's surveys, sessions and responses",
		Long: `Download every survey of a study from MetricWire into data/<study>/.

Credentials default to MW_CLIENT_ID and MW_CLIENT_SECRET.

Example: studykit download pilot --alias-file alias_v2.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := studyArg(args[0])
			if err != nil {
				return err
			}
			c, err := loadContainer()
			if err != nil {
				return err
			}
			req.Study = name
			result, err := c.Imports.Download(cmd.Context(), req, func(done, total int) {
				fmt.Fprintf(os.Stderr, "\rsurveys %d/%d", done, total)
				if done == total {
					fmt.Fprintln(os.Stderr)
				}
			})
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&req.ClientID, "client-id", "", "MetricWire client id")
	cmd.Flags().StringVar(&req.ClientSecret, "client-secret", "", "MetricWire client secret")
	cmd.Flags().StringVar(&req.AliasFile, "alias-file", "", "Alias map under config/download/<study>/ (default: newest)")
	cmd.Flags().StringVar(&req.QuestionFile, "question-file", "", "Question filter under config/download/<study>/ (default: newest)")
	cmd.Flags().BoolVar(&req.DumpJSON, "dump-json", false, "Keep the raw API pages under data/<study>/raw_json")

	return cmd
}

func newTagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tag [study]",
		Short: "Run the tagging workflows over a downloaded study",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := studyArg(args[0])
			if err != nil {
				return err
			}
			c, err := loadContainer()
			if err != nil {
				return err
			}
			result, err := c.Tagging.Tag(cmd.Context(), name)
			if err != nil {
				return err
			}
			fmt.Printf("Tagged %d of %d sessions in %dms\n", result.Tagged, result.Sessions, result.RuntimeMs)
			for _, tc := range result.Counts {
				fmt.Printf("  %-32s %d\n", tc.Tag, tc.Count)
			}
			for _, w := range result.Warnings {
				fmt.Fprintf(os.Stderr, "warning: %s\n", w)
			}
			return nil
		},
	}
}

func newTimelineCmd() *cobra.Command {
	var req app.TimelineRequest
	var tags string
	var allTags bool
	var xlsxPath string

	cmd := &cobra.Command{
		Use:   "timeline [study]",
		Short: "Count tagged sessions per day and tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := studyArg(args[0])
			if err != nil {
				return err
			}
			c, err := loadContainer()
			if err != nil {
				return err
			}
			req.Study = name
			switch {
			case allTags:
				req.Tags = []string{}
			case tags != "":
				req.Tags = splitList(tags)
			}

			if xlsxPath != "" {
				f, closeFn, err := output(xlsxPath)
				if err != nil {
					return err
				}
				if _, err := c.Timeline.Export(cmd.Context(), req, f); err != nil {
					closeFn()
					return err
				}
				return closeFn()
			}

			result, err := c.Timeline.Timeline(cmd.Context(), req)
			if err != nil {
				return err
			}
			for _, p := range result.Points {
				fmt.Printf("%s  %-32s %d\n", p.Day, p.Tag, p.Count)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Range, "range", "all", "week, month or all")
	cmd.Flags().StringVar(&req.Participant, "participant", "", "Only this within-study id")
	cmd.Flags().StringVar(&req.Timezone, "tz", "", "Display timezone (default: DEFAULT_TIMEZONE)")
	cmd.Flags().StringVar(&tags, "tags", "", "Comma-separated tags (default: the study's default tags)")
	cmd.Flags().BoolVar(&allTags, "all-tags", false, "Include every tag")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Write the counts to this workbook instead")

	return cmd
}

func newPayCmd() *cobra.Command {
	var req app.PaymentRequest
	var start, manual, xlsxPath string

	cmd := &cobra.Command{
		Use:   "pay [study] [participant]",
		Short: "Build a participant's compliance and payment report",
		Long: `Build a participant's compliance and payment report.

The participant is a case-insensitive part of exactly one within-study id.

Example: studykit pay pilot 1001 --start 2025-05-01 --manual 2:1`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := studyArg(args[0])
			if err != nil {
				return err
			}
			req.Study = name
			req.Participant = args[1]
			if req.Start, err = core.ParseDate(start); err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			if req.Manual, err = parseManual(manual); err != nil {
				return err
			}
			c, err := loadContainer()
			if err != nil {
				return err
			}

			if xlsxPath != "" {
				f, closeFn, err := output(xlsxPath)
				if err != nil {
					return err
				}
				if _, err := c.Payments.Export(cmd.Context(), req, f); err != nil {
					closeFn()
					return err
				}
				return closeFn()
			}

			report, err := c.Payments.Report(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Study start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&req.RateFile, "rate-file", "", "Rate table under config/payments/<study>/ (default: newest)")
	cmd.Flags().StringVar(&req.SchemaFile, "schema-file", "", "Schema table under config/payments/<study>/ (default: newest)")
	cmd.Flags().StringVar(&req.Timezone, "tz", "", "Report timezone (default: DEFAULT_TIMEZONE)")
	cmd.Flags().StringVar(&manual, "manual", "", "Manual counts as rate_id:count,...")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Write the report to this workbook instead")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func newExplainCmd() *cobra.Command {
	var asMarkdown bool

	cmd := &cobra.Command{
		Use:   "explain [file]",
		Short: "Identify a configuration table and explain it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tabular.ReadTable(args[0])
			if err != nil {
				return err
			}
			explanation := configexplorer.ExplainTable(t)
			if asMarkdown {
				fmt.Print(explanation.Markdown)
				return nil
			}
			return printJSON(explanation)
		},
	}

	cmd.Flags().BoolVar(&asMarkdown, "markdown", false, "Print the markdown explanation only")

	return cmd
}

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload [workflow] [study] [file]",
		Short: "Copy a configuration table into config/<workflow>/<study>/",
		Long: `Copy a configuration table into config/<workflow>/<study>/.

Workflow is download, tagging or payments. A file of the same name is replaced.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := studyArg(args[1])
			if err != nil {
				return err
			}
			body, err := os.ReadFile(args[2])
			if err != nil {
				return err
			}
			c, err := loadContainer()
			if err != nil {
				return err
			}
			saved, err := c.Explorer.Save(args[0], name, filepath.Base(args[2]), body)
			if err != nil {
				return err
			}
			if saved.Overwrote {
				fmt.Fprintf(os.Stderr, "replaced %s\n", saved.Path)
			}
			return printJSON(saved)
		},
	}
}

func newMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Inspect or act on the data retention state",
	}

	open := func() (*monitor.Monitor, error) {
		_ = godotenv.Load()
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		return monitor.Open(cfg.Paths.DataRoot, nil), nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show deadlines and whether data is on disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mon, err := open()
			if err != nil {
				return err
			}
			status, err := mon.Status()
			if err != nil {
				return err
			}
			return printJSON(status)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "extend",
		Short: "Push the auto-delete deadline out by the configured minutes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mon, err := open()
			if err != nil {
				return err
			}
			st, err := mon.ExtendDelete()
			if err != nil {
				return err
			}
			fmt.Printf("Data will be deleted at %s\n", st.DeleteDeadline.Local().Format(time.RFC1123))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Delete all downloaded data now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mon, err := open()
			if err != nil {
				return err
			}
			if _, err := mon.DeleteNow(); err != nil {
				return err
			}
			fmt.Println("Downloaded data deleted")
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Apply the retention rules once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mon, err := open()
			if err != nil {
				return err
			}
			action, err := mon.Check(time.Now())
			if err != nil {
				return err
			}
			if action == monitor.ActionNone {
				fmt.Println("Nothing to do")
				return nil
			}
			fmt.Println(action)
			return nil
		},
	})

	return cmd
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseManual(raw string) (map[string]int, error) {
	counts := make(map[string]int)
	for _, pair := range splitList(raw) {
		var n int
		id, value, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("invalid manual count %q (want rate_id:count)", pair)
		}
		if _, err := fmt.Sscanf(value, "%d", &n); err != nil || n < 0 {
			return nil, fmt.Errorf("invalid manual count %q", pair)
		}
		counts[strings.TrimSpace(id)] = n
	}
	return counts, nil
}
