package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/reelkit/internal/api"
	"github.com/kalambet/reelkit/internal/command"
	"github.com/kalambet/reelkit/internal/config"
	"github.com/kalambet/reelkit/internal/dispatch"
	"github.com/kalambet/reelkit/internal/store"
	"github.com/kalambet/reelkit/internal/video"
)

const replyHint = "回复「拆解 1,3」拆解视频，「仿写 2」生成仿写脚本，「原创 主题」生成原创脚本"

// --- instructions ---

var runCmd = &cobra.Command{
	Use:   "run <instruction...>",
	Short: "Execute a free-text instruction",
	Long: `Execute a free-text instruction against the current queue.

Examples:
  reelkit run 拆解 1,3
  reelkit run 仿写 2 --product NoteFlow
  reelkit run "原创：早起的十个习惯"
  reelkit run --remote decompose 1 2`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		quiet, _ := cmd.Flags().GetBool("quiet")

		if remote, _ := cmd.Flags().GetBool("remote"); remote {
			product, _ := cmd.Flags().GetString("product")
			return runRemote(cmd, api.CommandRequest{Text: text, Product: product}, quiet)
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.dispatcherFor(cmd)
		if err != nil {
			return err
		}
		res, err := d.ParseAndExecute(cmd.Context(), text)
		if err != nil {
			return err
		}
		return reportResult(cmd.OutOrStdout(), res, quiet)
	},
}

func runRemote(cmd *cobra.Command, req api.CommandRequest, quiet bool) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}
	resp, err := client.post(cmd.Context(), "/commands", req)
	if err != nil {
		return err
	}
	var res dispatch.Result
	if err := decodeJSON(resp, &res, http.StatusUnprocessableEntity); err != nil {
		return err
	}
	return reportResult(cmd.OutOrStdout(), &res, quiet)
}

var decomposeCmd = &cobra.Command{
	Use:   "decompose <index...>",
	Short: "Decompose queue entries by 1-based index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var indices []int
		seen := make(map[int]bool)
		for _, arg := range args {
			for _, part := range strings.Split(arg, ",") {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}
				n, err := strconv.Atoi(part)
				if err != nil {
					return fmt.Errorf("invalid index %q", part)
				}
				if !seen[n] {
					seen[n] = true
					indices = append(indices, n)
				}
			}
		}
		if len(indices) == 0 {
			return fmt.Errorf("at least one index is required")
		}
		return execute(cmd, command.Operation{Kind: command.Decompose, Indices: indices})
	},
}

var imitateCmd = &cobra.Command{
	Use:   "imitate <index>",
	Short: "Write a script imitating one queue entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(strings.TrimSpace(args[0]))
		if err != nil {
			return fmt.Errorf("invalid index %q", args[0])
		}
		return execute(cmd, command.Operation{Kind: command.Imitate, Index: n})
	},
}

var originateCmd = &cobra.Command{
	Use:   "originate <topic...>",
	Short: "Write an original script on a topic from stored decompositions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topic := strings.TrimSpace(strings.Join(args, " "))
		if topic == "" {
			return fmt.Errorf("topic is required")
		}
		return execute(cmd, command.Operation{Kind: command.Originate, Topic: topic})
	},
}

// execute runs an already-structured operation locally.
func execute(cmd *cobra.Command, op command.Operation) error {
	quiet, _ := cmd.Flags().GetBool("quiet")

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	d, err := a.dispatcherFor(cmd)
	if err != nil {
		return err
	}

	var q *video.Queue
	if op.Kind != command.Originate {
		q, err = a.store.LoadQueue()
		if err != nil && !errors.Is(err, store.ErrNoQueue) {
			return err
		}
	}

	printStep("%s", op.Kind)
	res, err := d.Execute(cmd.Context(), op, q)
	if err != nil {
		return err
	}
	return reportResult(cmd.OutOrStdout(), res, quiet)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>",
	Short: "Decompose a single video by share URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		quiet, _ := cmd.Flags().GetBool("quiet")

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		printStep("analyzing %s", args[0])
		res, err := a.dispatcher.AnalyzeURL(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return reportResult(cmd.OutOrStdout(), res, quiet)
	},
}

func init() {
	runCmd.Flags().Bool("remote", false, "send the instruction to a running server")
	for _, c := range []*cobra.Command{runCmd, decomposeCmd, imitateCmd, originateCmd, analyzeCmd} {
		c.Flags().BoolP("quiet", "q", false, "do not print the generated text")
	}
	for _, c := range []*cobra.Command{runCmd, imitateCmd, originateCmd} {
		c.Flags().String("product", "", "product to promote (default: catalog default)")
	}
}

// --- queue ---

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect or replace the daily queue snapshot",
}

type queueRow struct {
	Index       int     `json:"index"`
	EngagementK float64 `json:"engagement_k"`
	video.Entry
}

var queueShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List the queue with engagement index",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		q, err := a.store.LoadQueue()
		if err != nil {
			return err
		}

		videos := q.Videos
		if limit > 0 && limit < len(videos) {
			videos = videos[:limit]
		}

		out := cmd.OutOrStdout()
		if asJSON {
			rows := make([]queueRow, len(videos))
			for i, e := range videos {
				rows[i] = queueRow{Index: i + 1, EngagementK: e.Index(), Entry: e}
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}

		if len(videos) == 0 {
			printWarning("queue %s is empty", q.Date)
			return nil
		}

		rows := make([][]string, 0, len(videos))
		for i, e := range videos {
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				truncate(e.Title, 28),
				truncate(e.Author, 12),
				strconv.FormatInt(e.Likes, 10),
				strconv.FormatInt(e.Comments, 10),
				strconv.FormatInt(e.Shares, 10),
				fmt.Sprintf("%.1fK", e.Index()),
				e.VideoID,
			})
		}
		fmt.Fprintf(out, "队列 %s，共 %d 条\n", q.Date, q.Len())
		fmt.Fprintln(out, renderTable(
			[]string{"#", "标题", "作者", "点赞", "评论", "转发", "互动指数", "ID"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
		))
		fmt.Fprintln(out, replyHint)
		return nil
	},
}

var queueImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Install a queue snapshot produced by the collection job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading snapshot: %w", err)
		}
		var q video.Queue
		if err := json.Unmarshal(data, &q); err != nil {
			return fmt.Errorf("parsing snapshot %s: %w", args[0], err)
		}
		for i, e := range q.Videos {
			if strings.TrimSpace(e.VideoID) == "" {
				return fmt.Errorf("snapshot entry %d has no aweme_id", i+1)
			}
		}
		if q.Date == "" {
			q.Date = time.Now().Format("2006-01-02")
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.SaveQueue(&q); err != nil {
			return err
		}
		printSuccess("Imported %d videos for %s", q.Len(), q.Date)
		return nil
	},
}

func init() {
	queueShowCmd.Flags().Bool("json", false, "print entries as JSON")
	queueShowCmd.Flags().Int("limit", 0, "show at most this many entries")
	queueCmd.AddCommand(queueShowCmd, queueImportCmd)
}

// --- knowledge store ---

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Browse stored decompositions",
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored decompositions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		all, err := a.store.LoadAll()
		if err != nil {
			return err
		}
		if len(all) == 0 {
			printWarning("no decompositions stored yet")
			return nil
		}

		rows := make([][]string, 0, len(all))
		for _, d := range all {
			created := ""
			if !d.CreatedAt.IsZero() {
				created = d.CreatedAt.Local().Format("2006-01-02 15:04")
			}
			rows = append(rows, []string{
				d.VideoID,
				truncate(d.CoreTheme, 16),
				truncate(d.OneLineSummary, 36),
				created,
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable(
			[]string{"ID", "主题", "一句话总结", "时间"},
			rows,
			nil,
		))
		return nil
	},
}

var kbShowCmd = &cobra.Command{
	Use:   "show <video-id>",
	Short: "Show one decomposition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetBool("raw")

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.store.Load(args[0])
		if err != nil {
			return err
		}
		if raw {
			fmt.Fprintln(cmd.OutOrStdout(), d.Raw)
			return nil
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(d)
	},
}

func init() {
	kbShowCmd.Flags().Bool("raw", false, "print the model reply as received")
	kbCmd.AddCommand(kbListCmd, kbShowCmd)
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.ledger.RecentRuns(limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			printWarning("no runs recorded yet")
			return nil
		}

		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			rows = append(rows, []string{
				r.ID,
				r.Operation,
				statusLabel(r.Status),
				truncate(r.Input, 30),
				r.StartedAt.Local().Format("01-02 15:04:05"),
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable(
			[]string{"Run", "Operation", "Status", "Input", "Started"},
			rows,
			nil,
		))
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run and its per-item outcomes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		run, items, err := a.ledger.GetRun(args[0])
		if err != nil {
			return fmt.Errorf("run %s: %w", args[0], err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s  %s  %s\n", run.ID, run.Operation, statusLabel(run.Status))
		fmt.Fprintf(out, "input:    %s\n", run.Input)
		fmt.Fprintf(out, "started:  %s\n", run.StartedAt.Local().Format(time.RFC3339))
		fmt.Fprintf(out, "duration: %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
		if run.Error != "" {
			fmt.Fprintf(out, "error:    %s\n", run.Error)
		}
		if len(items) == 0 {
			return nil
		}

		rows := make([][]string, 0, len(items))
		for _, it := range items {
			rows = append(rows, []string{strconv.Itoa(it.QueueIndex), it.VideoID, statusLabel(it.Status), it.Error})
		}
		fmt.Fprintln(out, renderTable([]string{"#", "Video", "Status", "Error"}, rows, []columnAlignment{alignRight}))
		return nil
	},
}

var historyScriptsCmd = &cobra.Command{
	Use:   "scripts",
	Short: "List generated script artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		videoID, _ := cmd.Flags().GetString("video")

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		scripts, err := a.ledger.RecentScripts(videoID, limit)
		if err != nil {
			return err
		}
		if len(scripts) == 0 {
			printWarning("no scripts generated yet")
			return nil
		}

		rows := make([][]string, 0, len(scripts))
		for _, sc := range scripts {
			source := sc.SourceVideoID
			if source == "" {
				source = truncate(sc.Topic, 16)
			}
			rows = append(rows, []string{
				sc.CreatedAt.Local().Format("01-02 15:04"),
				sc.Operation,
				source,
				sc.Product,
				sc.Path,
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable(
			[]string{"Created", "Operation", "Source", "Product", "Path"},
			rows,
			nil,
		))
		return nil
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete run records older than --days",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		if days < 1 {
			return fmt.Errorf("--days must be at least 1")
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.ledger.PruneRuns(time.Now().AddDate(0, 0, -days))
		if err != nil {
			return err
		}
		printSuccess("Pruned %d runs older than %d days", n, days)
		return nil
	},
}

func statusLabel(status string) string {
	switch status {
	case "ok":
		return colorize(colorGreen, status)
	case "partial":
		return colorize(colorYellow, status)
	case "failed":
		return colorize(colorRed, status)
	}
	return status
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of runs to show")
	historyScriptsCmd.Flags().Int("limit", 20, "number of scripts to show")
	historyScriptsCmd.Flags().String("video", "", "only scripts imitating this video id")
	historyPruneCmd.Flags().Int("days", 30, "keep runs from the last this many days")
	historyCmd.AddCommand(historyShowCmd, historyScriptsCmd, historyPruneCmd)
}

// --- product ---

var productCmd = &cobra.Command{
	Use:   "product",
	Short: "Inspect the product catalog",
}

var productListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog products",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		current := a.dispatcher.Product().Name
		rows := make([][]string, 0, len(a.catalog.Products))
		for _, p := range a.catalog.Products {
			mark := ""
			if p.Name == current {
				mark = "*"
			}
			rows = append(rows, []string{mark, p.Name, truncate(p.SellingPoint, 30), truncate(p.CTA, 24)})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"", "Name", "Selling point", "CTA"}, rows, nil))
		return nil
	},
}

var productShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show the product promoted by generated scripts",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		p := a.dispatcher.Product()
		if len(args) == 1 {
			if p, err = a.catalog.Lookup(args[0]); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, colorize(colorBold, p.Name))
		for _, f := range [][2]string{
			{"功能", p.Features},
			{"目标用户", p.TargetUsers},
			{"卖点", p.SellingPoint},
			{"价格", p.Pricing},
			{"行动号召", p.CTA},
		} {
			if f[1] != "" {
				fmt.Fprintf(out, "  %s: %s\n", f[0], f[1])
			}
		}
		if p.Brief != "" {
			fmt.Fprintf(out, "  简介: %s\n", truncate(p.Brief, 120))
		}
		return nil
	},
}

func init() {
	productCmd.AddCommand(productListCmd, productShowCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "  %s %s\n", colorize(colorBold, "file:"), config.ConfigFilePath())
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(out, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value in the config file. Valid keys:\n  " +
		strings.Join(config.ValidKeys(), "\n  ") +
		"\n\nSecrets (API keys, tokens) are read from the environment only.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
