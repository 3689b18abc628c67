package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/kinship/internal/server"
	"github.com/cognicore/kinship/pkg/kinship"
	"github.com/cognicore/kinship/pkg/kinship/catalog"
	"github.com/cognicore/kinship/pkg/kinship/internalerr"
	"github.com/cognicore/kinship/pkg/kinship/maintenance"
	"github.com/cognicore/kinship/pkg/kinship/normalize"
)

var (
	debugTrace bool

	addParent   string
	addChild    string
	addGender   string
	addName     string
	addGroup    string
	addFraction float64

	historyLimit int
	exportOut    string

	serveAddr  string
	serveWatch bool
)

// exampleQuestions are shown when chat starts.
var exampleQuestions = []string{
	"Who are the cousins of Chernet?",
	"Who is the grandfather of Kaleb?",
	"What percent Amhara is Selam?",
	"List the nieces of Genet.",
}

const watchDebounce = 250 * time.Millisecond

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question about the family tree",
	Example: `  kinship ask "Who are the siblings of Chernet?"
  kinship ask --debug What percent Oromo is Chernet?`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions interactively",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Append facts to the family tree",
}

var addParentCmd = &cobra.Command{
	Use:     "parent",
	Short:   "Record that a person is the parent of another",
	Example: `  kinship add parent --parent Abebe --child Kebede --gender Male`,
	Args:    cobra.NoArgs,
	RunE:    runAddParent,
}

var addEthnicityCmd = &cobra.Command{
	Use:     "ethnicity",
	Short:   "Record the fraction of an ethnic group in a person",
	Example: `  kinship add ethnicity --name Selam --group Amhara --fraction 0.5`,
	Args:    cobra.NoArgs,
	RunE:    runAddEthnicity,
}

var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "List the functions questions can be mapped to",
	Args:  cobra.NoArgs,
	RunE:  runFunctions,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent questions and fact additions",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the loaded facts, grouped by kind",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, cleanup, err := buildApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer cleanup()

	question := strings.Join(args, " ")
	resp, err := app.Ask(ctx, question)
	if err != nil {
		return userFacing(err, internalerr.UserMessage(err))
	}
	printResponse(cmd.OutOrStdout(), resp, debugTrace)
	return nil
}

func printResponse(w io.Writer, resp kinship.Response, trace bool) {
	if trace {
		fmt.Fprintf(w, "Query: %s\n", resp.Query)
		fmt.Fprintf(w, "Raw: %s\n", resp.Raw)
		fmt.Fprintf(w, "Normalized: %s\n", normalize.Render(resp.Normalized))
	}
	fmt.Fprintln(w, resp.Answer)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, cleanup, err := buildApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "===========================================")
	fmt.Fprintln(out, "  Kinship Chat")
	fmt.Fprintln(out, "  Questions about the family tree")
	fmt.Fprintln(out, "===========================================")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Try:")
	for _, q := range exampleQuestions {
		fmt.Fprintln(out, "  "+q)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Type your question (Ctrl+D to exit):")
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		resp, err := app.Ask(ctx, question)
		if err != nil {
			logger.Debug("question failed", zap.Error(err))
			fmt.Fprintln(out, internalerr.UserMessage(err))
			fmt.Fprintln(out)
			continue
		}
		printResponse(out, resp, debugTrace)
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, "\nGoodbye!")
	return scanner.Err()
}

func runAddParent(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, cleanup, err := buildApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer cleanup()

	msg, err := app.AddRelationship(ctx, kinship.Relationship{Parent: addParent, Child: addChild, Gender: addGender})
	if err != nil {
		return userFacing(err, internalerr.SaveMessage(err))
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}

func runAddEthnicity(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, cleanup, err := buildApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer cleanup()

	msg, err := app.AddEthnicity(ctx, kinship.Ethnicity{Name: addName, Group: addGroup, Fraction: addFraction})
	if err != nil {
		return userFacing(err, internalerr.SaveMessage(err))
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}

func runFunctions(cmd *cobra.Command, args []string) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, f := range catalog.All() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Signature(), f.Result, f.Description)
	}
	return tw.Flush()
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, cleanup, err := buildApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer cleanup()

	h, err := app.History(ctx, historyLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Questions (%d):\n", len(h.Queries))
	for _, q := range h.Queries {
		result := q.Answer
		if q.Error != "" {
			result = "error: " + q.Error
		}
		fmt.Fprintf(out, "  %s  %s -> %s (%s)\n", q.AskedAt.Format(time.RFC3339), q.Question, result, q.Latency.Round(time.Millisecond))
	}
	fmt.Fprintf(out, "Facts (%d):\n", len(h.Facts))
	for _, f := range h.Facts {
		fmt.Fprintf(out, "  %s  %s\n", f.AddedAt.Format(time.RFC3339), strings.ReplaceAll(f.Text, "\n", " "))
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, cleanup, err := buildApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer cleanup()

	var w maintenance.FactWriter = maintenance.StreamWriter{W: cmd.OutOrStdout()}
	if exportOut != "" {
		w = maintenance.FileWriter{Path: exportOut}
	}
	n, err := app.Export(ctx, w)
	if err != nil {
		return err
	}
	if exportOut != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d facts to %s\n", n, exportOut)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, cleanup, err := buildApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer cleanup()

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	srv := server.New(app, server.Options{
		MaxConns:      cfg.Server.MaxConns,
		AsksPerMinute: cfg.Server.AsksPerMinute,
		Logger:        logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, addr)
	})
	if serveWatch {
		g.Go(func() error {
			return app.Session().Watch(gctx, watchDebounce)
		})
	}
	return g.Wait()
}

// userFacing replaces err with the message shown to the user and keeps its
// hints. The full chain goes to the debug log.
func userFacing(err error, msg string) error {
	logger.Debug("command failed", zap.Error(err))
	out := errors.New(msg)
	if h := internalerr.Hints(err); h != "" && h != msg {
		out = errors.WithHint(out, h)
	}
	return out
}
