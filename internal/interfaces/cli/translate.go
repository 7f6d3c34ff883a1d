package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"z-novel-writer/internal/application/translation"
	"z-novel-writer/pkg/logger"
)

type translateArgs struct {
	file     string
	url      string
	text     string
	lang     string
	mode     string
	retries  int
	output   string
	provider string
	model    string
}

func newTranslateCmd(load Loader) *cobra.Command {
	var args translateArgs
	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate a file, a web page or inline text",
		Long: "Translate a file, a web page or inline text.\n" +
			"Parallel mode retries failed chunks; stream mode prints fragments as they arrive.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := args.validate(); err != nil {
				return err
			}
			return withDeps(cmd, load, func(ctx context.Context, deps *Deps) error {
				return runTranslate(ctx, cmd, deps, args)
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&args.file, "file", "f", "", "source file, - for stdin")
	f.StringVarP(&args.url, "url", "u", "", "source web page")
	f.StringVarP(&args.text, "text", "t", "", "inline source text")
	f.StringVarP(&args.lang, "lang", "l", "", "target language, defaults to the configured language")
	f.StringVarP(&args.mode, "mode", "m", string(translation.ModeParallel), "parallel | stream")
	f.IntVarP(&args.retries, "retries", "r", 2, "extra rounds for failed chunks in parallel mode")
	f.StringVarP(&args.output, "output", "o", "", "write the translation to a file instead of stdout")
	f.StringVar(&args.provider, "provider", "", "LLM provider")
	f.StringVar(&args.model, "model", "", "LLM model")
	return cmd
}

func (a translateArgs) validate() error {
	sources := 0
	for _, s := range []string{a.file, a.url, a.text} {
		if s != "" {
			sources++
		}
	}
	if sources != 1 {
		return fmt.Errorf("exactly one of --file, --url or --text is required")
	}
	switch translation.Mode(a.mode) {
	case translation.ModeParallel, translation.ModeStream:
	default:
		return fmt.Errorf("unknown mode %q", a.mode)
	}
	if a.retries < 0 {
		return fmt.Errorf("--retries must not be negative")
	}
	return nil
}

func runTranslate(ctx context.Context, cmd *cobra.Command, deps *Deps, args translateArgs) error {
	text, err := readSource(ctx, cmd.InOrStdin(), deps, args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("source text is empty")
	}

	lang := args.lang
	if lang == "" {
		lang = deps.Engine.DefaultLanguage()
	}
	req := translation.Request{
		Text:           text,
		TargetLanguage: lang,
		Mode:           translation.Mode(args.mode),
		Provider:       args.provider,
		Model:          args.model,
	}
	stderr := cmd.ErrOrStderr()

	if req.Mode == translation.ModeStream {
		out, closeOut, err := openOutput(cmd.OutOrStdout(), args.output)
		if err != nil {
			return err
		}
		defer closeOut()
		_, err = deps.Engine.TranslateStream(ctx, req,
			func(fragment string) error {
				_, err := io.WriteString(out, fragment)
				return err
			},
			func(done, total int, _ string) {
				fmt.Fprintf(stderr, "translated %d/%d chunks\n", done, total)
			})
		if err != nil {
			return err
		}
		_, err = io.WriteString(out, "\n")
		return err
	}

	progress := func(done, total int, _ []string) {
		fmt.Fprintf(stderr, "translated %d/%d chunks\n", done, total)
	}
	res, err := deps.Engine.TranslateParallel(ctx, req, progress)
	if err != nil {
		return err
	}
	for round := 1; round <= args.retries && !res.Complete(); round++ {
		logger.Warn(ctx, "retrying failed chunks", "round", round, "failed", res.FailedIndices())
		fmt.Fprintf(stderr, "retrying %d failed chunks (round %d)\n", len(res.Failures), round)
		if res, err = deps.Engine.Retry(ctx, res, progress); err != nil {
			return err
		}
	}

	out, closeOut, err := openOutput(cmd.OutOrStdout(), args.output)
	if err != nil {
		return err
	}
	defer closeOut()
	if _, err := io.WriteString(out, res.Text+"\n"); err != nil {
		return err
	}
	if !res.Complete() {
		for _, f := range res.Failures {
			fmt.Fprintf(stderr, "chunk %d failed: %s\n", f.ChunkIndex, f.Message)
		}
		return fmt.Errorf("%d of %d chunks failed", len(res.Failures), res.Chunks)
	}
	return nil
}

func readSource(ctx context.Context, stdin io.Reader, deps *Deps, args translateArgs) (string, error) {
	switch {
	case args.text != "":
		return args.text, nil
	case args.file == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	case args.file != "":
		data, err := os.ReadFile(args.file)
		if err != nil {
			return "", fmt.Errorf("read source file: %w", err)
		}
		return string(data), nil
	default:
		if deps.Fetcher == nil {
			return "", fmt.Errorf("url source is not configured")
		}
		doc, err := deps.Fetcher.Fetch(ctx, args.url)
		if err != nil {
			return "", err
		}
		return doc.Text, nil
	}
}

func openOutput(stdout io.Writer, path string) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
