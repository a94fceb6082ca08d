package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dgallion1/docreader/internal/chunker"
	"github.com/dgallion1/docreader/internal/doctree"
	"github.com/dgallion1/docreader/internal/parser"
	"github.com/dgallion1/docreader/internal/reader"
	"github.com/dgallion1/docreader/internal/textenc"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

const defaultWidth = 80

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docreader",
		Short: "Inspect how documents paginate into display lines",
		Long: `docreader loads a text, markdown, HTML, EPUB, DOCX or PDF file the same
way the reader service does and prints its display lines, its chapter
index, or the detected text encoding.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn, error")
	root.AddCommand(newLinesCmd(), newChaptersCmd(), newDetectCmd())
	return root
}

func newLinesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lines FILE",
		Short: "Print display lines with their positions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(cmd)
			if err != nil {
				return err
			}
			lineSize, _ := cmd.Flags().GetInt("line-size")
			from, _ := cmd.Flags().GetInt("from")
			count, _ := cmd.Flags().GetInt("count")
			width, _ := cmd.Flags().GetInt("width")

			pages, err := paginate(args[0], lineSize, log)
			if err != nil {
				return err
			}
			return printLines(cmd.OutOrStdout(), pages, from, count, width)
		},
	}
	cmd.Flags().Int("line-size", chunker.DefaultLineSize, "Code points per display line")
	cmd.Flags().Int("from", 0, "First line to print")
	cmd.Flags().Int("count", 0, "Number of lines to print (0 prints to the end)")
	cmd.Flags().Int("width", defaultWidth, "Terminal columns; longer lines are truncated (0 disables)")
	return cmd
}

func newChaptersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chapters FILE",
		Short: "Print the chapter index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(cmd)
			if err != nil {
				return err
			}
			lineSize, _ := cmd.Flags().GetInt("line-size")
			width, _ := cmd.Flags().GetInt("width")

			pages, err := paginate(args[0], lineSize, log)
			if err != nil {
				return err
			}
			printChapters(cmd.OutOrStdout(), pages, width)
			return nil
		},
	}
	cmd.Flags().Int("line-size", chunker.DefaultLineSize, "Code points per display line")
	cmd.Flags().Int("width", defaultWidth, "Terminal columns; longer titles are truncated (0 disables)")
	return cmd
}

func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect FILE",
		Short: "Guess the text encoding of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("%w: %w", reader.ErrIO, err)
			}
			r := textenc.Detect(data)
			_, verr := textenc.Validate(data, textenc.DefaultMinConfidence)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%.2f\taccepted=%t\n", r.Name, r.Confidence, verr == nil)
			return nil
		},
	}
}

func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	levelName, _ := cmd.Flags().GetString("log-level")
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", levelName, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

// paginate loads path with the same dispatch the service uses and splits it
// into display lines.
func paginate(path string, lineSize int, log *slog.Logger) (chunker.Pages, error) {
	if lineSize <= 0 {
		return chunker.Pages{}, fmt.Errorf("%w: %d", reader.ErrInvalidLineSize, lineSize)
	}
	format, err := parser.FormatFor(path)
	if err != nil {
		return chunker.Pages{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return chunker.Pages{}, fmt.Errorf("%w: %w", reader.ErrIO, err)
	}
	if format.IsText() {
		r := textenc.Detect(data)
		log.Debug("detected encoding", "path", path, "encoding", r.Name, "confidence", r.Confidence)
	}

	doc, err := parser.Load(&doctree.RawDocument{Path: path, Format: format, Data: data}, parser.Options{})
	if err != nil {
		return chunker.Pages{}, err
	}
	pages := chunker.Paginate(doc.Blocks, chunker.Config{LineSize: lineSize})
	log.Info("paginated", "path", path, "title", doc.Title, "lines", len(pages.Lines), "chapters", len(pages.Chapters))
	if len(pages.Lines) == 0 {
		return chunker.Pages{}, reader.ErrEmptyDocument
	}
	return pages, nil
}

func printLines(w io.Writer, pages chunker.Pages, from, count, width int) error {
	n := len(pages.Lines)
	if from < 0 || from >= n {
		return fmt.Errorf("%w: --from %d, document has %d lines", reader.ErrOutOfBounds, from, n)
	}
	end := n
	if count > 0 && from+count < n {
		end = from + count
	}
	digits := len(fmt.Sprint(n - 1))
	for i := from; i < end; i++ {
		l := pages.Lines[i]
		mark := " "
		if l.ChapterMarker {
			mark = "#"
		}
		fmt.Fprintln(w, fit(fmt.Sprintf("%*d %s ", digits, i, mark), l.Text, width))
	}
	return nil
}

func printChapters(w io.Writer, pages chunker.Pages, width int) {
	if len(pages.Chapters) == 0 {
		fmt.Fprintln(w, "no chapters")
		return
	}
	total := len(pages.Lines)
	for _, ch := range pages.Chapters {
		prefix := fmt.Sprintf("%4d  line %-6d %5.1f%%  ", ch.Index, ch.StartLine, float64(ch.StartLine)/float64(total)*100)
		fmt.Fprintln(w, fit(prefix, ch.Title, width))
	}
}

// fit joins prefix and s, cutting s so the result spans at most width
// terminal columns. Wide CJK runes count as two. A width of 0 disables it.
func fit(prefix, s string, width int) string {
	if width <= 0 {
		return prefix + s
	}
	cols := width - runewidth.StringWidth(prefix)
	if cols < 1 {
		cols = 1
	}
	return prefix + runewidth.Truncate(s, cols, "...")
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
