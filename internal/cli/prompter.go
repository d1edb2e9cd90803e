package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
)

// Prompter handles interactive confirmation for destructive sync operations.
type Prompter struct {
	writer io.Writer
	reader *bufio.Reader
}

// NewPrompter creates a prompter reading from reader and writing to writer.
// Nil arguments fall back to stdin/stdout.
func NewPrompter(reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}

	return &Prompter{
		reader: bufio.NewReader(reader),
		writer: writer,
	}
}

// Confirm asks a yes/no question and returns the answer. The default is no:
// only an explicit "y" or "yes" confirms.
func (p *Prompter) Confirm(ctx context.Context, question string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	if _, err := fmt.Fprintf(p.writer, "%s [y/N]: ", FormatPrompt(question)); err != nil {
		return false, fmt.Errorf("failed to write prompt: %w", err)
	}

	input, err := p.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, fmt.Errorf("failed to read answer: %w", err)
	}

	answer := strings.ToLower(strings.TrimSpace(input))
	return answer == "y" || answer == "yes", nil
}

// ConfirmForcePush warns about overwriting newer remote data before asking.
func (p *Prompter) ConfirmForcePush(ctx context.Context, baseVersion, currentVersion int64) (bool, error) {
	if _, err := fmt.Fprintln(p.writer, FormatConflict(baseVersion, currentVersion)); err != nil {
		return false, fmt.Errorf("failed to write conflict banner: %w", err)
	}
	if _, err := fmt.Fprintln(p.writer, FormatWarning("Force pushing will overwrite changes made on the server since your last pull.")); err != nil {
		return false, fmt.Errorf("failed to write warning: %w", err)
	}
	return p.Confirm(ctx, "Overwrite server data?")
}

// ConfirmReset warns about discarding local state before asking.
func (p *Prompter) ConfirmReset(ctx context.Context) (bool, error) {
	if _, err := fmt.Fprintln(p.writer, FormatWarning("This discards all local rules, tags, and sync history.")); err != nil {
		return false, fmt.Errorf("failed to write warning: %w", err)
	}
	return p.Confirm(ctx, "Reset local state?")
}

// NewSpinner returns an indeterminate progress spinner for network operations.
func (p *Prompter) NewSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan]%s[reset]", description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
}
