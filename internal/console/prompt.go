// Package console is the interactive terminal front end.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
)

// ErrCancelled is returned by prompts when the user backs out with "c".
var ErrCancelled = errors.New("cancelled")

// Prompter reads answers line by line and writes prompts and tables.
// Reads return io.EOF once input is exhausted.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

func (p *Prompter) Printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

func (p *Prompter) Println(args ...any) {
	fmt.Fprintln(p.out, args...)
}

func (p *Prompter) Title(title string) {
	fmt.Fprintf(p.out, "\n===== %s =====\n", title)
}

// Line prints prompt and returns the trimmed answer.
func (p *Prompter) Line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Validated re-prompts until check accepts the answer.
func (p *Prompter) Validated(prompt string, check func(string) error) (string, error) {
	for {
		answer, err := p.Line(prompt)
		if err != nil {
			return "", err
		}
		if err := check(answer); err != nil {
			p.Println(err.Error())
			continue
		}
		return answer, nil
	}
}

// Optional is Validated that also accepts a blank answer.
func (p *Prompter) Optional(prompt string, check func(string) error) (string, error) {
	return p.Validated(prompt, func(s string) error {
		if s == "" {
			return nil
		}
		return check(s)
	})
}

// Confirm asks a y/n question; anything but y is no.
func (p *Prompter) Confirm(prompt string) (bool, error) {
	answer, err := p.Line(prompt + " (y/n): ")
	if err != nil {
		return false, err
	}
	return strings.EqualFold(answer, "y"), nil
}

// Pause waits for Enter.
func (p *Prompter) Pause() error {
	_, err := p.Line("\nPress Enter to continue...")
	return err
}

// Menu shows numbered options plus a final "Return to previous menu" entry
// and returns the chosen number. The extra entry is len(options)+1.
func (p *Prompter) Menu(title string, options []string) (int, error) {
	return p.menu(title, options, "Return to previous menu")
}

// MenuWithExit is Menu whose last entry has a custom label.
func (p *Prompter) MenuWithExit(title string, options []string, exit string) (int, error) {
	return p.menu(title, options, exit)
}

func (p *Prompter) menu(title string, options []string, last string) (int, error) {
	p.Title(title)
	for i, o := range options {
		p.Printf("%d. %s\n", i+1, o)
	}
	p.Printf("%d. %s\n", len(options)+1, last)
	for {
		answer, err := p.Line("\nEnter your choice: ")
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(answer)
		if err != nil {
			p.Println("Please enter a number.")
			continue
		}
		if n < 1 || n > len(options)+1 {
			p.Println("Invalid selection. Please try again.")
			continue
		}
		return n, nil
	}
}

// Pick asks for a 1-based index into a list of n items. "c" cancels.
func (p *Prompter) Pick(prompt string, n int) (int, error) {
	for {
		answer, err := p.Line(prompt)
		if err != nil {
			return 0, err
		}
		if strings.EqualFold(answer, "c") {
			return 0, ErrCancelled
		}
		i, err := strconv.Atoi(answer)
		if err != nil || i < 1 || i > n {
			p.Printf("Please enter a number between 1 and %d, or 'c' to cancel.\n", n)
			continue
		}
		return i - 1, nil
	}
}

// Table writes aligned columns.
func (p *Prompter) Table(header []string, rows [][]string) {
	tw := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	dashes := make([]string, len(header))
	for i, h := range header {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	_ = tw.Flush()
}
