package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatText Format = "txt"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatText:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

func (r *Report) labels() (group, sub, subCount, subHeading string) {
	if r.Kind == ByDoctor {
		return "GP", "Clinic", "Clinic Count", "Clinic Counts"
	}
	return "Clinic", "GP", "GP Count", "GP Counts"
}

// FileName is <clinic|gp>_report_<start|all>_<end|all>.<ext>.
func (r *Report) FileName(f Format) string {
	return fmt.Sprintf("%s_report_%s_%s.%s", r.Kind, r.Range.startTag(), r.Range.endTag(), f)
}

// WriteCSV writes one row per group, sub-group and reason combination.
func (r *Report) WriteCSV(w io.Writer) error {
	group, sub, subCount, _ := r.labels()
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{group, "Total", sub, subCount, "Type", "Type Count"}); err != nil {
		return err
	}
	for _, g := range r.Groups {
		for _, s := range g.Sub {
			for _, reason := range g.Reasons {
				row := []string{
					g.Name,
					strconv.Itoa(g.Total),
					s.Name,
					strconv.Itoa(s.Count),
					reason.Name,
					strconv.Itoa(reason.Count),
				}
				if err := cw.Write(row); err != nil {
					return err
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteText writes one indented block per group.
func (r *Report) WriteText(w io.Writer) error {
	group, _, _, subHeading := r.labels()
	for _, g := range r.Groups {
		if _, err := fmt.Fprintf(w, "%s: %s (Total: %d)\n  %s:\n", group, g.Name, g.Total, subHeading); err != nil {
			return err
		}
		for _, s := range g.Sub {
			if _, err := fmt.Fprintf(w, "    %s: %d\n", s.Name, s.Count); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "  Type Breakdown:\n"); err != nil {
			return err
		}
		for _, reason := range g.Reasons {
			if _, err := fmt.Fprintf(w, "    %s: %d\n", reason.Name, reason.Count); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Export writes the report into dir and returns the file path.
func Export(dir string, r *Report, f Format) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(dir, r.FileName(f))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}

	switch f {
	case FormatCSV:
		err = r.WriteCSV(file)
	case FormatText:
		err = r.WriteText(file)
	default:
		err = fmt.Errorf("unknown report format %q", f)
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
