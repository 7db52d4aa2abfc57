package pestnet

import (
	"io/fs"
	"os"
	"path/filepath"
)

// CandidateReport describes one resolution candidate without publishing it.
type CandidateReport struct {
	Kind     StrategyKind `json:"kind"`
	Paths    []string     `json:"paths"`
	Present  bool         `json:"present"`
	Size     int64        `json:"size_bytes"`
	Loadable bool         `json:"loadable"`
	Source   string       `json:"source,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// Inspect tries every candidate in order and reports which ones load. Unlike
// Resolve it does not stop at the first success and never trains a fallback.
func (r *Resolver) Inspect() []CandidateReport {
	reports := make([]CandidateReport, 0, len(r.attempts))
	for _, a := range r.attempts {
		rep := CandidateReport{Kind: a.Kind, Paths: a.Paths, Present: true}
		for _, p := range a.Paths {
			size, err := pathSize(p)
			if err != nil {
				rep.Present = false
				break
			}
			rep.Size += size
		}
		if !rep.Present {
			reports = append(reports, rep)
			continue
		}

		c, err := r.try(a)
		if err != nil {
			rep.Error = err.Error()
		} else {
			rep.Loadable = true
			rep.Source = c.Source()
			if cerr := c.Close(); cerr != nil {
				r.log.Debug("closing inspected classifier failed")
			}
		}
		reports = append(reports, rep)
	}
	return reports
}

// pathSize returns the size of a file, or the total size of a directory tree.
func pathSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	err = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	return total, err
}
