package render

import (
	"encoding/json"
	"io"

	"github.com/dgallion1/prosecheck/internal/backmap"
)

// FileResult is the outcome of checking one file.
type FileResult struct {
	Path        string               `json:"path"`
	Diagnostics []backmap.Diagnostic `json:"diagnostics"`
	Error       string               `json:"error,omitempty"`
}

// Output is the root of the JSON report.
type Output struct {
	Files []FileResult `json:"files"`
	Count int          `json:"count"`
}

// JSON writes an indented report of all files.
func JSON(w io.Writer, files []FileResult) error {
	out := Output{Files: files}
	for i := range out.Files {
		if out.Files[i].Diagnostics == nil {
			out.Files[i].Diagnostics = []backmap.Diagnostic{}
		}
		out.Count += len(out.Files[i].Diagnostics)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
