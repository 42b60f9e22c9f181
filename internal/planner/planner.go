// Package planner groups an upload's files into analysis batches.
package planner

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kiranshivaraju/vulnhunter/pkg/models"
)

// DefaultBatchSize is the number of files sent in one outbound exchange.
const DefaultBatchSize = 2

// ErrNoFiles is returned when there is nothing to plan.
var ErrNoFiles = errors.New("no file contents found")

// Batch is the group of files bundled into one diagnose/analyze exchange.
type Batch []models.UploadedFile

// Plan sorts files by descending content length (ties: descending contents) and
// pairs the largest remaining file with the smallest remaining ones, size files
// per batch. Only the final batch may be short. files is not modified.
func Plan(files []models.UploadedFile, size int) ([]Batch, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	if size < 1 {
		size = 1
	}

	sorted := slices.Clone(files)
	slices.SortStableFunc(sorted, func(a, b models.UploadedFile) int {
		if c := cmp.Compare(len(b.Contents), len(a.Contents)); c != 0 {
			return c
		}
		return strings.Compare(b.Contents, a.Contents)
	})

	batches := make([]Batch, 0, (len(sorted)+size-1)/size)
	lo, hi := 0, len(sorted)-1
	for lo <= hi {
		batch := Batch{sorted[lo]}
		lo++
		for i := 0; i < size-1 && lo <= hi; i++ {
			batch = append(batch, sorted[hi])
			hi--
		}
		batches = append(batches, batch)
	}
	return batches, nil
}

// Input renders the batch as the model input: each file's path followed by its
// lines numbered from 1, files separated by a blank line.
func (b Batch) Input() string {
	var sb strings.Builder
	for _, f := range b {
		sb.WriteString(f.Path)
		sb.WriteByte('\n')
		for i, line := range strings.Split(f.Contents, "\n") {
			if i > 0 {
				sb.WriteByte('\n')
			}
			fmt.Fprintf(&sb, "%d. %s", i+1, line)
		}
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// Paths returns the file paths in batch order.
func (b Batch) Paths() []string {
	paths := make([]string, len(b))
	for i, f := range b {
		paths[i] = f.Path
	}
	return paths
}
