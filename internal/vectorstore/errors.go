package vectorstore

import (
	"errors"
	"fmt"
)

var errNoEntries = errors.New("no entries to index")

// DimensionError reports a vector whose length differs from the index dimension.
type DimensionError struct {
	ChunkIndex int
	Got        int
	Want       int
}

func (e *DimensionError) Error() string {
	if e.Want == 0 {
		return fmt.Sprintf("empty vector for chunk %d", e.ChunkIndex)
	}
	return fmt.Sprintf("vector dimension mismatch for chunk %d: got %d, want %d", e.ChunkIndex, e.Got, e.Want)
}
