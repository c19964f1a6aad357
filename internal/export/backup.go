package export

import (
	"encoding/json"
	"fmt"
	"io"

	"svcdesk/internal/complaint"
)

// WriteBackup writes the collection verbatim as pretty-printed JSON.
func WriteBackup(w io.Writer, records []complaint.Complaint) error {
	if records == nil {
		records = []complaint.Complaint{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// ParseBackup reads a backup produced by WriteBackup.
func ParseBackup(r io.Reader) ([]complaint.Complaint, error) {
	var records []complaint.Complaint
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode backup: %w", err)
	}
	return records, nil
}
