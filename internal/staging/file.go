package staging

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
)

// SaveFile writes the buffer as an ordered JSON array. The file is the sole
// hand-off artifact between the extraction run and the review/submission run,
// so the write goes through a temp file and rename.
func (b *Buffer) SaveFile(path string) error {
	data, err := json.MarshalIndent(b.units, "", "  ")
	if err != nil {
		return eris.Wrap(err, "staging: marshal units")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrapf(err, "staging: write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrapf(err, "staging: rename %s", path)
	}
	return nil
}

// LoadFile reads a buffer back from its JSON array file.
func LoadFile(path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "staging: read %s", path)
	}

	var units []Unit
	if err := json.Unmarshal(data, &units); err != nil {
		return nil, eris.Wrapf(err, "staging: parse %s", path)
	}
	return &Buffer{units: units}, nil
}
