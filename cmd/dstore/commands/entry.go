package commands

import (
	"strconv"
	"time"

	"github.com/marmos91/dittostore/internal/bytesize"
	"github.com/marmos91/dittostore/pkg/storage"
)

// entry is the printable form of a storage.Info.
type entry struct {
	Name         string    `json:"name" yaml:"name"`
	Type         string    `json:"type" yaml:"type"`
	Size         uint64    `json:"size" yaml:"size"`
	TimeModified time.Time `json:"time_modified" yaml:"time_modified"`
	Mode         string    `json:"mode,omitempty" yaml:"mode,omitempty"`
	User         string    `json:"user,omitempty" yaml:"user,omitempty"`
	Group        string    `json:"group,omitempty" yaml:"group,omitempty"`
	Link         string    `json:"link,omitempty" yaml:"link,omitempty"`
}

func newEntry(info storage.Info) entry {
	e := entry{
		Name:         info.Name,
		Type:         info.Type.String(),
		Size:         info.Size,
		TimeModified: info.TimeModified.UTC(),
		User:         info.User,
		Group:        info.Group,
		Link:         info.LinkDestination,
	}
	if info.Level == storage.InfoLevelDetail {
		e.Mode = formatMode(info)
	}
	return e
}

func formatMode(info storage.Info) string {
	return "0" + strconv.FormatUint(uint64(info.Mode.Perm()), 8)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

// entryTable renders a listing as a table. With human set, sizes use
// binary units.
type entryTable struct {
	entries []entry
	human   bool
}

func (t entryTable) Headers() []string {
	return []string{"Name", "Type", "Size", "Modified", "Mode"}
}

func (t entryTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.entries))
	for _, e := range t.entries {
		mode := e.Mode
		if mode == "" {
			mode = "-"
		}
		rows = append(rows, []string{e.Name, e.Type, formatSize(e.Size, t.human), formatTime(e.TimeModified), mode})
	}
	return rows
}

func formatSize(size uint64, human bool) string {
	if human {
		return bytesize.ByteSize(size).String()
	}
	return strconv.FormatUint(size, 10)
}

// keyValues returns the "key: value" rows of a single entry.
func (e entry) keyValues() [][2]string {
	pairs := [][2]string{
		{"Name", e.Name},
		{"Type", e.Type},
		{"Size", strconv.FormatUint(e.Size, 10)},
		{"Modified", formatTime(e.TimeModified)},
	}
	if e.Mode != "" {
		pairs = append(pairs, [2]string{"Mode", e.Mode})
	}
	if e.User != "" {
		pairs = append(pairs, [2]string{"User", e.User})
	}
	if e.Group != "" {
		pairs = append(pairs, [2]string{"Group", e.Group})
	}
	if e.Link != "" {
		pairs = append(pairs, [2]string{"Link", e.Link})
	}
	return pairs
}
