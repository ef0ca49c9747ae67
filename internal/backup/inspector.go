package backup

import (
	"fmt"
	"os"
	"strings"
)

// Inspector observes the backup root and reports the chain state.
// It never modifies the filesystem.
type Inspector struct {
	naming NamingConfig
}

// NewInspector creates an inspector for the given naming scheme
func NewInspector(naming NamingConfig) *Inspector {
	return &Inspector{naming: naming}
}

// Inspect scans the backup root and returns a snapshot of the chain.
// A missing root is a valid empty state, not an error: the first cycle on a
// fresh host starts from nothing.
func (i *Inspector) Inspect(root string) (Snapshot, error) {
	var snapshot Snapshot

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return snapshot, nil
		}
		return snapshot, NewIOError(fmt.Sprintf("cannot read backup root %s", root), err)
	}

	largestSuffix := -1
	for _, entry := range entries {
		name := entry.Name()

		if entry.IsDir() && strings.EqualFold(name, i.naming.BaseDirName) {
			snapshot.HasBase = true
		}

		if entry.IsDir() {
			if suffix, ok := ParseIncrementalSuffix(name, i.naming.IncrementalPrefix); ok && suffix > largestSuffix {
				largestSuffix = suffix
			}
		}

		// Every entry counts toward the chain's age, recognized or not.
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime(); mod.After(snapshot.NewestEntry) {
			snapshot.NewestEntry = mod
		}
	}

	snapshot.IncrementalCount = largestSuffix + 1

	return snapshot, nil
}

// ParseIncrementalSuffix extracts the numeric suffix from an incremental
// folder name. A name is recognized when it starts with the prefix and the
// remainder is nothing but digits: "inc_3" and "inc_03" parse, "inc_3_old"
// and "inc_" do not.
func ParseIncrementalSuffix(name, prefix string) (int, bool) {
	if !strings.HasPrefix(name, prefix) {
		return 0, false
	}

	rest := name[len(prefix):]
	if rest == "" {
		return 0, false
	}

	suffix := 0
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, false
		}
		suffix = suffix*10 + int(r-'0')
	}

	return suffix, true
}

// IncrementalName returns the folder name for the incremental with the
// given suffix
func (nc NamingConfig) IncrementalName(suffix int) string {
	return fmt.Sprintf("%s%d", nc.IncrementalPrefix, suffix)
}
