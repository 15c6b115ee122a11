package uniquename

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Next returns the first of "name.ext", "name_1.ext", "name_2.ext", ... that
// does not already exist in dir. Counting starts at 1 and scans the
// directory's current contents, so a concurrent writer can still race us to
// the name; the archival path tolerates that by calling Next again.
func Next(dir, filename string) (string, error) {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	candidate := filename

	for counter := 1; ; counter++ {
		if _, err := os.Stat(filepath.Join(dir, candidate)); err != nil {
			if os.IsNotExist(err) {
				return candidate, nil
			}

			return "", fmt.Errorf("uniquename.Next: %w", err)
		}

		candidate = fmt.Sprintf("%s_%d%s", base, counter, ext)
	}
}
