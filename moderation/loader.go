package moderation

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"chat-relay/errors"
)

// LoadWords reads a dictionary file with one forbidden word per line.
// Blank lines and lines starting with '#' are skipped; duplicates collapse.
func LoadWords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary %q: %w", path, err)
	}
	defer f.Close()

	unique := make(map[string]struct{})
	var words []string

	// Scanner copes with \r\n endings, a plain split does not.
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, seen := unique[line]; seen {
			continue
		}
		unique[line] = struct{}{}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dictionary %q: %w", path, err)
	}
	if len(words) == 0 {
		return nil, errors.ErrEmptyWords
	}
	return words, nil
}
