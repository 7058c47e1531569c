package runner

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/use-agent/maillage/models"
)

// LoadKeywords reads the keyword file at path.
func LoadKeywords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, models.NewError(models.ErrCodeInput, fmt.Sprintf("cannot open keyword file %s", path), err)
	}
	defer f.Close()
	return ReadKeywords(f)
}

// ReadKeywords returns one keyword per non-blank line, trimmed, in file
// order. Duplicates are kept. An input without any keyword is an error.
func ReadKeywords(r io.Reader) ([]string, error) {
	var keywords []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if line != "" {
			keywords = append(keywords, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, models.NewError(models.ErrCodeInput, "cannot read keywords", err)
	}
	if len(keywords) == 0 {
		return nil, models.NewError(models.ErrCodeInput, "no keywords found", nil)
	}
	return keywords, nil
}
