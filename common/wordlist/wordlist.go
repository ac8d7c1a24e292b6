package wordlist

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/projectdiscovery/hmap/store/hybrid"
	fileutil "github.com/projectdiscovery/utils/file"

	"github.com/cfreal/ten/common/multi"
)

// Load reads candidate values from a wordlist file, one per line, and
// returns them as a Multi ready to drop into request arguments.
func Load(path string) (*multi.Multi, error) {
	values, err := LoadValues(path)
	if err != nil {
		return nil, err
	}
	return multi.Of(values), nil
}

// LoadValues reads a wordlist file, one candidate per line. Blank lines are
// skipped and duplicates dropped, keeping first-seen order; deduplication
// goes through a hybrid memory/disk store so very large lists stay cheap.
func LoadValues(path string) ([]string, error) {
	if !fileutil.FileExists(path) {
		return nil, errors.Errorf("wordlist file %s does not exist", path)
	}
	input, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not open wordlist")
	}
	defer input.Close()

	hm, err := hybrid.New(hybrid.DefaultDiskOptions)
	if err != nil {
		return nil, errors.Wrap(err, "could not create dedupe store")
	}
	defer hm.Close()

	var values []string
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		value := strings.TrimSpace(scanner.Text())
		if value == "" {
			continue
		}
		if _, ok := hm.Get(value); ok {
			continue
		}
		hm.Set(value, nil) //nolint
		values = append(values, value)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "could not read wordlist")
	}
	return values, nil
}
