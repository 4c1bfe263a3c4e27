package options

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Values maps option keys to raw values. A key given without "=value" maps
// to the empty string.
type Values map[string]string

// ParseArgs collects "--key" and "--key=value" tokens. Other tokens are
// ignored; a later duplicate overwrites an earlier one.
func ParseArgs(args []string) Values {
	values := make(Values)
	for _, arg := range args {
		if !strings.HasPrefix(arg, "--") {
			continue
		}
		key, value, _ := strings.Cut(arg[2:], "=")
		values[key] = value
	}
	return values
}

// ParseConfig reads key=value lines. A line without '=' becomes a key with
// an empty value.
func ParseConfig(r io.Reader) (Values, error) {
	values := make(Values)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		key, value, _ := strings.Cut(line, "=")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

// ParseConfigFile reads a config file with ParseConfig.
func ParseConfigFile(path string) (Values, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	values, err := ParseConfig(f)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	return values, nil
}
