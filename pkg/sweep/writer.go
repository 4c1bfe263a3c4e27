package sweep

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Header is the first line of every measurement file.
const Header = "distance"

// FileName returns the file name for the step at distance mm, zero padded
// to three digits.
func FileName(distance float64) string {
	return fmt.Sprintf("%03dmm.csv", int(distance))
}

// FormatValue formats a reading with six significant digits.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// WriteBatch writes values to path, one per line after the header. The file
// is created or truncated, and its directory created when missing.
func WriteBatch(path string, values []float64) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create measurement file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close measurement file: %w", cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write([]string{Header}); err != nil {
		return fmt.Errorf("write measurement file: %w", err)
	}
	for _, v := range values {
		if err := w.Write([]string{FormatValue(v)}); err != nil {
			return fmt.Errorf("write measurement file: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write measurement file: %w", err)
	}
	return nil
}
