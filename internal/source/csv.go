package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
)

// ErrEmptyRecording indicates a recording without samples
var ErrEmptyRecording = errors.New("recording contains no samples")

// ReadCSV reads one channel of a recorded session. The first row is a header
// naming the channels (c1, c2, ...); the column named channel is returned.
func ReadCSV(r io.Reader, channel string) ([]float64, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	column := slices.Index(headers, channel)
	if column < 0 {
		return nil, fmt.Errorf("%w %q (have %v)", ErrChannelMissing, channel, headers)
	}

	var samples []float64
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV line %d: %w", line, err)
		}
		if column >= len(row) {
			return nil, fmt.Errorf("line %d: %w %q", line, ErrChannelMissing, channel)
		}

		value, err := strconv.ParseFloat(strings.TrimSpace(row[column]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		samples = append(samples, value)
	}

	if len(samples) == 0 {
		return nil, ErrEmptyRecording
	}
	return samples, nil
}

// ReadCSVFile opens path and reads one channel with ReadCSV.
func ReadCSVFile(path, channel string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	return ReadCSV(f, channel)
}
