// Package export writes raw ingested rows to per-dataset CSV files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"econharvest/internal/model"
)

// WriteDataset writes the raw rows of one dataset to <dir>/<dataset>_data.csv
// (dataset name lowercased). The header row is the dataset's required field
// list and cells keep the provider's raw values. Returns the written path.
func WriteDataset(dir, dataset string, fields []string, rows []model.RawObservation) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, strings.ToLower(dataset)+"_data.csv")
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(fields); err != nil {
		_ = file.Close()
		return "", err
	}

	record := make([]string, len(fields))
	for _, row := range rows {
		for i, field := range fields {
			record[i] = cell(row[field])
		}
		if err := writer.Write(record); err != nil {
			_ = file.Close()
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		_ = file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", err
	}
	return path, nil
}

func cell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
