package report

import (
	"bufio"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/google/renameio/v2"
	log "github.com/sirupsen/logrus"

	"github.com/9seconds/threatmap/aggregate"
	"github.com/juju/errors"
)

// ErrWriteFailure is returned if a report cannot be written.
var ErrWriteFailure = errors.New("cannot write report")

// Header is the first row of every report.
var Header = []string{"city", "total_count", "latitude", "longitude"}

// Write writes rows as CSV in the given order.
func Write(writer io.Writer, rows []aggregate.Row) error {
	csvWriter := csv.NewWriter(writer)

	if err := csvWriter.Write(Header); err != nil {
		return errors.Annotatef(ErrWriteFailure, "cannot write header: %v", err)
	}

	record := make([]string, len(Header))
	for _, row := range rows {
		record[0] = row.City
		record[1] = strconv.FormatUint(row.TotalCount, 10)
		record[2] = formatCoordinate(row.Latitude)
		record[3] = formatCoordinate(row.Longitude)

		if err := csvWriter.Write(record); err != nil {
			return errors.Annotatef(ErrWriteFailure, "cannot write row: %v", err)
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return errors.Annotatef(ErrWriteFailure, "cannot flush rows: %v", err)
	}

	return nil
}

// WriteFile replaces a file at path with a report. Either the complete
// report appears at path or the file is left untouched.
func WriteFile(path string, rows []aggregate.Row) error {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0644))
	if err != nil {
		return errors.Annotatef(ErrWriteFailure, "cannot create %s: %v", path, err)
	}
	defer pending.Cleanup() // nolint: errcheck

	buffered := bufio.NewWriter(pending)
	if err := Write(buffered, rows); err != nil {
		return errors.Annotatef(err, "cannot write %s", path)
	}

	if err := buffered.Flush(); err != nil {
		return errors.Annotatef(ErrWriteFailure, "cannot write %s: %v", path, err)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return errors.Annotatef(ErrWriteFailure, "cannot replace %s: %v", path, err)
	}

	log.WithFields(log.Fields{
		"path": path,
		"rows": len(rows),
	}).Debug("Report is written.")

	return nil
}

func formatCoordinate(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
