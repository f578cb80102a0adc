// Package rinex decodes RINEX navigation files into broadcast ephemeris
// records.
//
// The supported layout is the 8-line-per-message GPS broadcast block with
// FORTRAN-style D-exponent numeric literals. The header section is skipped up
// to and including the END OF HEADER sentinel; body blocks are decoded by
// fixed character columns (identifier, calendar stamp) and positional numeric
// token extraction. Malformed blocks are dropped and counted, never fatal;
// the only structural failure is a missing header terminator.
package rinex

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	headerTerminator = "END OF HEADER"

	// blockLines is the broadcast-message record length for this format version.
	blockLines = 8

	// recordFields is the number of positionally assigned numeric fields per block.
	recordFields = 29
)

// numberPattern matches FORTRAN fixed-format floats: optional sign, digits
// with optional decimal point, a D exponent marker, optional sign, digits.
var numberPattern = regexp.MustCompile(`[\-\+]?[0-9\.]+D[\-\+]?[0-9]+`)

// FormatError reports a structurally unusable navigation file.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "rinex format error: " + e.Reason
}

// Parse decodes a RINEX navigation file into a Dataset. A missing END OF
// HEADER terminator fails with *FormatError and no partial dataset. Dropped
// blocks are logged at Warn and counted in the dataset's ParseStats.
func Parse(r io.Reader, logger *slog.Logger) (*Dataset, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading navigation data: %w", err)
	}

	body := -1
	for i, line := range lines {
		if strings.Contains(line, headerTerminator) {
			body = i + 1
			break
		}
	}
	if body < 0 {
		return nil, &FormatError{Reason: "missing END OF HEADER terminator"}
	}

	ds := &Dataset{
		LoadedAt:   time.Now(),
		Satellites: make(map[string][]EphemerisRecord),
	}

	// Fixed-size blocks; a trailing partial block is not a record.
	for i := body; i+blockLines <= len(lines); i += blockLines {
		block := lines[i : i+blockLines]

		prn := strings.TrimSpace(columns(block[0], 0, 3))
		if prn == "" {
			ds.Stats.BlankBlocks++
			continue
		}

		rec, ok := decodeBlock(block, prn, ds, logger)
		if !ok {
			continue
		}

		ds.Satellites[prn] = append(ds.Satellites[prn], rec)
		ds.Stats.Records++
	}

	if skipped := ds.Stats.Skipped(); skipped > 0 {
		logger.Info("navigation parse dropped blocks",
			"records", ds.Stats.Records,
			"blank", ds.Stats.BlankBlocks,
			"short", ds.Stats.ShortBlocks,
			"bad_timestamp", ds.Stats.BadTimestamps,
		)
	}

	return ds, nil
}

// decodeBlock decodes one 8-line broadcast block. Returns ok=false after
// updating the drop counters when the block is unusable.
func decodeBlock(block []string, prn string, ds *Dataset, logger *slog.Logger) (EphemerisRecord, bool) {
	yr, err1 := atoiColumns(block[0], 3, 8)
	mo, err2 := atoiColumns(block[0], 8, 11)
	dy, err3 := atoiColumns(block[0], 11, 14)
	hr, err4 := atoiColumns(block[0], 14, 17)
	mn, err5 := atoiColumns(block[0], 17, 20)
	sc, err6 := atofColumns(block[0], 20, 23)
	for _, err := range []error{err1, err2, err3, err4, err5, err6} {
		if err != nil {
			ds.Stats.BadTimestamps++
			logger.Warn("skipping block with malformed calendar stamp", "prn", prn, "error", err)
			return EphemerisRecord{}, false
		}
	}

	vals := make([]float64, 0, recordFields)
	for _, line := range block {
		for _, tok := range numberPattern.FindAllString(line, -1) {
			v, err := strconv.ParseFloat(strings.Replace(tok, "D", "E", 1), 64)
			if err != nil {
				// The pattern admits degenerate mantissas like "1.2.3"; drop the token.
				continue
			}
			vals = append(vals, v)
		}
	}
	if len(vals) < recordFields {
		ds.Stats.ShortBlocks++
		logger.Warn("skipping short broadcast block", "prn", prn, "tokens", len(vals), "want", recordFields)
		return EphemerisRecord{}, false
	}

	rec := recordFromValues(vals)
	rec.PRN = prn
	rec.Year, rec.Month, rec.Day = yr, mo, dy
	rec.Hour, rec.Minute, rec.Second = hr, mn, sc
	return rec, true
}

// recordFromValues assigns numeric tokens, in extraction order, to the fixed
// broadcast field layout: clock terms first, then orbital elements interleaved
// with harmonic corrections, then flags.
func recordFromValues(v []float64) EphemerisRecord {
	return EphemerisRecord{
		A0: v[0], A1: v[1], A2: v[2],
		IODC: v[3], Crs: v[4], DeltaN: v[5], M0: v[6],
		Cuc: v[7], E: v[8], Cus: v[9], SqrtA: v[10], Toe: v[11],
		Cic: v[12], Omega0: v[13], Cis: v[14],
		I0: v[15], Crc: v[16], Omega: v[17], OmegaDot: v[18], IDot: v[19],
		L2Code: v[20], Week: v[21], L2PFlag: v[22], Accuracy: v[23],
		Health: v[24], TGD: v[25], IODC2: v[26], TransTime: v[27], Spare: v[28],
	}
}

// columns returns line[lo:hi], tolerating short lines.
func columns(line string, lo, hi int) string {
	if lo >= len(line) {
		return ""
	}
	if hi > len(line) {
		hi = len(line)
	}
	return line[lo:hi]
}

func atoiColumns(line string, lo, hi int) (int, error) {
	s := strings.TrimSpace(columns(line, lo, hi))
	if s == "" {
		return 0, fmt.Errorf("empty columns %d-%d", lo, hi)
	}
	return strconv.Atoi(s)
}

func atofColumns(line string, lo, hi int) (float64, error) {
	s := strings.TrimSpace(columns(line, lo, hi))
	if s == "" {
		return 0, fmt.Errorf("empty columns %d-%d", lo, hi)
	}
	return strconv.ParseFloat(s, 64)
}
