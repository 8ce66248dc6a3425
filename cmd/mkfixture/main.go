// mkfixture creates a small representative encounter fixture from a larger
// CSV or Parquet file. It scans every row, buckets candidates by trait and
// writes up to N of them as Parquet.
// Usage: go run ./cmd/mkfixture --in testdata/encounters.csv --out testdata/encounters-small.parquet --rows 200
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gyeh/msdrg/internal/encounterio"
	"github.com/gyeh/msdrg/internal/model"
	"github.com/gyeh/msdrg/internal/normalize"
)

func main() {
	in := flag.String("in", "testdata/encounters.csv", "input CSV or parquet")
	out := flag.String("out", "testdata/encounters-small.parquet", "output parquet")
	maxRows := flag.Int("rows", 200, "max rows to output")
	checkOnly := flag.Bool("check", false, "only print stats, don't write")
	flag.Parse()

	reader, err := encounterio.Open(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open input: %v\n", err)
		os.Exit(1)
	}
	defer reader.Close()

	type bucket struct {
		name string
		rows []model.EncounterRow
		want int
	}
	buckets := []*bucket{
		{name: "procedures", want: 60},
		{name: "secondary", want: 60},
		{name: "expired", want: 20},
		{name: "invalid", want: 5},
		{name: "general", want: 0},
	}
	bucketMap := make(map[string]*bucket)
	for _, b := range buckets {
		bucketMap[b.name] = b
	}
	take := func(name string, row model.EncounterRow) bool {
		b := bucketMap[name]
		if len(b.rows) >= b.want {
			return false
		}
		b.rows = append(b.rows, row)
		return true
	}

	var total, withProcs, withSdx, expired, invalid int
	pdx := make(map[string]int)
	buf := make([]model.EncounterRow, 1024)
	for {
		n, readErr := reader.Read(buf)
		for i := 0; i < n; i++ {
			total++
			row := buf[i]
			procs := normalize.SplitCodes(model.Value(row.Procedures))
			sdx := normalize.SplitCodes(model.Value(row.SecondaryDx))
			dead := normalize.Discharge(model.Value(row.DischargeStatus)) == "expired"
			pdx[normalize.Code(row.PrincipalDx)]++

			placed := false
			switch {
			case row.Invalid != "":
				invalid++
				placed = take("invalid", row)
			case len(procs) > 0:
				withProcs++
				placed = take("procedures", row)
			case len(sdx) > 0:
				withSdx++
				placed = take("secondary", row)
			}
			if dead {
				expired++
				if !placed {
					placed = take("expired", row)
				}
			}
			if !placed && len(bucketMap["general"].rows) < *maxRows {
				bucketMap["general"].rows = append(bucketMap["general"].rows, row)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			fmt.Fprintf(os.Stderr, "read: %v\n", readErr)
			os.Exit(1)
		}
	}

	fmt.Printf("Scanned %d rows: %d distinct principal dx, %d with procedures, %d with secondary dx, %d expired, %d invalid\n",
		total, len(pdx), withProcs, withSdx, expired, invalid)
	if *checkOnly {
		return
	}

	// priority buckets first, then general rows to fill
	var selected []model.EncounterRow
	for _, b := range buckets {
		if b.name == "general" {
			continue
		}
		for _, row := range b.rows {
			if len(selected) >= *maxRows {
				break
			}
			selected = append(selected, row)
		}
	}
	for _, row := range bucketMap["general"].rows {
		if len(selected) >= *maxRows {
			break
		}
		selected = append(selected, row)
	}

	writer, err := encounterio.CreateParquet[model.EncounterRow](*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create output: %v\n", err)
		os.Exit(1)
	}
	if err := writer.Write(selected); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
	if err := writer.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "close writer: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d rows to %s\n", len(selected), *out)
	for _, b := range buckets {
		fmt.Printf("  %-12s %d\n", b.name, len(b.rows))
	}
}
