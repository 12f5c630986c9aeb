//go:build ignore

// Writes alltypes_plain.parquet with the rows of the parquet-testing file of
// the same name, for use as PARQUET_TEST_DATA:
//
//	go run testdata/generate.go -o testdata
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/vegasq/pqsql/internal/fixtures"
)

func main() {
	dir := flag.String("o", ".", "output directory")
	flag.Parse()

	ids := []int32{4, 5, 6, 7, 2, 3, 0, 1}
	dates := []string{"03/01/09", "03/01/09", "04/01/09", "04/01/09", "02/01/09", "02/01/09", "01/01/09", "01/01/09"}

	rows := make([]fixtures.AllTypesRow, len(ids))
	for i, id := range ids {
		v := int32(i % 2)
		rows[i] = fixtures.AllTypesRow{
			ID:            id,
			BoolCol:       v == 0,
			TinyintCol:    v,
			SmallintCol:   v,
			IntCol:        v,
			BigintCol:     int64(v) * 10,
			FloatCol:      float32(v) * 1.1,
			DoubleCol:     float64(v) * 10.1,
			DateStringCol: []byte(dates[i]),
			StringCol:     []byte(fmt.Sprint(v)),
		}
	}

	path := filepath.Join(*dir, "alltypes_plain.parquet")
	file, err := os.Create(path)
	if err != nil {
		log.Fatal(err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[fixtures.AllTypesRow](file)
	if _, err := writer.Write(rows); err != nil {
		log.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		log.Fatal(err)
	}

	log.Printf("wrote %s (%d rows)", path, len(rows))
}
