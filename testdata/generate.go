package main

import (
	"encoding/csv"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"

	"github.com/parquet-go/parquet-go"
)

type Sale struct {
	ID     int64    `parquet:"id"`
	City   string   `parquet:"city"`
	Units  *int64   `parquet:"units,optional"`
	Price  float64  `parquet:"price"`
	Paid   bool     `parquet:"paid"`
	Rating *float64 `parquet:"rating,optional"`
}

var cities = []string{"Oslo", "Rome", "Paris", "Lisbon", "Vienna"}

// sales builds n rows; every seventh has no units and every fifth no rating.
func sales(n int) []Sale {
	rng := rand.New(rand.NewSource(7))
	rows := make([]Sale, n)
	for i := range rows {
		s := Sale{
			ID:    int64(i + 1),
			City:  cities[rng.Intn(len(cities))],
			Price: float64(rng.Intn(20000)) / 100,
			Paid:  rng.Intn(3) > 0,
		}
		if i%7 != 0 {
			units := int64(rng.Intn(12) + 1)
			s.Units = &units
		}
		if i%5 != 0 {
			rating := float64(rng.Intn(50)+1) / 10
			s.Rating = &rating
		}
		rows[i] = s
	}
	return rows
}

func writeParquet(name string, rows []Sale) error {
	file, err := os.Create(name)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[Sale](file, parquet.Compression(&parquet.Zstd))
	if _, err := writer.Write(rows); err != nil {
		return err
	}
	return writer.Close()
}

func writeCSV(name string, rows []Sale) error {
	file, err := os.Create(name)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	_ = w.Write([]string{"id", "city", "units", "price", "paid", "rating"})
	for _, s := range rows {
		units, rating := "", ""
		if s.Units != nil {
			units = strconv.FormatInt(*s.Units, 10)
		}
		if s.Rating != nil {
			rating = strconv.FormatFloat(*s.Rating, 'f', -1, 64)
		}
		_ = w.Write([]string{
			strconv.FormatInt(s.ID, 10), s.City, units,
			strconv.FormatFloat(s.Price, 'f', 2, 64), strconv.FormatBool(s.Paid), rating,
		})
	}
	w.Flush()
	return w.Error()
}

func main() {
	rows := sales(500)

	if err := writeParquet("sales.parquet", rows); err != nil {
		log.Fatal(err)
	}
	if err := writeCSV("sales.csv", rows); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Generated sales.parquet and sales.csv with %d rows\n", len(rows))
}
