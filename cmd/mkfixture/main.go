// mkfixture synthesizes a representative analytics traffic export CSV for
// tests and demos: one Total row plus N related-video rows, with a
// configurable share of blank titles (the rows reconciliation repairs).
// Usage: go run ./cmd/mkfixture --out testdata/export.csv --rows 200 --blank-ratio 0.3
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"trafficsnap/internal/csvcodec"
	"trafficsnap/internal/model"
	"trafficsnap/internal/normalize"
)

func main() {
	out := flag.String("out", "testdata/export.csv", "output CSV path")
	rows := flag.Int("rows", 200, "number of related-video rows")
	blankRatio := flag.Float64("blank-ratio", 0.3, "share of rows with a blank title")
	channelRatio := flag.Float64("channel-ratio", 0.2, "share of rows already carrying a channel id")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	var (
		videoRows   []model.TrafficRow
		totalViews  int64
		totalImpr   int64
		totalWatch  float64
		blankCount  int
		enrichCount int
	)
	for i := 0; i < *rows; i++ {
		impressions := int64(rng.Intn(20000) + 50)
		ctr := float64(rng.Intn(120)) / 10.0
		views := int64(float64(impressions) * ctr / 100.0)
		if views == 0 {
			views = 1
		}
		seconds := int64(rng.Intn(540) + 15)
		watch := float64(views*seconds) / 3600.0

		r := model.TrafficRow{
			VideoID:         fmt.Sprintf("vid%05d", i),
			SourceType:      "Suggested video",
			SourceTitle:     fmt.Sprintf("Related video #%d, with a comma", i),
			Impressions:     impressions,
			CTR:             ctr,
			Views:           views,
			AvgViewDuration: normalize.FormatDuration(seconds),
			WatchTimeHours:  watch,
		}
		if rng.Float64() < *blankRatio {
			r.SourceTitle = ""
			blankCount++
		} else if rng.Float64() < *channelRatio {
			r.ChannelID = fmt.Sprintf("UCfixture%05d", i)
			enrichCount++
		}

		videoRows = append(videoRows, r)
		totalViews += views
		totalImpr += impressions
		totalWatch += watch
	}

	total := model.TrafficRow{
		Impressions:     totalImpr,
		CTR:             float64(totalViews) / float64(totalImpr) * 100.0,
		Views:           totalViews,
		AvgViewDuration: normalize.FormatDuration(avgSeconds(totalWatch, totalViews)),
		WatchTimeHours:  totalWatch,
	}

	text := csvcodec.Serialize(videoRows, &total)
	if err := os.WriteFile(*out, []byte(text), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d rows to %s\n", len(videoRows)+1, *out)
	fmt.Printf("  blank titles: %d\n", blankCount)
	fmt.Printf("  with channel: %d\n", enrichCount)
	fmt.Printf("  total views:  %d\n", totalViews)
}

func avgSeconds(watchHours float64, views int64) int64 {
	if views == 0 {
		return 0
	}
	return int64(watchHours * 3600 / float64(views))
}
